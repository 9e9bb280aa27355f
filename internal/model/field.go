package model

import (
	"strings"
	"time"
)

// FieldScope はフィールド定義の適用範囲を表す。
type FieldScope string

const (
	// FieldScopeBase は全人物に共通の基本フィールド。
	FieldScopeBase FieldScope = "base"
	// FieldScopeCategory は特定の支援種別にのみ属する追加フィールド。
	FieldScopeCategory FieldScope = "category"
)

// FieldKind はフィールドの入力種別を表す。
// 種別は閉じた集合であり、追加する場合はform.Buildのswitchにも追加する必要がある。
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindEmail    FieldKind = "email"
	FieldKindPhone    FieldKind = "phone"
	FieldKindNumber   FieldKind = "number"
	FieldKindDate     FieldKind = "date"
	FieldKindTextarea FieldKind = "textarea"
	// FieldKindSelect は基本フィールドの選択肢型。
	FieldKindSelect FieldKind = "select"
	// FieldKindChoice は追加フィールドの選択肢型。FieldKindSelectと同じ扱い。
	FieldKindChoice FieldKind = "choice"
	// FieldKindCheckbox は追加フィールドのみで使用できる真偽値型。
	FieldKindCheckbox FieldKind = "checkbox"
)

// Valid は既知の種別かどうかを返す。
func (k FieldKind) Valid() bool {
	switch k {
	case FieldKindText, FieldKindEmail, FieldKindPhone, FieldKindNumber, FieldKindDate,
		FieldKindTextarea, FieldKindSelect, FieldKindChoice, FieldKindCheckbox:
		return true
	default:
		return false
	}
}

// IsChoice は選択肢型（select/choice）かどうかを返す。
func (k FieldKind) IsChoice() bool {
	return k == FieldKindSelect || k == FieldKindChoice
}

// AllowedIn は指定スコープでこの種別が使用可能かどうかを返す。
func (k FieldKind) AllowedIn(scope FieldScope) bool {
	switch k {
	case FieldKindText, FieldKindEmail, FieldKindPhone, FieldKindNumber, FieldKindDate, FieldKindTextarea:
		return true
	case FieldKindSelect:
		return scope == FieldScopeBase
	case FieldKindChoice, FieldKindCheckbox:
		return scope == FieldScopeCategory
	default:
		return false
	}
}

// FieldDefinition は管理者が設定するフォームフィールドの定義。
// 基本フィールド（CategoryIDが空）と支援種別ごとの追加フィールドの2種類がある。
type FieldDefinition struct {
	ID            string
	Scope         FieldScope
	CategoryID    string // Scope == FieldScopeCategory の場合のみ
	DisplayName   string
	FieldKey      string
	Kind          FieldKind
	Required      bool
	Order         int
	Placeholder   string
	ShowInSummary bool   // 基本フィールドのみ。一覧・エクスポートに表示する
	RawChoices    string // カンマ区切りの選択肢（保存形式）
}

// ChoiceOptions はRawChoicesを解析した選択肢の一覧を返す。
// 前後の空白を除去し、空要素を捨て、順序を保持する。重複は除去しない。
func (d FieldDefinition) ChoiceOptions() []string {
	return ParseChoices(d.RawChoices)
}

// ParseChoices はカンマ区切りの選択肢文字列を解析する。
func ParseChoices(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	choices := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			choices = append(choices, c)
		}
	}
	return choices
}

// Category は支援種別を表す。
type Category struct {
	ID           string
	Name         string
	Description  string
	Icon         string
	DisplayOrder int
	CreatedAt    time.Time
}
