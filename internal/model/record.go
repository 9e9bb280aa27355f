package model

import "time"

// Document はスキーマを持たないキー・値のマップ。
// 値は文字列・数値・真偽値のいずれか。キーはフィールド定義のfield_keyに対応するが、
// 定義が削除された後も古いキーは保持される。
type Document map[string]any

// Clone はドキュメントの浅いコピーを返す。値はプリミティブのみなので浅いコピーで十分。
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Provider は支援提供者（システム利用者）を表す。
type Provider struct {
	ID          string
	AccountID   string
	Username    string
	Bio         string
	CategoryIDs []string // 追加・編集を許可された支援種別
	CreatedAt   time.Time
}

// HasCategory は指定された支援種別の権限を持つかどうかを返す。
func (p *Provider) HasCategory(categoryID string) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Person は支援対象者の記録。
type Person struct {
	ID        string
	BaseData  Document
	CreatedBy *string // 登録した提供者のID。提供者削除時はnil
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceStatus は支援記録の状態を表す。
type ServiceStatus string

const (
	ServiceStatusActive    ServiceStatus = "active"
	ServiceStatusCompleted ServiceStatus = "completed"
	ServiceStatusPending   ServiceStatus = "pending"
	ServiceStatusCancelled ServiceStatus = "cancelled"
)

// ServiceStatuses は表示順の状態一覧。
var ServiceStatuses = []ServiceStatus{
	ServiceStatusActive,
	ServiceStatusCompleted,
	ServiceStatusPending,
	ServiceStatusCancelled,
}

// Valid は既知の状態かどうかを返す。
func (s ServiceStatus) Valid() bool {
	for _, st := range ServiceStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// HelpService は人物と支援種別の組み合わせ（支援記録）。
// (PersonID, CategoryID) は一意。
type HelpService struct {
	ID         string
	PersonID   string
	CategoryID string
	CustomData Document
	Status     ServiceStatus
	Notes      string
	CreatedBy  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FieldFilter は1つのフィールドに対する絞り込み条件。
type FieldFilter struct {
	Key   string
	Value string
	Exact bool // trueなら完全一致、falseなら大文字小文字を区別しない部分一致
}

// PersonQuery は人物一覧の検索条件。
// search.Compileで組み立て、リポジトリが評価する。
type PersonQuery struct {
	Search        string
	SearchKeys    []string // 全文検索の対象となる基本フィールドのキー
	CategoryID    string
	Status        ServiceStatus
	FieldFilters  []FieldFilter
	CustomFilters []FieldFilter // CategoryIDの支援記録のcustom_dataに対する条件
}
