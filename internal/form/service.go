package form

import (
	"strings"

	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/security"
)

// 支援記録フォームの固定フィールドのキー。
// 追加フィールドはcustom_data配下に分離されるため、これらのキーと衝突しない。
const (
	FieldKeyCategory   = "help_category"
	FieldKeyStatus     = "status"
	FieldKeyNotes      = "notes"
	CustomFieldsPrefix = "custom_data."
)

const emptyCategoryLabel = "-- 支援種別を選択してください --"

var statusLabels = map[model.ServiceStatus]string{
	model.ServiceStatusActive:    "対応中",
	model.ServiceStatusCompleted: "完了",
	model.ServiceStatusPending:   "保留",
	model.ServiceStatusCancelled: "取消",
}

// StatusLabel は状態の表示名を返す。
func StatusLabel(s model.ServiceStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ServiceFormParams は支援記録フォームの生成パラメータ。
type ServiceFormParams struct {
	// Categories は支援種別の選択肢。通常は提供者が権限を持つ支援種別。
	Categories []model.Category
	// Category は選択済みの支援種別。CustomFieldsはこの支援種別の定義。
	Category *model.Category
	// CustomFields は選択済み支援種別の追加フィールド定義（表示順）。
	CustomFields []model.FieldDefinition
	// Existing は編集対象の支援記録。指定された場合は支援種別が固定される。
	Existing *model.HelpService
	// ReadOnly がtrueの場合は全フィールドを無効化する。
	ReadOnly         bool
	PhonePlaceholder string
	Sanitizer        security.TextSanitizer
}

// ServiceForm は支援記録の入力フォーム。
// 固定フィールド（支援種別・状態・メモ）と支援種別ごとの追加フィールドからなる。
type ServiceForm struct {
	Category Field
	Status   Field
	Notes    Field
	Custom   *Schema

	lockedCategoryID   string
	selectedCategoryID string
	fixed              *Schema
}

// ServiceInput は支援記録フォームの送信値。
type ServiceInput struct {
	Fixed  Input
	Custom Input
}

// ServiceValues は検証済みの支援記録の値。
type ServiceValues struct {
	CategoryID string
	Status     model.ServiceStatus
	Notes      string
	CustomData model.Document
}

// BuildServiceForm は支援記録フォームを生成する。
// 既存の支援記録を編集する場合、支援種別は元の値に固定され、送信値に関わらず変更されない。
func BuildServiceForm(p ServiceFormParams) *ServiceForm {
	sf := &ServiceForm{}

	categoryOptions := make([]Option, 0, len(p.Categories)+1)
	seen := make(map[string]bool, len(p.Categories))
	for _, c := range p.Categories {
		categoryOptions = append(categoryOptions, Option{Value: c.ID, Label: c.Name})
		seen[c.ID] = true
	}

	sf.Category = Field{
		Key:      FieldKeyCategory,
		Label:    "支援種別",
		Kind:     model.FieldKindSelect,
		Required: true,
		Initial:  "",
		Disabled: p.ReadOnly,
	}
	if p.Category != nil {
		sf.selectedCategoryID = p.Category.ID
		sf.Category.Initial = p.Category.ID
		if !seen[p.Category.ID] {
			categoryOptions = append(categoryOptions, Option{Value: p.Category.ID, Label: p.Category.Name})
		}
	}

	status := string(model.ServiceStatusActive)
	notes := ""
	customRecord := model.Document(nil)

	if p.Existing != nil {
		sf.lockedCategoryID = p.Existing.CategoryID
		sf.selectedCategoryID = p.Existing.CategoryID
		sf.Category.Initial = p.Existing.CategoryID
		sf.Category.Disabled = true
		status = string(p.Existing.Status)
		notes = p.Existing.Notes
		customRecord = p.Existing.CustomData
	} else {
		categoryOptions = append([]Option{{Value: "", Label: emptyCategoryLabel}}, categoryOptions...)
	}
	sf.Category.Options = categoryOptions

	statusOptions := make([]Option, 0, len(model.ServiceStatuses))
	for _, st := range model.ServiceStatuses {
		statusOptions = append(statusOptions, Option{Value: string(st), Label: StatusLabel(st)})
	}
	sf.Status = Field{
		Key:      FieldKeyStatus,
		Label:    "状態",
		Kind:     model.FieldKindSelect,
		Required: true,
		Options:  statusOptions,
		Initial:  status,
		Disabled: p.ReadOnly,
	}
	sf.Notes = Field{
		Key:      FieldKeyNotes,
		Label:    "メモ",
		Kind:     model.FieldKindTextarea,
		Initial:  notes,
		Disabled: p.ReadOnly,
	}

	sf.fixed = &Schema{
		Fields:    []Field{sf.Status, sf.Notes},
		sanitizer: p.Sanitizer,
	}
	sf.Custom = Build(p.CustomFields, Options{
		Record:           customRecord,
		ReadOnly:         p.ReadOnly,
		PhonePlaceholder: p.PhonePlaceholder,
		Sanitizer:        p.Sanitizer,
	})

	return sf
}

// LockedCategory は支援種別が固定されているかどうかを返す。
func (sf *ServiceForm) LockedCategory() bool {
	return sf.lockedCategoryID != ""
}

// Fields は固定フィールドと追加フィールドを表示順に返す。
func (sf *ServiceForm) Fields() []Field {
	fields := make([]Field, 0, 3+len(sf.Custom.Fields))
	fields = append(fields, sf.Category, sf.Status, sf.Notes)
	fields = append(fields, sf.Custom.Fields...)
	return fields
}

// Validate は送信値を検証する。
// 追加フィールドのエラーは "custom_data.<field_key>" をフィールド名として報告する。
func (sf *ServiceForm) Validate(in ServiceInput) (*ServiceValues, error) {
	verrs := &ValidationErrors{}
	values := &ServiceValues{}

	values.CategoryID = sf.validateCategory(in.Fixed, verrs)

	fixedIn := Input{}
	for _, k := range []string{FieldKeyStatus, FieldKeyNotes} {
		if v, ok := in.Fixed[k]; ok {
			fixedIn[k] = v
		}
	}
	// 送信されない固定フィールドは現在値（新規は対応中・空のメモ）を使う
	for _, f := range []Field{sf.Status, sf.Notes} {
		if _, ok := fixedIn[f.Key]; !ok {
			fixedIn[f.Key] = DisplayString(f.Initial)
		}
	}

	fixedOut, err := sf.fixed.Validate(fixedIn)
	if err != nil {
		if ve, ok := err.(*ValidationErrors); ok {
			verrs.Merge("", ve)
		}
	} else {
		values.Status = model.ServiceStatus(DisplayString(fixedOut[FieldKeyStatus]))
		values.Notes = DisplayString(fixedOut[FieldKeyNotes])
	}

	customOut, err := sf.Custom.Validate(in.Custom)
	if err != nil {
		if ve, ok := err.(*ValidationErrors); ok {
			verrs.Merge(CustomFieldsPrefix, ve)
		}
	} else {
		values.CustomData = customOut
	}

	if verrs.HasErrors() {
		return nil, verrs
	}
	return values, nil
}

// validateCategory は支援種別を検証する。固定されている場合は元の値を返す。
func (sf *ServiceForm) validateCategory(in Input, verrs *ValidationErrors) string {
	if sf.lockedCategoryID != "" {
		return sf.lockedCategoryID
	}

	raw, present := in[FieldKeyCategory]
	v := strings.TrimSpace(raw)

	if sf.Category.Disabled {
		if present && v != DisplayString(sf.Category.Initial) {
			verrs.Add(FieldKeyCategory, model.ErrCodeInvalidInput, "このフィールドは編集できません。")
			return ""
		}
		return DisplayString(sf.Category.Initial)
	}

	if v == "" {
		verrs.Add(FieldKeyCategory, model.ErrCodeMissingRequiredField, "この項目は必須です。")
		return ""
	}
	found := false
	for _, o := range sf.Category.Options {
		if o.Value != "" && o.Value == v {
			found = true
			break
		}
	}
	if !found {
		verrs.Add(FieldKeyCategory, model.ErrCodeInvalidInput, "選択された支援種別は利用できません。")
		return ""
	}
	// 追加フィールドは選択済みの支援種別から生成しているため、異なる支援種別は受け付けない
	if sf.selectedCategoryID != "" && v != sf.selectedCategoryID {
		verrs.Add(FieldKeyCategory, model.ErrCodeInvalidInput, "選択された支援種別が追加フィールドと一致しません。")
		return ""
	}
	return v
}
