// Package form は管理者が設定したフィールド定義から入力スキーマを組み立て、
// 送信された値を検証して型付きのドキュメントに変換する。
//
// スキーマはリクエストごとにフィールド定義ストアの最新内容から生成する。
// キャッシュはしないため、追加されたフィールドは次の表示から反映される。
package form

import (
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/security"
)

// emptyOptionLabel は任意入力の選択肢フィールドの先頭に追加する「未選択」の表示名。
const emptyOptionLabel = "-- 選択してください --"

// Option は選択肢フィールドの1つの選択肢。
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field はスキーマ内の1つの論理フィールド。
type Field struct {
	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Kind        model.FieldKind `json:"kind"`
	Required    bool            `json:"required"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []Option        `json:"options,omitempty"`
	Initial     any             `json:"value"`
	Disabled    bool            `json:"disabled"`
}

// Input はクライアントから送信された生の入力値。
// キーが存在しないことと空文字列は区別される（チェックボックスと読み取り専用フィールドで使用）。
type Input map[string]string

// Options はスキーマ生成時のオプション。
type Options struct {
	// Record は既存レコードのドキュメント。指定された場合は各フィールドの初期値になる。
	Record model.Document
	// ReadOnly がtrueの場合は全フィールドを無効化する。
	ReadOnly bool
	// PhonePlaceholder はプレースホルダー未設定の電話番号フィールドに使用する。
	PhonePlaceholder string
	// Sanitizer は自由記述テキストのマークアップ除去に使用する。nilの場合は空白の除去のみ行う。
	Sanitizer security.TextSanitizer
}

// Schema はフィールド定義から生成した入力スキーマ。
type Schema struct {
	Fields    []Field
	sanitizer security.TextSanitizer
}

// Build はフィールド定義の並び順どおりに1定義1フィールドのスキーマを生成する。
// 既存レコードに該当キーがない場合（古いレコード）は空の初期値を設定する。
func Build(defs []model.FieldDefinition, opts Options) *Schema {
	s := &Schema{
		Fields:    make([]Field, 0, len(defs)),
		sanitizer: opts.Sanitizer,
	}

	for _, def := range defs {
		f := Field{
			Key:         def.FieldKey,
			Label:       def.DisplayName,
			Kind:        normalizeKind(def.Kind),
			Required:    def.Required,
			Placeholder: def.Placeholder,
			Disabled:    opts.ReadOnly,
		}

		if f.Kind == model.FieldKindPhone && f.Placeholder == "" {
			f.Placeholder = opts.PhonePlaceholder
		}
		if f.Kind.IsChoice() {
			f.Options = choiceOptions(def.ChoiceOptions(), def.Required)
		}

		f.Initial = blankValue(f.Kind)
		if opts.Record != nil {
			if v, ok := opts.Record[def.FieldKey]; ok && v != nil {
				f.Initial = v
			}
		}

		s.Fields = append(s.Fields, f)
	}

	return s
}

// Validate は送信値をスキーマに照らして検証する。
// 全フィールドが有効な場合のみfield_keyをキーとする型付きドキュメントを返し、
// 1つでもエラーがあればフィールドごとのエラーをまとめた*ValidationErrorsを返す（部分的な成功はない）。
func (s *Schema) Validate(in Input) (model.Document, error) {
	out := make(model.Document, len(s.Fields))
	verrs := &ValidationErrors{}

	for _, f := range s.Fields {
		raw, present := in[f.Key]

		if f.Disabled {
			// 読み取り専用フィールドは現在値を維持し、異なる値の送信は改ざんとして拒否する
			if present && !s.sameAsInitial(f, raw) {
				verrs.Add(f.Key, model.ErrCodeInvalidInput, "このフィールドは編集できません。")
				continue
			}
			out[f.Key] = f.Initial
			continue
		}

		v, ferr := s.clean(f, raw)
		if ferr != nil {
			verrs.Add(f.Key, ferr.Code, ferr.Message)
			continue
		}
		out[f.Key] = v
	}

	if verrs.HasErrors() {
		return nil, verrs
	}
	return out, nil
}

// Field は指定キーのフィールドを返す。
func (s *Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// sameAsInitial は送信値が読み取り専用フィールドの現在値と同じかどうかを判定する。
func (s *Schema) sameAsInitial(f Field, raw string) bool {
	f.Disabled = false
	f.Required = false
	v, err := s.clean(f, raw)
	if err != nil {
		return false
	}
	return DisplayString(v) == DisplayString(f.Initial)
}

// choiceOptions は選択肢一覧を組み立てる。任意入力の場合は先頭に未選択を追加する。
func choiceOptions(choices []string, required bool) []Option {
	opts := make([]Option, 0, len(choices)+1)
	if !required {
		opts = append(opts, Option{Value: "", Label: emptyOptionLabel})
	}
	for _, c := range choices {
		opts = append(opts, Option{Value: c, Label: c})
	}
	return opts
}
