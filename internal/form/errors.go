package form

import (
	"fmt"
	"strings"
)

// FieldError はフィールド単位の検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors はフォーム全体の検証エラーをまとめたもの。
// 1件以上のエラーを含む場合のみerrorとして返される。
type ValidationErrors struct {
	Fields []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *ValidationErrors) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Code))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add はエラーを追加する。
func (e *ValidationErrors) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Merge は別のエラー集合のフィールド名にprefixを付けて追加する。
func (e *ValidationErrors) Merge(prefix string, other *ValidationErrors) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		e.Add(prefix+f.Field, f.Code, f.Message)
	}
}

// HasErrors はエラーが1件以上あるかどうかを返す。
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Fields) > 0
}

// For は指定フィールドのエラーを返す。
func (e *ValidationErrors) For(field string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldError{}, false
}
