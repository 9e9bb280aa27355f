// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述テキストからHTMLマークアップを取り除く。
// bluemondayのStrictPolicyでタグをすべて除去した後、エスケープされた文字を元に戻すため、
// "a < b" のような通常のテキストは変化しない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Clean はHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返し、出力を再度渡しても変化しない（冪等）。
	Clean(s string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使用する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	// タグを含まない入力はポリシーを通さない（&amp;等の実体参照を保持するため）
	if !strings.ContainsAny(raw, "<>") {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
