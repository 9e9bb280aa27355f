package form

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/hitoshi/aidbook/internal/model"
)

// DateLayout は日付フィールドの入力・保存形式。
const DateLayout = "2006-01-02"

// trailingDecimalZeros は整数フィールドで許容する末尾の ".0" を表す。
var trailingDecimalZeros = regexp.MustCompile(`\.0*\s*$`)

// fieldError は1フィールドの検証エラー。
type fieldError struct {
	Code    string
	Message string
}

func missing() *fieldError {
	return &fieldError{Code: model.ErrCodeMissingRequiredField, Message: "この項目は必須です。"}
}

func invalid(msg string) *fieldError {
	return &fieldError{Code: model.ErrCodeInvalidInput, Message: msg}
}

// normalizeKind は未知の種別をテキストとして扱う。
func normalizeKind(k model.FieldKind) model.FieldKind {
	switch k {
	case model.FieldKindText, model.FieldKindEmail, model.FieldKindPhone, model.FieldKindNumber,
		model.FieldKindDate, model.FieldKindTextarea, model.FieldKindSelect, model.FieldKindChoice,
		model.FieldKindCheckbox:
		return k
	default:
		return model.FieldKindText
	}
}

// blankValue は種別ごとの未入力値を返す。
func blankValue(k model.FieldKind) any {
	if k == model.FieldKindCheckbox {
		return false
	}
	return ""
}

// clean は1フィールドの送信値を種別に応じて検証・変換する。
func (s *Schema) clean(f Field, raw string) (any, *fieldError) {
	switch f.Kind {
	case model.FieldKindText, model.FieldKindPhone, model.FieldKindTextarea:
		v := s.sanitize(raw)
		if v == "" && f.Required {
			return nil, missing()
		}
		return v, nil

	case model.FieldKindEmail:
		v := strings.TrimSpace(raw)
		if v == "" {
			if f.Required {
				return nil, missing()
			}
			return "", nil
		}
		if !validEmail(v) {
			return nil, invalid("有効なメールアドレスを入力してください。")
		}
		return v, nil

	case model.FieldKindNumber:
		v := strings.TrimSpace(raw)
		if v == "" {
			if f.Required {
				return nil, missing()
			}
			return "", nil
		}
		n, err := strconv.ParseInt(trailingDecimalZeros.ReplaceAllString(v, ""), 10, 64)
		if err != nil {
			return nil, invalid("整数を入力してください。")
		}
		return n, nil

	case model.FieldKindDate:
		v := strings.TrimSpace(raw)
		if v == "" {
			if f.Required {
				return nil, missing()
			}
			return "", nil
		}
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return nil, invalid("日付はYYYY-MM-DD形式で入力してください。")
		}
		return t.Format(DateLayout), nil

	case model.FieldKindSelect, model.FieldKindChoice:
		v := strings.TrimSpace(raw)
		if v == "" {
			if f.Required {
				return nil, missing()
			}
			return "", nil
		}
		for _, o := range f.Options {
			if o.Value != "" && o.Value == v {
				return v, nil
			}
		}
		return nil, invalid(fmt.Sprintf("「%s」は選択肢にありません。", v))

	case model.FieldKindCheckbox:
		b, ok := parseCheckbox(raw)
		if !ok {
			return nil, invalid("真偽値を指定してください。")
		}
		if f.Required && !b {
			return nil, missing()
		}
		return b, nil
	}

	return nil, invalid("不明なフィールド種別です。")
}

func (s *Schema) sanitize(raw string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(raw)
	}
	return s.sanitizer.Clean(raw)
}

// parseCheckbox はHTMLフォームとJSONの両方の表現を受け付ける。
func parseCheckbox(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "off", "no":
		return false, true
	case "true", "1", "on", "yes":
		return true, true
	default:
		return false, false
	}
}

// validEmail は表示名なしの単一アドレスで、ドメインが登録可能な形式かどうかを判定する。
func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return false
	}
	at := strings.LastIndex(v, "@")
	if at <= 0 {
		return false
	}
	domain := v[at+1:]
	if !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	if _, err := idna.Lookup.ToASCII(domain); err != nil {
		return false
	}
	return true
}

// DisplayString はドキュメントの値を表示・比較用の文字列に変換する。
// nilや未入力は空文字列になる。
func DisplayString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
