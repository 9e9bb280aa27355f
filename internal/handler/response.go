// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/middleware"
	"github.com/hitoshi/aidbook/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗した場合は400を書き込みfalseを返す。
// 数値はjson.Numberとして受け取り、フォーム入力への変換で桁落ちしないようにする。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var verrs *form.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.WriteValidationErrorResponse(w, verrs)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodeNotAuthorized, model.ErrCodeNotAProvider:
		return http.StatusForbidden
	case model.ErrCodeMissingRequiredField, model.ErrCodeInvalidInput, model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// providerFrom はプロバイダーミドルウェアが注入した提供者を取得する。
// ルーター外から呼ばれた場合は401を書き込みnilを返す。
func providerFrom(w http.ResponseWriter, r *http.Request) *model.Provider {
	p, ok := access.ProviderFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil
	}
	return p
}

// toInput はJSONオブジェクトをフォーム入力に変換する。
// 文字列・数値・真偽値はHTMLフォームの送信値と同じ文字列表現にし、nullは空文字列とする。
// オブジェクトや配列はどのフィールド種別でも受け付けない。
func toInput(raw map[string]any) (form.Input, error) {
	in := make(form.Input, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
			in[k] = ""
		case string:
			in[k] = x
		case json.Number:
			in[k] = x.String()
		case bool:
			if x {
				in[k] = "true"
			} else {
				in[k] = "false"
			}
		default:
			return nil, fmt.Errorf("フィールド %s の値はスカラーで指定してください", k)
		}
	}
	return in, nil
}

// personPayload は人物の登録・更新リクエストのボディ。
// base_dataのキーはフィールド定義のfield_keyに対応する。
type personPayload struct {
	BaseData map[string]any `json:"base_data"`
}

// servicePayload は支援記録の追加・更新リクエストのボディ。
type servicePayload struct {
	HelpCategory *string        `json:"help_category"`
	Status       *string        `json:"status"`
	Notes        *string        `json:"notes"`
	CustomData   map[string]any `json:"custom_data"`
}

// toServiceInput は支援記録のリクエストをフォーム入力に変換する。
// 送信されなかった固定フィールドは入力に含めず、フォーム側の既定値を使わせる。
func (p servicePayload) toServiceInput() (form.ServiceInput, error) {
	fixed := form.Input{}
	if p.HelpCategory != nil {
		fixed[form.FieldKeyCategory] = *p.HelpCategory
	}
	if p.Status != nil {
		fixed[form.FieldKeyStatus] = *p.Status
	}
	if p.Notes != nil {
		fixed[form.FieldKeyNotes] = *p.Notes
	}
	custom, err := toInput(p.CustomData)
	if err != nil {
		return form.ServiceInput{}, err
	}
	return form.ServiceInput{Fixed: fixed, Custom: custom}, nil
}

// invalidPayload は変換できないリクエストボディに400を書き込む。
func invalidPayload(w http.ResponseWriter, err error) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(strings.TrimSpace(err.Error())))
}
