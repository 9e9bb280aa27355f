package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
// RedirectToは権限エラー時にクライアントが遷移すべき画面で、それ以外では省略する。
type ErrorResponseBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// ValidationErrorResponseBody はフォーム検証エラーのレスポンスフォーマット。
// 統一フォーマットに加え、フィールドごとのエラーを全件含む。
type ValidationErrorResponseBody struct {
	ErrorResponseBody
	Errors []form.FieldError `json:"errors"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Category:   apiErr.Category,
		Action:     apiErr.Action,
		RedirectTo: apiErr.RedirectTo,
	})
}

// WriteValidationErrorResponse はフォーム検証エラーを422 Unprocessable Entityで書き込む。
// 一部のフィールドだけが保存されることはないため、エラーは常に全件返す。
func WriteValidationErrorResponse(w http.ResponseWriter, verrs *form.ValidationErrors) {
	apiErr := model.NewValidationError()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(ValidationErrorResponseBody{
		ErrorResponseBody: ErrorResponseBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
		Errors: verrs.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
