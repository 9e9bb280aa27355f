// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code       string // エラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ: auth, validation, record, system
	Action     string // ユーザー向け対処方法
	RedirectTo string // 権限エラー時にクライアントが戻るべき安全な画面（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeNotAProvider         = "NOT_A_PROVIDER"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrConflict はストアの一意制約違反を表す。
// リポジトリはドライバ固有のエラーをこの値でラップして返し、
// サービス層がConflictのAPIErrorに変換する。
var ErrConflict = errors.New("unique constraint violation")

// NewNotFoundError は対象が見つからない場合のエラーを生成する。
// kindには "person", "service", "category" などを指定する。
func NewNotFoundError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", kindLabel(kind), id),
		Category: "record",
		Action:   "IDを確認してください。",
	}
}

// NewServiceConflictError は同じ人物・支援種別の組み合わせが既に登録済みの場合のエラーを生成する。
func NewServiceConflictError(categoryName string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("この人物には支援種別「%s」が既に登録されています。", categoryName),
		Category: "record",
		Action:   "既存の支援記録を編集してください。",
	}
}

// NewFieldKeyConflictError はフィールドキーがスコープ内で重複した場合のエラーを生成する。
func NewFieldKeyConflictError(fieldKey string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("フィールドキーが重複しています: %s", fieldKey),
		Category: "validation",
		Action:   "別のキーを指定してください。",
	}
}

// NewUsernameConflictError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "このユーザー名は既に使用されています。",
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewNotAuthorizedError はカテゴリ権限のない操作を拒否する場合のエラーを生成する。
// redirectToにはクライアントが戻るべき画面のパスを指定する。
func NewNotAuthorizedError(categoryName, redirectTo string) *APIError {
	return &APIError{
		Code:       ErrCodeNotAuthorized,
		Message:    fmt.Sprintf("支援種別「%s」を編集する権限がありません。", categoryName),
		Category:   "auth",
		Action:     "担当している支援種別のみ追加・編集できます。",
		RedirectTo: redirectTo,
	}
}

// NewNotAProviderError はログイン中のアカウントが支援提供者として登録されていない場合のエラーを生成する。
func NewNotAProviderError() *APIError {
	return &APIError{
		Code:       ErrCodeNotAProvider,
		Message:    "支援提供者として登録されていません。",
		Category:   "auth",
		Action:     "支援提供者として登録してから再度お試しください。",
		RedirectTo: "/",
	}
}

// NewInvalidRequestError はリクエストボディの解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗時のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は未ログインのリクエストを拒否する場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError はフォーム検証エラーをまとめたエラーを生成する。
// フィールドごとの詳細はレスポンスのerrorsに別途含める。
func NewValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーを確認して修正してください。",
	}
}

func kindLabel(kind string) string {
	switch kind {
	case "person":
		return "人物"
	case "service":
		return "支援記録"
	case "category":
		return "支援種別"
	default:
		return kind
	}
}
