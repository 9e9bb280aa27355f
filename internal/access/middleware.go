package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/aidbook/internal/middleware"
	"github.com/hitoshi/aidbook/internal/model"
)

type contextKey string

var providerContextKey = contextKey("provider")

// NewProviderMiddleware はセッションのアカウントに紐づく提供者を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// セッションミドルウェアの後に配置すること。
// 提供者として登録されていないアカウントには403とredirect_toを返す。
func NewProviderMiddleware(gate *Gate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := middleware.AccountIDFromContext(r.Context())
			if err != nil {
				middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			provider, err := gate.ResolveProvider(r.Context(), accountID)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					middleware.WriteErrorResponse(w, http.StatusForbidden, apiErr)
					return
				}
				slog.Error("failed to resolve provider",
					slog.String("account_id", accountID),
					slog.String("error", err.Error()),
				)
				middleware.WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithProvider(r.Context(), provider)))
		})
	}
}

// ProviderFromContext はリクエストコンテキストから提供者を取得する。
// 提供者ミドルウェアを通過したリクエストでのみ有効。
func ProviderFromContext(ctx context.Context) (*model.Provider, bool) {
	p, ok := ctx.Value(providerContextKey).(*model.Provider)
	return p, ok && p != nil
}

// ContextWithProvider はコンテキストに提供者を注入する。
func ContextWithProvider(ctx context.Context, provider *model.Provider) context.Context {
	return context.WithValue(ctx, providerContextKey, provider)
}
