package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/metrics"
	"github.com/hitoshi/aidbook/internal/middleware"
)

// HealthChecker はヘルスチェックで使用するストアの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	ProviderGate      *access.Gate
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 記録
	PersonService   PersonServiceInterface
	HelpService     HelpServiceInterface
	CatalogService  CatalogServiceInterface
	ProviderService ProviderServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → CSRF
//	  → (認証が必要なルート) Session → RateLimit(General) → Provider
//
// 支援記録・人物の作成には追加で作成専用のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// RateLimiterがnilの場合はレート制限を行わない
	general, create := passThrough, passThrough
	if rl := deps.RateLimiter; rl != nil {
		if rl.OnLimited == nil {
			rl.OnLimited = collector.RecordRateLimited
		}
		general, create = rl.GeneralMiddleware(), rl.CreationMiddleware()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.CSRFConfig.CookieSecure}))
	r.Use(middleware.NewLoggingMiddleware(logger, collector.RecordHTTPStatus))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	personHandler := NewPersonHandler(deps.PersonService)
	serviceHandler := NewServiceHandler(deps.HelpService)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.ProviderService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
	r.Get("/api/overview", catalogHandler.Overview)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.NewSessionMiddleware(deps.SessionFinder)).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → Provider
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(general)
		r.Use(access.NewProviderMiddleware(deps.ProviderGate))

		r.Get("/api/dashboard", catalogHandler.Dashboard)

		r.Route("/api/categories", func(r chi.Router) {
			r.Get("/", catalogHandler.Categories)
			r.Get("/{id}/fields", catalogHandler.CategoryFields)
		})

		r.Route("/api/people", func(r chi.Router) {
			r.Get("/", personHandler.List)
			r.With(create).Post("/", personHandler.Create)
			r.Get("/form", personHandler.NewForm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", personHandler.Get)
				r.Put("/", personHandler.Update)
				r.Get("/form", personHandler.EditForm)

				r.Get("/services/form", serviceHandler.NewForm)
				r.With(create).Post("/services", serviceHandler.Create)
			})
		})

		r.Route("/api/services/{id}", func(r chi.Router) {
			r.Get("/form", serviceHandler.EditForm)
			r.Put("/", serviceHandler.Update)
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }

// healthHandler はストアへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
