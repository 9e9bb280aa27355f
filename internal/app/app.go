package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/auth"
	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/config"
	"github.com/hitoshi/aidbook/internal/database"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/handler"
	"github.com/hitoshi/aidbook/internal/helpservice"
	"github.com/hitoshi/aidbook/internal/logger"
	"github.com/hitoshi/aidbook/internal/metrics"
	"github.com/hitoshi/aidbook/internal/middleware"
	"github.com/hitoshi/aidbook/internal/person"
	"github.com/hitoshi/aidbook/internal/provider"
	"github.com/hitoshi/aidbook/internal/repository"
	"github.com/hitoshi/aidbook/internal/security"
	"github.com/hitoshi/aidbook/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// 返されたio.Closerはログファイルを閉じるため終了時に呼び出すこと。
func Init(w io.Writer) (*config.Config, io.Closer, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログの出力先とレベルを組み直す
	out, closer := logger.Writer(w, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
	})
	logger.SetupDefault(out, logger.ParseLevel(cfg.LogLevel))

	return cfg, closer, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, closer, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer closer.Close()

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage", cfg.StorageDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// storage は選択されたドライバーのリポジトリ一式と疎通確認先を保持する。
type storage struct {
	store  *repository.Store
	health handler.HealthChecker
	close  func() error
}

// openStorage は設定に従ってストアを開く。
// PostgreSQLの場合は接続を確認し、インメモリの場合は既定のフィールド定義と支援種別を投入する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := repository.NewMemoryStore()
		if _, err := catalog.NewService(store.Categories, store.Fields).Seed(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		slog.Warn("using in-memory storage; data is lost on restart")
		return &storage{store: store, close: func() error { return nil }}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return &storage{store: repository.NewPostgresStore(db), health: db, close: db.Close}, nil
}

// newRegistry はアプリケーションのメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// 返されたstopはレート制限の掃除goroutineを止めるため、サーバー停止後に呼び出すこと。
func newHandler(cfg *config.Config, st *storage, reg *prometheus.Registry, collector metrics.MetricsCollector) (http.Handler, func()) {
	store := st.store

	// 1. セキュリティ・フォーム設定
	sanitizer := security.NewTextSanitizer()
	phonePlaceholder := form.PhonePlaceholder(cfg.PhoneRegion)

	// 2. ドメインサービスの初期化
	gate := access.NewGate(store.Providers, store.Categories)
	catalogSvc := catalog.NewService(store.Categories, store.Fields)
	authSvc := auth.NewService(store.Accounts, store.Sessions, store.Categories, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	personSvc := person.NewService(
		store.Persons, store.Services, store.Providers, catalogSvc, sanitizer, phonePlaceholder,
	).WithMetrics(collector)
	helpSvc := helpservice.NewService(
		store.Persons, store.Services, catalogSvc, gate, collector, sanitizer, phonePlaceholder,
	)
	providerSvc := provider.NewService(gate, store.Categories, store.Persons, store.Services, store.Providers)

	// 3. ルーターの構築
	limiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCreate),
	)
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     store.Sessions,
		ProviderGate:      gate,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: limiter,

		HealthChecker:  st.health,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authSvc,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PersonService:   personSvc,
		HelpService:     helpSvc,
		CatalogService:  catalogSvc,
		ProviderService: providerSvc,
	}

	return handler.NewRouter(deps), limiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg, collector := newRegistry()
	h, stopLimiter := newHandler(cfg, st, reg, collector)
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := serveUntilDone(ctx, server); err != nil {
		return err
	}
	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの定期削除を行い、同じポートで/healthと/metricsを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg, collector := newRegistry()
	job := cleanup.NewCleanupJob(st.store.Sessions, slog.Default(), collector)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		job.Start(gctx, cfg.SessionCleanupInterval)
		return nil
	})
	g.Go(func() error {
		return serveUntilDone(gctx, server)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は組み込みの既定フィールド定義と支援種別を投入する。
// 既に存在するものはスキップするため、何度実行してもよい。
func runSeed(ctx context.Context, cfg *config.Config) error {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	result, err := catalog.NewService(st.store.Categories, st.store.Fields).Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("catalog seed completed",
		slog.Int("categories_created", result.CategoriesCreated),
		slog.Int("categories_skipped", result.CategoriesSkipped),
		slog.Int("fields_created", result.FieldsCreated),
		slog.Int("fields_skipped", result.FieldsSkipped),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
