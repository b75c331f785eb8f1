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
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/grindbot/internal/bot"
	"github.com/hitoshi/grindbot/internal/companion"
	"github.com/hitoshi/grindbot/internal/config"
	"github.com/hitoshi/grindbot/internal/database"
	"github.com/hitoshi/grindbot/internal/handler"
	"github.com/hitoshi/grindbot/internal/logger"
	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/metrics"
	"github.com/hitoshi/grindbot/internal/middleware"
	"github.com/hitoshi/grindbot/internal/notify"
	"github.com/hitoshi/grindbot/internal/onboarding"
	"github.com/hitoshi/grindbot/internal/profile"
	"github.com/hitoshi/grindbot/internal/repository"
	"github.com/hitoshi/grindbot/internal/security"
	"github.com/hitoshi/grindbot/internal/telegram"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, envFile string) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルを読み込む（存在しなくてもよい）
	if envFile != "" {
		loaded, err := config.LoadEnvFile(envFile)
		if err != nil {
			return nil, nil, err
		}
		if loaded {
			log.Info(".envファイルを読み込みました", slog.String("path", envFile))
		}
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定のログレベルでロガーを作り直す
	log = logger.SetupDefault(w, cfg.LogLevel)

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	opts, err := ParseArgs(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if opts.Command == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w, opts.EnvFile)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(opts.Command)),
		slog.String("port", cfg.ServerPort),
		slog.String("timezone", cfg.Timezone),
		slog.Bool("database", cfg.DatabaseURL != ""),
	)

	ctx, cancel := signalContext(log)
	defer cancel()

	switch opts.Command {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log, !opts.DisableScheduler)
	}
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(stop)
		select {
		case sig := <-stop:
			log.Info("shutdown signal received", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// services は1プロセス内で共有するドメインサービス群。
type services struct {
	profiles  *profile.Service
	bot       *bot.Dispatcher
	scheduler *notify.Scheduler
	router    http.Handler
	limiter   *middleware.RateLimiter
}

// newServices はストアと送信手段から全依存関係をワイヤリングする。
func newServices(
	cfg *config.Config,
	store repository.UserStore,
	sender message.Sender,
	reg *prometheus.Registry,
	log *slog.Logger,
) *services {
	collector := metrics.NewCollector(reg)

	profiles := profile.NewService(store, log)
	sessions := onboarding.NewManager(profiles, log)
	payloads := companion.NewHandler(profiles, collector, log)

	dispatcher := bot.NewDispatcher(
		profiles, sessions, payloads, sender,
		security.NewNameSanitizer(), collector, log,
		bot.Config{AppURL: cfg.MiniAppURL, Schedule: cfg.Schedule},
	)

	notifier := notify.NewDispatcher(
		store, sender,
		notify.NewReminders(cfg.MiniAppURL, cfg.Schedule.Location),
		collector, log,
		notify.DispatcherConfig{
			SendTimeout:    cfg.SendTimeout,
			MaxConcurrency: cfg.SendMaxConcurrent,
			RatePerSec:     cfg.SendRatePerSec,
		},
	)
	scheduler := notify.NewScheduler(notifier, nil, log)
	for _, job := range cfg.Schedule.Jobs() {
		scheduler.Register(job)
	}

	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.WebAppRatePerMin), log)
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Metrics:           metrics.Handler(reg),
		WebApp:            handler.NewWebAppHandler(payloads, profiles, sender, cfg.MiniAppURL, log),
		InitData:          middleware.NewInitDataVerifier(cfg.BotToken, cfg.InitDataMaxAge, log),
	})

	return &services{
		profiles:  profiles,
		bot:       dispatcher,
		scheduler: scheduler,
		router:    router,
		limiter:   limiter,
	}
}

// newRegistry はアプリケーションメトリクスとランタイムメトリクスを登録するレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// openStore はDATABASE_URLが設定されていればPostgreSQL、なければメモリのUserStoreを返す。
// closeは呼び出し側で必ず呼ぶこと。
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store repository.UserStore, closeFn func() error, err error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URLが未設定のためメモリストアを使用します。再起動でデータは失われます")
		return repository.NewMemoryUserStore(), func() error { return nil }, nil
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DBPool)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")
	return repository.NewPostgresUserStore(db), db.Close, nil
}

// runServe はボットモードで起動する。
// Telegramのロングポーリング、HTTPサーバー、通知スケジューラを起動し、
// シグナル受信でグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger, withScheduler bool) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := telegram.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	log.Info("telegram bot authorized", slog.String("username", api.Self.UserName))

	sender := telegram.NewSender(api)
	svc := newServices(cfg, store, sender, newRegistry(), log)
	defer svc.limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      svc.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		telegram.NewPoller(api, svc.bot, cfg.PollTimeout, log).Run(ctx)
	}()

	if withScheduler {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.scheduler.Start(ctx)
		}()
	} else {
		log.Info("notification scheduler disabled in serve mode")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		log.Error("server listen error", slog.String("error", runErr.Error()))
	}

	// サーバーエラーの場合もポーラーとスケジューラを止める
	stop()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("http server failed: %w", runErr)
	}

	log.Info("bot stopped gracefully")
	return nil
}

// runWorker は通知スケジューラのみを起動する。
// serveと別プロセスで動かすため、ストアは共有できるPostgreSQLが必須。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("worker mode requires DATABASE_URL")
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := telegram.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}

	svc := newServices(cfg, store, telegram.NewSender(api), newRegistry(), log)
	defer svc.limiter.Stop()

	log.Info("worker starting",
		slog.Int("max_concurrent", cfg.SendMaxConcurrent),
		slog.Float64("rate_per_sec", cfg.SendRatePerSec),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	svc.scheduler.Start(ctx)

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
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
