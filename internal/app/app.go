package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/promed/internal/config"
	"github.com/hitoshi/promed/internal/database"
	"github.com/hitoshi/promed/internal/expiry"
	"github.com/hitoshi/promed/internal/handler"
	"github.com/hitoshi/promed/internal/logger"
	"github.com/hitoshi/promed/internal/mail"
	"github.com/hitoshi/promed/internal/medicine"
	"github.com/hitoshi/promed/internal/metrics"
	"github.com/hitoshi/promed/internal/middleware"
	"github.com/hitoshi/promed/internal/repository"
	"github.com/hitoshi/promed/internal/security"
	"github.com/hitoshi/promed/internal/worker/cleanup"
	"github.com/hitoshi/promed/internal/worker/notify"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを読み込む（既存の環境変数が優先）
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(w)
	root.SetArgs(args)
	root.SetOut(w)
	root.SetErr(w)
	return root.ExecuteContext(ctx)
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMetricsRegistry はGo/プロセスメトリクスとアプリケーションメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newMailChannel はSMTP設定の有無に応じてメール送信チャネルを選択する。
// SMTP_HOSTが未設定の場合は送信内容をログに出力するだけのチャネルを返す。
func newMailChannel(cfg *config.Config, log *slog.Logger) (expiry.MailChannel, error) {
	if !cfg.MailEnabled() {
		log.Warn("SMTP_HOST is not set; expiry notifications will be logged instead of sent")
		return mail.NewLogChannel(log), nil
	}
	ch, err := mail.NewSMTPChannel(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		Timeout:  cfg.SMTPTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP channel: %w", err)
	}
	return ch, nil
}

// newNotifier は日次通知パスの依存関係を組み立てる。
func newNotifier(cfg *config.Config, db *sql.DB, recorder expiry.MetricsRecorder, log *slog.Logger) (*expiry.Notifier, error) {
	channel, err := newMailChannel(cfg, log)
	if err != nil {
		return nil, err
	}

	medicineRepo := repository.NewPostgresMedicineRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)

	dispatcher := expiry.NewDispatcher(
		expiry.NewUserRecipientResolver(userRepo),
		channel,
		expiry.MessageFormatter{BaseURL: cfg.BaseURL},
		recorder,
		log,
	)
	return expiry.NewNotifier(medicineRepo, dispatcher, recorder, log, cfg.NotifyTimezone), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	medicineRepo := repository.NewPostgresMedicineRepo(db)

	// 3. ドメインサービスの初期化
	medicineService := medicine.NewService(medicineRepo, security.NewTextSanitizer(), cfg.NotifyTimezone)

	// 4. ミドルウェアとメトリクス
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitMedicineReg),
		log,
	)
	defer rateLimiter.Stop()

	reg, collector := newMetricsRegistry()

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:          log,
		HealthChecker:   db,
		MedicineService: medicineService,
		BaseURL:         cfg.BaseURL,
		Metrics:         collector,
		Gatherer:        reg,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, log, "API server")
}

// runWorker はワーカーモードで起動する。
// 日次の通知スケジューラとセッションクリーンアップを起動し、/metricsを公開する。
// コンテキストがキャンセルされるとシャットダウンする。実行中の通知パスは完了を待つ。
func runWorker(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("database connection established (worker)")

	// 2. 通知パスの組み立て
	reg, collector := newMetricsRegistry()
	notifier, err := newNotifier(cfg, db, collector, log)
	if err != nil {
		return err
	}

	hour, minute, err := config.ParseClock(cfg.NotifyRunAt)
	if err != nil {
		return fmt.Errorf("invalid NOTIFY_RUN_AT: %w", err)
	}
	scheduler := notify.NewScheduler(notifier, cfg.NotifyTimezone, hour, minute, log)

	// 3. セッションクリーンアップ
	cleanupJob := cleanup.NewSessionCleanupJob(db, log)

	// 4. メトリクスサーバー
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsDone := make(chan error, 1)
	go func() {
		metricsDone <- serveUntilDone(ctx, metricsServer, log, "metrics server")
	}()

	log.Info("worker starting",
		slog.String("notify_run_at", cfg.NotifyRunAt),
		slog.String("notify_timezone", cfg.NotifyTimezone.String()),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	// 通知スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	if err := <-metricsDone; err != nil {
		log.Error("metrics server stopped with error", slog.String("error", err.Error()))
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runNotify は通知パスを1回実行して終了する。
// todayがゼロ値の場合はNOTIFY_TIMEZONEにおける今日を使用する。
// 対象ごとの送信失敗は集計としてログに出力し、エラーにはしない。
func runNotify(ctx context.Context, cfg *config.Config, today time.Time) error {
	log := slog.Default()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	notifier, err := newNotifier(cfg, db, nil, log)
	if err != nil {
		return err
	}

	// シグナルを受けても実行中のパスは最後まで完了させる
	report, err := notifier.RunDailyPass(context.WithoutCancel(ctx), today)
	if err != nil {
		return fmt.Errorf("notification pass failed: %w", err)
	}

	for _, f := range report.Failures {
		log.Warn("notification failure",
			slog.String("medicine_id", f.MedicineID),
			slog.String("reason", string(f.Reason)),
			slog.String("error", f.Error),
		)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrationsWithLog(cfg.DatabaseURL, slog.Default()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", port), nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// serveUntilDone はHTTPサーバーを起動し、コンテキストのキャンセルでグレースフルシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, log *slog.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	log.Info(name + " stopped gracefully")
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
