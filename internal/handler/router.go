package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/promed/internal/metrics"
	"github.com/hitoshi/promed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// ヘルスチェック
	HealthChecker HealthChecker

	// 医薬品
	MedicineService MedicineServiceInterface
	BaseURL         string

	// メトリクス（nil可）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → StatusMetrics → SecurityHeaders → CORS
//	  認証ルート: Session → RateLimit(General) → CSRF
//
// 公開ルート（/health, /api/csrf-token, /m/{qr}, /metrics）はセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var recorder MedicineCreatedRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	medicineHandler := NewMedicineHandler(deps.MedicineService, deps.BaseURL, recorder, logger)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig, logger).ServeHTTP)
	r.Get("/m/{qr}", medicineHandler.GetPublicMedicine)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig, logger))

		r.Route("/api/medicines", func(r chi.Router) {
			// POST /api/medicines - 医薬品登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.MedicineRegistrationMiddleware()).Post("/", medicineHandler.CreateMedicine)
			r.Get("/", medicineHandler.ListMedicines)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", medicineHandler.GetMedicine)
				r.Delete("/", medicineHandler.DeleteMedicine)
			})
		})
	})

	return r
}
