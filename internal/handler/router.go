package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grindbot/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// Prometheusのスクレイプ用ハンドラー。nilの場合は/metricsを公開しない。
	Metrics http.Handler

	// コンパニオンアプリ
	WebApp *WebAppHandler

	// Telegram initDataの検証。nilの場合は/api配下を検証しない（テスト用）。
	InitData *middleware.InitDataVerifier
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware
//
// /api配下はinitDataの署名ユーザーとパスの{userID}が一致することを検証し、
// /api/webapp/{userID} にはさらにユーザーごとのレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.InitData != nil {
			r.Use(deps.InitData.Middleware(userIDParam))
		}
		r.With(deps.RateLimiter.Middleware(userIDParam)).Post("/webapp/{userID}", deps.WebApp.ReceiveData)
		r.Get("/users/{userID}/app-url", deps.WebApp.AppURL)
	})

	return r
}

// Health はプロセスの稼働確認用エンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDParam(r *http.Request) string {
	return chi.URLParam(r, "userID")
}
