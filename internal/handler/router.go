package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	StrictTransport   bool
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders
//	  ログインフロー: LoginRateLimit(IP)
//	  保護ルート:     [CORS(/api) →] Session → RateLimit(General) [→ RequireRole]
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.StrictTransport))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	dashboardHandler := NewDashboardHandler()

	// --- 認証不要のルート ---

	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// OAuthフロー（IP単位のレート制限）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Get("/login", authHandler.Login)
		r.Get("/login/callback", authHandler.Callback)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	protect := func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, middleware.DefaultGuardConfig()))
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}

	r.Group(func(r chi.Router) {
		protect(r)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		})
		r.Get("/dashboard", dashboardHandler.Dashboard)
		r.Get("/logout", authHandler.Logout)
	})

	// プリフライトはCookieを伴わないため、CORSはセッション検証より前に置く
	r.Route("/api", func(r chi.Router) {
		if deps.CORSAllowedOrigin != "" {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		}
		r.Group(func(r chi.Router) {
			protect(r)

			r.Get("/me", dashboardHandler.Me)
			r.With(middleware.RequireRole(model.RoleAdmin)).Get("/admin/ping", dashboardHandler.AdminPing)
		})
	})

	return r
}
