package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoman/internal/guard"
	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// sql.DBが実装するPingContextの部分集合。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	AccessVerifier    middleware.AccessVerifier
	CredentialReader  *middleware.CredentialReader
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig

	// 認可ゲート依存
	UserFinder     guard.UserFinder
	TodoFinder     guard.TodoFinder
	DenialRecorder guard.DenialRecorder

	// サービス
	AuthService  AuthServiceInterface
	SyncService  SyncServiceInterface
	TodoService  TodoServiceInterface
	UserService  UserServiceInterface
	CookieConfig CookieConfig

	// メトリクス公開
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	（保護ルートのみ）AccessToken → CSRF → guardゲート
//
// 認証ルート（/auth/*）はアクセストークンミドルウェアの外に配置する。
// /auth/syncのみ認証が必要なため個別にミドルウェアを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	authHandler := NewAuthHandler(deps.AuthService, deps.SyncService, deps.CredentialReader, deps.CookieConfig)
	todoHandler := NewTodoHandler(deps.TodoService)
	userHandler := NewUserHandler(deps.UserService)

	requireAuth := middleware.NewAccessTokenMiddleware(deps.AccessVerifier, deps.CredentialReader)
	requireCSRF := middleware.NewCSRFMiddleware(deps.CredentialReader, deps.CSRFConfig)

	// --- 認証不要のルート ---

	r.Get("/healthz", newHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/google", authHandler.SignInWithGoogle)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/signout", authHandler.SignOut)
		r.Method(http.MethodGet, "/csrf-token",
			middleware.NewCSRFTokenHandler(deps.CredentialReader, deps.CSRFConfig))

		// 同期のみ認証必須
		r.With(requireAuth).Get("/sync", authHandler.Sync)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: AccessToken → CSRF → guardゲート
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(requireCSRF)

		r.Route("/api/{username}", func(r chi.Router) {
			r.Use(guard.RequireUserExists(deps.UserFinder, deps.DenialRecorder))

			r.Get("/profile", userHandler.Profile)

			r.Route("/todos", func(r chi.Router) {
				r.Post("/", todoHandler.Create)
				r.Get("/", todoHandler.List)

				r.Route("/{todoID}", func(r chi.Router) {
					r.Use(guard.RequireTodoOwner(deps.TodoFinder, deps.DenialRecorder))

					r.Patch("/", todoHandler.Update)
					r.Delete("/", todoHandler.Delete)
				})
			})
		})
	})

	return r
}

// newHealthHandler はDB接続の死活を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"message": "Database is unreachable.",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "OK",
		})
	}
}
