// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// SessionCookieName はセッショントークンを保存するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// SessionResolver はセッショントークンから現在のユーザーを解決する。
// auth.SessionManagerが実装する。
type SessionResolver interface {
	Current(ctx context.Context, token string) (*model.User, error)
}

// GuardConfig はアクセスガードの設定。
type GuardConfig struct {
	// LoginPath は未認証の対話的リクエストのリダイレクト先。
	LoginPath string
	// APIPrefix 配下のリクエストはリダイレクトせず401 JSONを返す。
	APIPrefix string
}

// DefaultGuardConfig はデフォルトのガード設定を返す。
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LoginPath: "/login",
		APIPrefix: "/api/",
	}
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効なセッションを持つリクエストだけを後続のハンドラーに通すミドルウェアを返す。
// 認証済みユーザーはリクエストコンテキストに注入する。
// 未認証の場合、ブラウザからのリクエストはログイン画面へリダイレクトし、
// APIリクエストには401を返す。
func NewSessionMiddleware(resolver SessionResolver, config GuardConfig) func(next http.Handler) http.Handler {
	if config.LoginPath == "" {
		config.LoginPath = DefaultGuardConfig().LoginPath
	}
	if config.APIPrefix == "" {
		config.APIPrefix = DefaultGuardConfig().APIPrefix
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			var token string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				token = cookie.Value
			}

			// 2. セッションからユーザーを解決
			user, err := resolver.Current(r.Context(), token)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				rejectUnauthenticated(w, r, config)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			annotateUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// rejectUnauthenticated は未認証リクエストを拒否する。
func rejectUnauthenticated(w http.ResponseWriter, r *http.Request, config GuardConfig) {
	if isInteractive(r, config.APIPrefix) {
		http.Redirect(w, r, config.LoginPath, http.StatusSeeOther)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
}

// isInteractive はブラウザ遷移として扱うリクエストかを判定する。
// API配下でもHTMLを要求するGETはブラウザ遷移とみなす。
func isInteractive(r *http.Request, apiPrefix string) bool {
	if !strings.HasPrefix(r.URL.Path, apiPrefix) {
		return true
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// RequireRole は認証済みユーザーのロールが指定のいずれかであることを要求するミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				slog.Warn("role check failed",
					slog.String("user_id", user.ID),
					slog.String("role", string(user.Role)),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
