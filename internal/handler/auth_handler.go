// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginAuthorization() (*auth.AuthorizationRequest, error)
	Login(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	StateMaxAge   int // state Cookieの有効期間（秒）

	// LoginPath はログアウト後のリダイレクト先。
	LoginPath string
	// AfterLoginPath はログイン成功後のリダイレクト先。
	AfterLoginPath string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	if config.AfterLoginPath == "" {
		config.AfterLoginPath = "/dashboard"
	}
	if config.StateMaxAge <= 0 {
		config.StateMaxAge = 600
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.BeginAuthorization()
	if err != nil {
		slog.Error("failed to begin authorization", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 署名済みstateをCookieに保存（CSRF対策）
	http.SetCookie(w, h.cookie(oauthStateCookie, req.StateToken, h.config.StateMaxAge))

	http.Redirect(w, r, req.URL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /login/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. state Cookieを取得し、成否にかかわらず削除する（使い捨て）
	var stateToken string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		stateToken = c.Value
	}
	http.SetCookie(w, h.cookie(oauthStateCookie, "", -1))

	// 2. 認証処理（state検証 → トークン交換 → アカウント解決 → セッション発行）
	q := r.URL.Query()
	session, user, err := h.service.Login(r.Context(), auth.CallbackParams{
		Code:       q.Get("code"),
		State:      q.Get("state"),
		Error:      q.Get("error"),
		StateToken: stateToken,
	})
	if err != nil {
		handleLoginError(w, err)
		return
	}

	// 3. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, h.cookie(middleware.SessionCookieName, session.ID, h.config.SessionMaxAge))

	slog.Debug("login completed", slog.String("user_id", user.ID))

	// 4. ダッシュボードにリダイレクト
	http.Redirect(w, r, h.config.AfterLoginPath, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, h.cookie(middleware.SessionCookieName, "", -1))

	http.Redirect(w, r, h.config.LoginPath, http.StatusTemporaryRedirect)
}

// cookie はHTTP Only・SameSite=LaxのCookieを生成する。maxAgeが負の場合は削除用。
func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
