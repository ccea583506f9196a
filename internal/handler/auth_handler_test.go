package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	beginFn  func() (*auth.AuthorizationRequest, error)
	loginFn  func(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error)
	logoutFn func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) BeginAuthorization() (*auth.AuthorizationRequest, error) {
	if m.beginFn != nil {
		return m.beginFn()
	}
	return &auth.AuthorizationRequest{URL: "https://accounts.example.com/auth", StateToken: "state-token"}, nil
}

func (m *mockAuthService) Login(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, params)
	}
	return nil, nil, model.ErrTokenExchangeFailed
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure:  true,
		SessionMaxAge: 86400,
		StateMaxAge:   600,
	}
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Login ---

func TestAuthHandler_Login_RedirectsWithStateCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		beginFn: func() (*auth.AuthorizationRequest, error) {
			return &auth.AuthorizationRequest{
				URL:        "https://accounts.example.com/auth?state=nonce-1",
				StateToken: "signed-state",
			}, nil
		},
	}, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "https://accounts.example.com/auth?state=nonce-1" {
		t.Errorf("Location = %q", got)
	}

	c := findCookie(resp, oauthStateCookie)
	if c == nil {
		t.Fatal("expected oauth_state cookie")
	}
	if c.Value != "signed-state" {
		t.Errorf("cookie value = %q, want signed-state", c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes = HttpOnly:%v Secure:%v SameSite:%v", c.HttpOnly, c.Secure, c.SameSite)
	}
	if c.MaxAge != 600 {
		t.Errorf("cookie MaxAge = %d, want 600", c.MaxAge)
	}
}

func TestAuthHandler_Login_BeginError(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		beginFn: func() (*auth.AuthorizationRequest, error) {
			return nil, errors.New("entropy exhausted")
		},
	}, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// --- Callback ---

func TestAuthHandler_Callback_Success(t *testing.T) {
	var captured auth.CallbackParams
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error) {
			captured = params
			return &model.Session{ID: "session-abc", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
				&model.User{ID: "user-1"}, nil
		},
	}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/login/callback?code=auth-code&state=nonce-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "signed-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", got)
	}

	want := auth.CallbackParams{Code: "auth-code", State: "nonce-1", StateToken: "signed-state"}
	if captured != want {
		t.Errorf("params = %+v, want %+v", captured, want)
	}

	session := findCookie(resp, middleware.SessionCookieName)
	if session == nil || session.Value != "session-abc" {
		t.Fatalf("session cookie = %+v, want session-abc", session)
	}
	if !session.HttpOnly || session.MaxAge != 86400 {
		t.Errorf("session cookie HttpOnly=%v MaxAge=%d", session.HttpOnly, session.MaxAge)
	}

	state := findCookie(resp, oauthStateCookie)
	if state == nil || state.MaxAge >= 0 {
		t.Errorf("oauth_state cookie should be cleared, got %+v", state)
	}
}

func TestAuthHandler_Callback_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"state mismatch", model.ErrInvalidState, http.StatusBadRequest, model.ErrCodeInvalidState},
		{"consent denied", fmt.Errorf("%w: access_denied", model.ErrAuthorizationDenied), http.StatusUnauthorized, model.ErrCodeAuthorizationDenied},
		{"invalid code", fmt.Errorf("%w: invalid_grant", model.ErrTokenExchangeFailed), http.StatusBadRequest, model.ErrCodeLoginFailed},
		{"profile unavailable", model.ErrProfileFetchFailed, http.StatusBadRequest, model.ErrCodeLoginFailed},
		{"unverified email", model.ErrUnverifiedEmail, http.StatusForbidden, model.ErrCodeEmailNotVerified},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				loginFn: func(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error) {
					return nil, nil, tt.err
				},
			}, testAuthConfig())

			w := httptest.NewRecorder()
			h.Callback(w, httptest.NewRequest(http.MethodGet, "/login/callback?code=x&state=y", nil))

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if findCookie(resp, middleware.SessionCookieName) != nil {
				t.Error("session cookie must not be set on failure")
			}

			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_Callback_DoesNotEchoProviderError(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, params auth.CallbackParams) (*model.Session, *model.User, error) {
			return nil, nil, fmt.Errorf("%w: oauth2: \"invalid_grant\" \"secret detail\"", model.ErrTokenExchangeFailed)
		},
	}, testAuthConfig())

	w := httptest.NewRecorder()
	h.Callback(w, httptest.NewRequest(http.MethodGet, "/login/callback?code=x&state=y", nil))

	if body := w.Body.String(); strings.Contains(body, "secret detail") || strings.Contains(body, "invalid_grant") {
		t.Errorf("response leaks provider error: %s", body)
	}
}

// --- Logout ---

func TestAuthHandler_Logout(t *testing.T) {
	var destroyed string
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			destroyed = sessionID
			return nil
		},
	}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "/login" {
		t.Errorf("Location = %q, want /login", got)
	}
	if destroyed != "session-abc" {
		t.Errorf("destroyed session = %q, want session-abc", destroyed)
	}
	if c := findCookie(resp, middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestAuthHandler_Logout_ServiceErrorStillClearsCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("database unavailable")
		},
	}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if c := findCookie(resp, middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie should be cleared even when logout fails")
	}
}
