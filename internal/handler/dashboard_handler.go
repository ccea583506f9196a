package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// DashboardHandler は認証済みユーザー向けのHTTPハンドラー。
// 全てのルートはセッションミドルウェアの後に配置する。
type DashboardHandler struct{}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// userResponse は/api/meのレスポンス。
type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// Dashboard はログインユーザーへの挨拶を返す。
// GET /dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Welcome, %s! You are logged in as %s", user.DisplayName, user.Role)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *DashboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	})
}

// AdminPing は管理者ロールの確認用エンドポイント。
// GET /api/admin/ping
func (h *DashboardHandler) AdminPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
