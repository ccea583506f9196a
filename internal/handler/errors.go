package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// handleLoginError はログイン処理のエラーをHTTPレスポンスに変換する。
// IdPの生のエラー内容はログにのみ記録し、レスポンスには含めない。
func handleLoginError(w http.ResponseWriter, err error) {
	status, apiErr := mapLoginError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("login failed", slog.String("error", err.Error()))
	} else {
		slog.Warn("login rejected",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// mapLoginError はエラー種別からHTTPステータスと統一エラーを決定する。
func mapLoginError(err error) (int, *model.APIError) {
	switch {
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusBadRequest, model.NewInvalidStateError()
	case errors.Is(err, model.ErrAuthorizationDenied):
		return http.StatusUnauthorized, model.NewAuthorizationDeniedError()
	case errors.Is(err, model.ErrTokenExchangeFailed), errors.Is(err, model.ErrProfileFetchFailed):
		return http.StatusBadRequest, model.NewLoginFailedError()
	case errors.Is(err, model.ErrUnverifiedEmail):
		return http.StatusForbidden, model.NewEmailNotVerifiedError()
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}
