// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 認証フローのエラー分類。errors.Isで判定する。
var (
	// ErrAuthorizationDenied はユーザーがIdPの同意画面で拒否したことを表す。
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrTokenExchangeFailed は認可コードのトークン交換に失敗したことを表す。
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	// ErrProfileFetchFailed はユーザー情報の取得に失敗したことを表す。
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrDuplicateAccount はusersの一意制約違反を表す。
	// AccountResolverの内部でのみ扱い、利用者には返さない。
	ErrDuplicateAccount = errors.New("duplicate account")
	// ErrInvalidState はOAuth stateの検証に失敗したことを表す。
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrUnverifiedEmail はIdPがメールアドレスの所有を保証していないことを表す。
	ErrUnverifiedEmail = errors.New("email not verified by provider")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginFailed         = "LOGIN_FAILED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	ErrCodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewLoginFailedError はIdPとの通信失敗を利用者向けに一般化したエラーを生成する。
// IdPの生のエラー内容は含めない。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Login failed.",
		Category: "auth",
		Action:   "Please start the login again.",
	}
}

// NewInvalidStateError はstate不一致エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "The login request has expired or is invalid.",
		Category: "auth",
		Action:   "Please start the login again.",
	}
}

// NewAuthorizationDeniedError は同意拒否エラーを生成する。
func NewAuthorizationDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationDenied,
		Message:  "Access was not granted.",
		Category: "auth",
		Action:   "Approve the requested permissions to sign in.",
	}
}

// NewEmailNotVerifiedError は未検証メールアドレスでのログイン拒否エラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "Your email address is not verified by the identity provider.",
		Category: "auth",
		Action:   "Verify your email address with the provider and try again.",
	}
}

// NewInternalError はサーバー内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Please log in.",
	}
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to access this resource.",
		Category: "auth",
		Action:   "Contact an administrator if you need access.",
	}
}
