// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
// 値は Admin / Seller / Customer のいずれかで、空になることはない。
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleSeller   Role = "Seller"
	RoleCustomer Role = "Customer"
)

// Valid はロールが定義済みの値かどうかを判定する。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return true
	default:
		return false
	}
}

// User はストアフロントのローカルアカウントを表す。
// 1つのIdP identityに対して高々1つのUserが存在する。
type User struct {
	ID          string
	DisplayName string
	Email       string
	// ProviderSubjectID はIdPのsub。IdP未連携のアカウントではnil。
	ProviderSubjectID *string
	Role              Role
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid はセッションが期限内かどうかを判定する。
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// ProviderProfile はIdPから取得した認証済みユーザーのプロフィール。
type ProviderProfile struct {
	ProviderSubjectID string `validate:"required"`
	Email             string `validate:"required,email"`
	DisplayName       string
	EmailVerified     bool
}
