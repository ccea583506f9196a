package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// sessionTokenBytes はセッショントークンの乱数バイト数。
const sessionTokenBytes = 32

// SessionManager はサーバー側セッションの発行・検証・破棄を行う。
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager はSessionManagerを生成する。ttlは固定の有効期間。
func NewSessionManager(sessions repository.SessionRepository, users repository.UserRepository, ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL はセッションの有効期間を返す。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Establish はユーザーに新しいセッションを発行し永続化する。
func (m *SessionManager) Establish(ctx context.Context, user *model.User) (*model.Session, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("establish session: user is required")
	}

	token, err := generateToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:        token,
		UserID:    user.ID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Current はセッショントークンから現在のユーザーを取得する。
// トークンなし・無効・期限切れ・ユーザー不在の場合は(nil, nil)を返す。
// エラーはストレージ障害の場合のみ返す。
func (m *SessionManager) Current(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	session, err := m.sessions.FindByID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if !session.Valid(m.now()) {
		return nil, nil
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Destroy はセッションを破棄する。冪等で、無効なトークンでもエラーにしない。
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.DeleteByID(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired は期限切れセッションを削除し、削除件数を返す。
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx)
}
