package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// memoryUserRepo はemailとprovider_subject_idの一意制約を持つインメモリのUserRepository。
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	// staleEmailReads が正の間、FindByEmailは常にnilを返す。
	// 同時ログインで全員が検索に外れて作成へ進む状況を再現する。
	staleEmailReads int

	// テスト用に差し替え可能なエラー
	findErr   error
	createErr error

	createCalls int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*model.User)}
}

func (m *memoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.staleEmailReads > 0 {
		m.staleEmailReads--
		return nil, nil
	}
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUserRepo) FindByProviderSubjectID(_ context.Context, subject string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.ProviderSubjectID != nil && *u.ProviderSubjectID == subject {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: constraint users_email_key", model.ErrDuplicateAccount)
		}
		if u.ProviderSubjectID != nil && user.ProviderSubjectID != nil &&
			*u.ProviderSubjectID == *user.ProviderSubjectID {
			return fmt.Errorf("%w: constraint users_provider_subject_id_key", model.ErrDuplicateAccount)
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

// add はテストの前提となるユーザーを直接登録する。
func (m *memoryUserRepo) add(user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
}

func (m *memoryUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// memorySessionRepo はインメモリのSessionRepository。
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	now      func() time.Time

	findErr error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

func (m *memorySessionRepo) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *memorySessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(m.now()) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memorySessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// mockOAuthProvider はOAuthProviderのモック。
type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*model.ProviderProfile, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.ProviderProfile, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, model.ErrTokenExchangeFailed
}

// countingRecorder はLoginRecorderとResolverRecorderを兼ねる記録用モック。
type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	created  int
	retries  int
}

func (r *countingRecorder) RecordLogin(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) RecordUserCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *countingRecorder) RecordDuplicateRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

// upperSanitizer は呼び出しを確認するためのNameSanitizer。
type upperSanitizer struct{}

func (upperSanitizer) Sanitize(name string) string { return "[" + name + "]" }

func strPtr(s string) *string { return &s }

var (
	_ repository.UserRepository    = (*memoryUserRepo)(nil)
	_ repository.SessionRepository = (*memorySessionRepo)(nil)
	_ OAuthProvider                = (*mockOAuthProvider)(nil)
	_ LoginRecorder                = (*countingRecorder)(nil)
	_ ResolverRecorder             = (*countingRecorder)(nil)
)
