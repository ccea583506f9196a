// Package auth はOAuth認証フロー、アカウント解決、セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/storefront/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*model.ProviderProfile, error)
}

// LoginRecorder はログイン結果のメトリクスを記録する。
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// ログイン結果のラベル
const (
	OutcomeSuccess           = "success"
	OutcomeDenied            = "denied"
	OutcomeInvalidState      = "invalid_state"
	OutcomeTokenExchangeFail = "token_exchange_failed"
	OutcomeProfileFetchFail  = "profile_fetch_failed"
	OutcomeUnverifiedEmail   = "unverified_email"
	OutcomeInternalError     = "error"
)

// AuthorizationRequest はIdPへのリダイレクトに必要な値。
type AuthorizationRequest struct {
	// URL はIdPの同意画面へのURL。
	URL string
	// StateToken はブラウザに保存する署名済みstate。
	StateToken string
}

// CallbackParams はIdPからのコールバックで受け取る値。
type CallbackParams struct {
	Code  string
	State string
	// Error はIdPが返したerrorパラメータ（例: access_denied）。
	Error string
	// StateToken はbeginAuthorizationで発行しCookieに保存したstate。
	StateToken string
}

// Service はログインフロー全体を組み立てる。
// OAuthクライアント → AccountResolver → SessionManager の順に処理する。
type Service struct {
	oauth    OAuthProvider
	states   *StateCodec
	resolver *AccountResolver
	sessions *SessionManager
	recorder LoginRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	oauth OAuthProvider,
	states *StateCodec,
	resolver *AccountResolver,
	sessions *SessionManager,
	recorder LoginRecorder,
) *Service {
	return &Service{
		oauth:    oauth,
		states:   states,
		resolver: resolver,
		sessions: sessions,
		recorder: recorder,
	}
}

// BeginAuthorization はstateを発行し、IdPの同意画面へのURLを返す。
// ローカルの状態は変更しない。
func (s *Service) BeginAuthorization() (*AuthorizationRequest, error) {
	nonce, token, err := s.states.Issue()
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{
		URL:        s.oauth.GetLoginURL(nonce),
		StateToken: token,
	}, nil
}

// CompleteAuthorization はコールバックを検証し、IdPのプロフィールを取得する。
// ユーザーやセッションは作成しない。
func (s *Service) CompleteAuthorization(ctx context.Context, params CallbackParams) (*model.ProviderProfile, error) {
	// 1. stateの検証（CSRF対策）
	if err := s.states.Verify(params.StateToken, params.State); err != nil {
		return nil, err
	}

	// 2. 同意拒否
	if params.Error != "" {
		return nil, fmt.Errorf("%w: provider returned %q", model.ErrAuthorizationDenied, params.Error)
	}

	// 3. 認可コードの交換とプロフィール取得
	if params.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", model.ErrTokenExchangeFailed)
	}
	return s.oauth.ExchangeCode(ctx, params.Code)
}

// Login はコールバックを処理し、ユーザーを解決してセッションを発行する。
func (s *Service) Login(ctx context.Context, params CallbackParams) (*model.Session, *model.User, error) {
	session, user, err := s.login(ctx, params)
	s.record(err)
	return session, user, err
}

func (s *Service) login(ctx context.Context, params CallbackParams) (*model.Session, *model.User, error) {
	profile, err := s.CompleteAuthorization(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.resolver.Resolve(ctx, profile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	session, err := s.sessions.Establish(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("user logged out")
	return nil
}

// record はログイン結果をメトリクスに記録する。
func (s *Service) record(err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordLogin(Outcome(err))
}

// Outcome はログイン処理のエラーを結果ラベルに分類する。
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, model.ErrInvalidState):
		return OutcomeInvalidState
	case errors.Is(err, model.ErrAuthorizationDenied):
		return OutcomeDenied
	case errors.Is(err, model.ErrTokenExchangeFailed):
		return OutcomeTokenExchangeFail
	case errors.Is(err, model.ErrProfileFetchFailed):
		return OutcomeProfileFetchFail
	case errors.Is(err, model.ErrUnverifiedEmail):
		return OutcomeUnverifiedEmail
	default:
		return OutcomeInternalError
	}
}
