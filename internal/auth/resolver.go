package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

const defaultResolveAttempts = 3

// NameSanitizer はIdP由来の表示名を保存前に無害化する。
type NameSanitizer interface {
	Sanitize(name string) string
}

// ResolverRecorder はアカウント解決のメトリクスを記録する。
type ResolverRecorder interface {
	RecordUserCreated()
	RecordDuplicateRetry()
}

// ResolverConfig はAccountResolverの設定。
type ResolverConfig struct {
	// RequireVerifiedEmail がtrueの場合、email_verifiedでないプロフィールを拒否する。
	RequireVerifiedEmail bool
	// MaxAttempts は一意制約競合時の再試行を含む最大試行回数。
	MaxAttempts int
}

// AccountResolver はIdPのプロフィールをローカルユーザーへ解決する。
// 見つからなければ作成する（find-or-create）。
type AccountResolver struct {
	users     repository.UserRepository
	sanitizer NameSanitizer
	recorder  ResolverRecorder
	validate  *validator.Validate
	config    ResolverConfig
	now       func() time.Time
}

// NewAccountResolver はAccountResolverを生成する。
// sanitizer・recorderはnilでもよい。
func NewAccountResolver(users repository.UserRepository, sanitizer NameSanitizer, recorder ResolverRecorder, config ResolverConfig) *AccountResolver {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultResolveAttempts
	}
	return &AccountResolver{
		users:     users,
		sanitizer: sanitizer,
		recorder:  recorder,
		validate:  validator.New(),
		config:    config,
		now:       time.Now,
	}
}

// Resolve はプロフィールのemailでユーザーを検索し、存在しなければCustomerとして作成する。
// 既存ユーザーは変更せずに返す（初回ログイン時の値を維持する）。
// 同じemailの同時作成はDBの一意制約で1件に収束させ、負けた側は検索として再試行する。
func (r *AccountResolver) Resolve(ctx context.Context, profile *model.ProviderProfile) (*model.User, error) {
	if profile == nil {
		return nil, fmt.Errorf("%w: nil profile", model.ErrProfileFetchFailed)
	}
	// emailは正規化した値で検証・照合する
	normalized := *profile
	normalized.Email = repository.NormalizeEmail(profile.Email)
	profile = &normalized

	if err := r.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("%w: invalid profile: %w", model.ErrProfileFetchFailed, err)
	}
	if r.config.RequireVerifiedEmail && !profile.EmailVerified {
		return nil, model.ErrUnverifiedEmail
	}

	email := profile.Email

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		// 1. emailで既存ユーザーを検索
		existing, err := r.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil {
			r.logExisting(existing, profile)
			return existing, nil
		}

		// 2. 新規ユーザーを作成
		user := r.newUser(email, profile)
		err = r.users.Create(ctx, user)
		if err == nil {
			if r.recorder != nil {
				r.recorder.RecordUserCreated()
			}
			slog.Info("new user created",
				slog.String("user_id", user.ID),
				slog.String("role", string(user.Role)),
			)
			return user, nil
		}
		if !errors.Is(err, model.ErrDuplicateAccount) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		// 3. 競合に負けた: 同じIdP identityが別emailで登録済みかを確認してから再検索する
		if r.recorder != nil {
			r.recorder.RecordDuplicateRetry()
		}
		slog.Warn("concurrent account creation detected, retrying as lookup",
			slog.Int("attempt", attempt),
		)

		linked, err := r.users.FindByProviderSubjectID(ctx, profile.ProviderSubjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by provider subject: %w", err)
		}
		if linked != nil {
			return linked, nil
		}
	}

	return nil, fmt.Errorf("account resolution did not settle after %d attempts: %w", r.config.MaxAttempts, model.ErrDuplicateAccount)
}

// newUser はプロフィールから新規ユーザーを組み立てる。
func (r *AccountResolver) newUser(email string, profile *model.ProviderProfile) *model.User {
	name := profile.DisplayName
	if r.sanitizer != nil {
		name = r.sanitizer.Sanitize(name)
	}
	subject := profile.ProviderSubjectID
	now := r.now()

	return &model.User{
		ID:                uuid.New().String(),
		DisplayName:       name,
		Email:             email,
		ProviderSubjectID: &subject,
		Role:              model.RoleCustomer,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// logExisting は既存ユーザーのログインを記録する。
// IdP未連携のアカウントにemailだけで紐付いた場合は警告する。
func (r *AccountResolver) logExisting(user *model.User, profile *model.ProviderProfile) {
	switch {
	case user.ProviderSubjectID == nil:
		slog.Warn("provider login matched unlinked account by email",
			slog.String("user_id", user.ID),
			slog.Bool("email_verified", profile.EmailVerified),
		)
	case *user.ProviderSubjectID != profile.ProviderSubjectID:
		slog.Warn("provider subject differs from stored subject",
			slog.String("user_id", user.ID),
		)
	default:
		slog.Info("existing user logged in", slog.String("user_id", user.ID))
	}
}
