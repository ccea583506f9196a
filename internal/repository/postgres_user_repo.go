package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/storefront/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = pq.ErrorCode("23505")

const userColumns = `id, display_name, email, provider_subject_id, role, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db DBTX
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		NormalizeEmail(email),
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByProviderSubjectID はIdPのsubでユーザーを検索する。
func (r *PostgresUserRepo) FindByProviderSubjectID(ctx context.Context, subjectID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider_subject_id = $1`,
		subjectID,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider subject ID: %w", err)
	}
	return user, nil
}

// Create はユーザーを同一トランザクションで作成する。
// 一意制約違反はmodel.ErrDuplicateAccountに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.DisplayName, NormalizeEmail(user.Email), user.ProviderSubjectID,
		string(user.Role), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translateInsertError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateInsertError(err))
	}

	return nil
}

// NormalizeEmail は照合キーとして使うメールアドレスを正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translateInsertError はpqの一意制約違反をmodel.ErrDuplicateAccountに変換する。
// それ以外のエラーはそのまま返す。
func translateInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: constraint %s", model.ErrDuplicateAccount, pqErr.Constraint)
	}
	return err
}

// rowScanner は*sql.Rowのスキャン部分を抽象化する。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をmodel.Userに読み込む。行がない場合はnilを返す。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var subjectID sql.NullString
	var role string

	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &subjectID, &role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if subjectID.Valid {
		user.ProviderSubjectID = &subjectID.String
	}
	user.Role = model.Role(role)
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %s has unknown role %q", user.ID, role)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
