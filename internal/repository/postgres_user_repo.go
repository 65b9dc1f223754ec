package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// リフレッシュトークン許可リストはtext[]カラムとして同一行に保持し、
// 許可リストの更新を単一UPDATEで適用できるようにする。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, first_name, username, email, COALESCE(password_hash, ''),
	is_username_set, verified, api_key, refresh_tokens, COALESCE(profile_image_url, ''),
	created_at, updated_at`

// scanUser は1行をmodel.Userに読み取る。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.FirstName, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsUsernameSet, &user.Verified, &user.APIKey,
		pq.Array(&user.RefreshTokens), &user.ProfileImageURL,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// FindByUsername は指定usernameのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	)
	return scanUser(row)
}

// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// FindByUsernameOrEmail はusernameまたはemailに一致するユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`,
		identifier,
	)
	return scanUser(row)
}

// uniqueViolation はpqの一意性制約違反を表すエラーコード。
const uniqueViolation = pq.ErrorCode("23505")

// mapUserInsertError は一意性制約違反をAlreadyExistsErrorに変換する。
// 違反した制約名からusername/emailのどちらの重複かを判定する。
// それ以外のエラーはそのまま返す。
func mapUserInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		field := "username"
		if strings.Contains(pqErr.Constraint, "email") {
			field = "email"
		}
		return model.NewAlreadyExistsError(field)
	}
	return fmt.Errorf("failed to insert user: %w", err)
}

// Create はユーザーを作成する。
// 事前の重複チェックと並行して同じusername/emailが挿入された場合、
// DBの一意性制約違反をAlreadyExistsErrorとして返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, username, email, password_hash,
			is_username_set, verified, api_key, refresh_tokens, profile_image_url,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
		user.ID, user.FirstName, user.Username, user.Email, user.PasswordHash,
		user.IsUsernameSet, user.Verified, user.APIKey,
		pq.Array(user.RefreshTokens), user.ProfileImageURL,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapUserInsertError(err)
	}
	return nil
}

// AppendRefreshToken はユーザーの許可リストにトークンを追記する。
func (r *PostgresUserRepo) AppendRefreshToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_tokens = array_append(refresh_tokens, $2), updated_at = now()
		 WHERE id = $1`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to append refresh token: %w", err)
	}
	return nil
}

// RemoveRefreshToken は許可リストから一致するトークンだけを取り除く。
// トークンが存在しない場合もエラーにならない（冪等）。
func (r *PostgresUserRepo) RemoveRefreshToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_tokens = array_remove(refresh_tokens, $2), updated_at = now()
		 WHERE id = $1`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}
	return nil
}

// RotateRefreshToken は許可リストからoldを取り除きnewTokenを追記する。
// WHERE句でoldの存在を条件にした単一UPDATEのため、並行する2つの
// ローテーションが同じoldを提示しても成功するのは片方だけになる。
func (r *PostgresUserRepo) RotateRefreshToken(ctx context.Context, userID, old, newToken string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_tokens = array_append(array_remove(refresh_tokens, $2), $3),
		     updated_at = now()
		 WHERE id = $1 AND $2 = ANY(refresh_tokens)`,
		userID, old, newToken,
	)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
