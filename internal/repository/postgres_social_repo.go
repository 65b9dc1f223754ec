package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresSocialRepo はPostgreSQLを使用したソーシャルID紐付けリポジトリ。
type PostgresSocialRepo struct {
	db *sql.DB
}

// NewPostgresSocialRepo はPostgresSocialRepoを生成する。
func NewPostgresSocialRepo(db *sql.DB) *PostgresSocialRepo {
	return &PostgresSocialRepo{db: db}
}

// FindByProviderAndSubject はproviderとprovider_subject_idで紐付けを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresSocialRepo) FindByProviderAndSubject(ctx context.Context, provider, subjectID string) (*model.SocialIdentity, error) {
	identity := &model.SocialIdentity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_subject_id, created_at
		 FROM social_identities
		 WHERE provider = $1 AND provider_subject_id = $2`,
		provider, subjectID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderSubjectID, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find social identity: %w", err)
	}

	return identity, nil
}

// Create は紐付けを作成する。
func (r *PostgresSocialRepo) Create(ctx context.Context, identity *model.SocialIdentity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO social_identities (id, user_id, provider, provider_subject_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderSubjectID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert social identity: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SocialIdentityRepository = (*PostgresSocialRepo)(nil)
