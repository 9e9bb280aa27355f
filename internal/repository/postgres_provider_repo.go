package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresProviderRepo はPostgreSQLを使用した支援提供者リポジトリ。
type PostgresProviderRepo struct {
	db *sql.DB
}

// NewPostgresProviderRepo はPostgresProviderRepoを生成する。
func NewPostgresProviderRepo(db *sql.DB) *PostgresProviderRepo {
	return &PostgresProviderRepo{db: db}
}

// providerSelect は提供者とアカウント名、担当支援種別IDの一覧を取得するクエリ。
const providerSelect = `
	SELECT p.id, p.account_id, a.username, p.bio, p.created_at,
	       COALESCE(array_agg(pc.category_id::text ORDER BY pc.category_id)
	                FILTER (WHERE pc.category_id IS NOT NULL), '{}')
	FROM providers p
	INNER JOIN accounts a ON a.id = p.account_id
	LEFT JOIN provider_categories pc ON pc.provider_id = p.id`

func (r *PostgresProviderRepo) findOne(ctx context.Context, where string, arg any) (*model.Provider, error) {
	p := &model.Provider{}
	var categoryIDs []string
	err := r.db.QueryRowContext(ctx,
		providerSelect+` WHERE `+where+` GROUP BY p.id, a.username`,
		arg,
	).Scan(&p.ID, &p.AccountID, &p.Username, &p.Bio, &p.CreatedAt, pq.Array(&categoryIDs))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CategoryIDs = categoryIDs
	return p, nil
}

// FindByID は指定IDの提供者を取得する。見つからない場合はnilを返す。
func (r *PostgresProviderRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	if !isUUID(id) {
		return nil, nil
	}
	p, err := r.findOne(ctx, "p.id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("提供者の取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindByAccountID はアカウントIDで提供者を検索する。提供者として登録されていない場合はnilを返す。
func (r *PostgresProviderRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Provider, error) {
	if !isUUID(accountID) {
		return nil, nil
	}
	p, err := r.findOne(ctx, "p.account_id = $1", accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントによる提供者の検索に失敗しました: %w", err)
	}
	return p, nil
}

// Count は提供者数を返す。
func (r *PostgresProviderRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM providers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("提供者数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ProviderRepository = (*PostgresProviderRepo)(nil)
