package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, username, email, first_name, last_name, password_hash, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.CreatedAt)
	return a, err
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if !isUUID(id) {
		return nil, nil
	}
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return a, nil
}

// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	return a, nil
}

const insertAccountSQL = `INSERT INTO accounts (id, username, email, first_name, last_name, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func accountArgs(a *model.Account) []any {
	return []any{a.ID, a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.CreatedAt}
}

// Create は支援提供者を伴わないアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if _, err := r.db.ExecContext(ctx, insertAccountSQL, accountArgs(account)...); err != nil {
		return wrapWriteError("failed to insert account", err)
	}
	return nil
}

// CreateWithProvider はアカウントと支援提供者を同一トランザクションで作成する。
func (r *PostgresAccountRepo) CreateWithProvider(ctx context.Context, account *model.Account, provider *model.Provider) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// アカウントを作成
	_, err = tx.ExecContext(ctx, insertAccountSQL, accountArgs(account)...)
	if err != nil {
		return wrapWriteError("failed to insert account", err)
	}

	// 支援提供者を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO providers (id, account_id, bio, created_at) VALUES ($1, $2, $3, $4)`,
		provider.ID, provider.AccountID, provider.Bio, provider.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to insert provider", err)
	}

	// 担当支援種別を登録
	for _, categoryID := range provider.CategoryIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO provider_categories (provider_id, category_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			provider.ID, categoryID,
		)
		if err != nil {
			return wrapWriteError("failed to insert provider category", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
