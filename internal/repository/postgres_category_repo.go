package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用した支援種別リポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

const categoryColumns = `id, name, description, icon, display_order, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	c := &model.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.DisplayOrder, &c.CreatedAt)
	return c, err
}

// List は全支援種別を表示順（同順位は名前順）で返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY display_order ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("支援種別一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("支援種別行の読み取りに失敗しました: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("支援種別一覧の走査に失敗しました: %w", err)
	}
	return categories, nil
}

// FindByID は指定IDの支援種別を取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	if !isUUID(id) {
		return nil, nil
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("支援種別の取得に失敗しました: %w", err)
	}
	return c, nil
}

// FindByName は名前で支援種別を検索する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = $1`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("名前による支援種別の検索に失敗しました: %w", err)
	}
	return c, nil
}

// Create は支援種別を作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, icon, display_order, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Description, c.Icon, c.DisplayOrder, c.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("支援種別の作成に失敗しました", err)
	}
	return nil
}

// Count は支援種別数を返す。
func (r *PostgresCategoryRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("支援種別数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
