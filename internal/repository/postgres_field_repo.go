package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresFieldDefinitionRepo はPostgreSQLを使用したフィールド定義リポジトリ。
// 基本フィールドはbase_fields、追加フィールドはcategory_fieldsに保存する。
type PostgresFieldDefinitionRepo struct {
	db *sql.DB
}

// NewPostgresFieldDefinitionRepo はPostgresFieldDefinitionRepoを生成する。
func NewPostgresFieldDefinitionRepo(db *sql.DB) *PostgresFieldDefinitionRepo {
	return &PostgresFieldDefinitionRepo{db: db}
}

// ListBaseFields は基本フィールドを表示順で返す。
func (r *PostgresFieldDefinitionRepo) ListBaseFields(ctx context.Context) ([]model.FieldDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, field_key, kind, required, display_order, placeholder, show_in_summary, choices
		 FROM base_fields
		 ORDER BY display_order ASC, field_key ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("基本フィールドの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var defs []model.FieldDefinition
	for rows.Next() {
		d := model.FieldDefinition{Scope: model.FieldScopeBase}
		if err := rows.Scan(&d.ID, &d.DisplayName, &d.FieldKey, &d.Kind, &d.Required, &d.Order,
			&d.Placeholder, &d.ShowInSummary, &d.RawChoices); err != nil {
			return nil, fmt.Errorf("基本フィールド行の読み取りに失敗しました: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("基本フィールドの走査に失敗しました: %w", err)
	}
	return defs, nil
}

// ListCategoryFields は指定支援種別の追加フィールドを表示順で返す。
func (r *PostgresFieldDefinitionRepo) ListCategoryFields(ctx context.Context, categoryID string) ([]model.FieldDefinition, error) {
	if !isUUID(categoryID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, display_name, field_key, kind, required, display_order, placeholder, choices
		 FROM category_fields
		 WHERE category_id = $1
		 ORDER BY display_order ASC, field_key ASC`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("追加フィールドの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var defs []model.FieldDefinition
	for rows.Next() {
		d := model.FieldDefinition{Scope: model.FieldScopeCategory}
		if err := rows.Scan(&d.ID, &d.CategoryID, &d.DisplayName, &d.FieldKey, &d.Kind, &d.Required,
			&d.Order, &d.Placeholder, &d.RawChoices); err != nil {
			return nil, fmt.Errorf("追加フィールド行の読み取りに失敗しました: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("追加フィールドの走査に失敗しました: %w", err)
	}
	return defs, nil
}

// CreateBaseField は基本フィールドを作成する。
func (r *PostgresFieldDefinitionRepo) CreateBaseField(ctx context.Context, d *model.FieldDefinition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO base_fields (id, display_name, field_key, kind, required, display_order, placeholder, show_in_summary, choices)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.DisplayName, d.FieldKey, d.Kind, d.Required, d.Order, d.Placeholder, d.ShowInSummary, d.RawChoices,
	)
	if err != nil {
		return wrapWriteError("基本フィールドの作成に失敗しました", err)
	}
	return nil
}

// CreateCategoryField は追加フィールドを作成する。
func (r *PostgresFieldDefinitionRepo) CreateCategoryField(ctx context.Context, d *model.FieldDefinition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO category_fields (id, category_id, display_name, field_key, kind, required, display_order, placeholder, choices)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.CategoryID, d.DisplayName, d.FieldKey, d.Kind, d.Required, d.Order, d.Placeholder, d.RawChoices,
	)
	if err != nil {
		return wrapWriteError("追加フィールドの作成に失敗しました", err)
	}
	return nil
}

// compile-time interface check
var _ FieldDefinitionRepository = (*PostgresFieldDefinitionRepo)(nil)
