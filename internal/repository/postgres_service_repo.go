package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresHelpServiceRepo はPostgreSQLを使用した支援記録リポジトリ。
type PostgresHelpServiceRepo struct {
	db *sql.DB
}

// NewPostgresHelpServiceRepo はPostgresHelpServiceRepoを生成する。
func NewPostgresHelpServiceRepo(db *sql.DB) *PostgresHelpServiceRepo {
	return &PostgresHelpServiceRepo{db: db}
}

const serviceColumns = `id, person_id, category_id, custom_data, status, notes, created_by, created_at, updated_at`

func scanHelpService(row interface{ Scan(...any) error }) (*model.HelpService, error) {
	s := &model.HelpService{}
	var raw []byte
	var createdBy sql.NullString
	if err := row.Scan(&s.ID, &s.PersonID, &s.CategoryID, &raw, &s.Status, &s.Notes,
		&createdBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	s.CustomData = doc
	s.CreatedBy = idPointer(createdBy)
	return s, nil
}

// Create は支援記録を作成する。
// (person_id, category_id) の一意制約違反はmodel.ErrConflictとして返す。
func (r *PostgresHelpServiceRepo) Create(ctx context.Context, s *model.HelpService) error {
	data, err := encodeDocument(s.CustomData)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO help_services (id, person_id, category_id, custom_data, status, notes, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.PersonID, s.CategoryID, data, string(s.Status), s.Notes, nullableID(s.CreatedBy), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("支援記録の作成に失敗しました", err)
	}
	return nil
}

// FindByID は指定IDの支援記録を取得する。見つからない場合はnilを返す。
func (r *PostgresHelpServiceRepo) FindByID(ctx context.Context, id string) (*model.HelpService, error) {
	if !isUUID(id) {
		return nil, nil
	}
	s, err := scanHelpService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM help_services WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("支援記録の取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByPersonAndCategory は人物と支援種別で支援記録を検索する。見つからない場合はnilを返す。
func (r *PostgresHelpServiceRepo) FindByPersonAndCategory(ctx context.Context, personID, categoryID string) (*model.HelpService, error) {
	if !isUUID(personID) || !isUUID(categoryID) {
		return nil, nil
	}
	s, err := scanHelpService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM help_services WHERE person_id = $1 AND category_id = $2`,
		personID, categoryID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("人物と支援種別による支援記録の検索に失敗しました: %w", err)
	}
	return s, nil
}

// ListByPerson は人物の支援記録を作成日時の昇順で返す。
func (r *PostgresHelpServiceRepo) ListByPerson(ctx context.Context, personID string) ([]*model.HelpService, error) {
	if !isUUID(personID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM help_services WHERE person_id = $1 ORDER BY created_at ASC, id ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("支援記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var services []*model.HelpService
	for rows.Next() {
		s, err := scanHelpService(rows)
		if err != nil {
			return nil, fmt.Errorf("支援記録行の読み取りに失敗しました: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("支援記録一覧の走査に失敗しました: %w", err)
	}
	return services, nil
}

// Update は状態・メモ・custom_dataを更新する。category_idは更新対象に含めない。
func (r *PostgresHelpServiceRepo) Update(ctx context.Context, s *model.HelpService) error {
	data, err := encodeDocument(s.CustomData)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE help_services
		 SET custom_data = $2, status = $3, notes = $4, updated_at = $5
		 WHERE id = $1`,
		s.ID, data, string(s.Status), s.Notes, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("支援記録の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("支援記録が見つかりません: %s", s.ID)
	}
	return nil
}

// CountByCreator は指定提供者が登録した支援記録数を返す。
func (r *PostgresHelpServiceRepo) CountByCreator(ctx context.Context, providerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM help_services WHERE created_by = $1`, providerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("登録支援記録数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountByCreatorPerCategory は指定提供者が登録した支援記録数を支援種別IDごとに返す。
func (r *PostgresHelpServiceRepo) CountByCreatorPerCategory(ctx context.Context, providerID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, COUNT(*) FROM help_services WHERE created_by = $1 GROUP BY category_id`,
		providerID,
	)
	if err != nil {
		return nil, fmt.Errorf("支援種別ごとの支援記録数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var categoryID string
		var n int
		if err := rows.Scan(&categoryID, &n); err != nil {
			return nil, fmt.Errorf("集計行の読み取りに失敗しました: %w", err)
		}
		counts[categoryID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計結果の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ HelpServiceRepository = (*PostgresHelpServiceRepo)(nil)
