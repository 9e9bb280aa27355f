package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/aidbook/internal/model"
)

// PostgresPersonRepo はPostgreSQLを使用した人物リポジトリ。
// base_dataはJSONBとして保存する。
type PostgresPersonRepo struct {
	db *sql.DB
}

// NewPostgresPersonRepo はPostgresPersonRepoを生成する。
func NewPostgresPersonRepo(db *sql.DB) *PostgresPersonRepo {
	return &PostgresPersonRepo{db: db}
}

const personColumns = `p.id, p.base_data, p.created_by, p.created_at, p.updated_at`

func scanPerson(row interface{ Scan(...any) error }) (*model.Person, error) {
	p := &model.Person{}
	var raw []byte
	var createdBy sql.NullString
	if err := row.Scan(&p.ID, &raw, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	p.BaseData = doc
	p.CreatedBy = idPointer(createdBy)
	return p, nil
}

// Create は人物を作成する。
func (r *PostgresPersonRepo) Create(ctx context.Context, p *model.Person) error {
	data, err := encodeDocument(p.BaseData)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO persons (id, base_data, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, data, nullableID(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("人物の作成に失敗しました", err)
	}
	return nil
}

// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
func (r *PostgresPersonRepo) FindByID(ctx context.Context, id string) (*model.Person, error) {
	if !isUUID(id) {
		return nil, nil
	}
	p, err := scanPerson(r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons p WHERE p.id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	return p, nil
}

// SaveBaseData はbase_dataをドキュメント全体で置き換える。
func (r *PostgresPersonRepo) SaveBaseData(ctx context.Context, id string, data model.Document) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE persons SET base_data = $2, updated_at = NOW() WHERE id = $1`,
		id, raw,
	)
	if err != nil {
		return fmt.Errorf("人物の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("人物が見つかりません: %s", id)
	}
	return nil
}

// Search は条件に一致する人物を作成日時の降順で返す。
// 支援記録に対する条件はそれぞれ独立したEXISTSで評価するため、結合による重複は発生しない。
func (r *PostgresPersonRepo) Search(ctx context.Context, q model.PersonQuery) iter.Seq2[*model.Person, error] {
	return func(yield func(*model.Person, error) bool) {
		// 存在し得ない支援種別での絞り込みは常に0件
		if q.CategoryID != "" && !isUUID(q.CategoryID) {
			return
		}
		query, args := buildPersonSearch(q)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("人物の検索に失敗しました: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPerson(rows)
			if err != nil {
				yield(nil, fmt.Errorf("人物行の読み取りに失敗しました: %w", err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("人物の走査に失敗しました: %w", err))
		}
	}
}

// buildPersonSearch は検索条件からSQLとパラメータを組み立てる。
func buildPersonSearch(q model.PersonQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" && len(q.SearchKeys) > 0 {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM unnest(%s::text[]) AS k(key) WHERE p.base_data->>k.key ILIKE %s)`,
			param(pq.Array(q.SearchKeys)), param(containsPattern(q.Search)),
		))
	}

	for _, f := range q.FieldFilters {
		if f.Exact {
			conds = append(conds, fmt.Sprintf(`p.base_data->>%s = %s`, param(f.Key), param(f.Value)))
		} else {
			conds = append(conds, fmt.Sprintf(`p.base_data->>%s ILIKE %s`, param(f.Key), param(containsPattern(f.Value))))
		}
	}

	if q.CategoryID != "" {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM help_services s WHERE s.person_id = p.id AND s.category_id = %s)`,
			param(q.CategoryID),
		))

		for _, f := range q.CustomFilters {
			conds = append(conds, fmt.Sprintf(
				`EXISTS (SELECT 1 FROM help_services s WHERE s.person_id = p.id AND s.category_id = %s AND s.custom_data->>%s ILIKE %s)`,
				param(q.CategoryID), param(f.Key), param(containsPattern(f.Value)),
			))
		}
	}

	if q.Status != "" {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM help_services s WHERE s.person_id = p.id AND s.status = %s)`,
			param(string(q.Status)),
		))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + personColumns + ` FROM persons p`)
	if len(conds) > 0 {
		b.WriteString(` WHERE `)
		b.WriteString(strings.Join(conds, ` AND `))
	}
	b.WriteString(` ORDER BY p.created_at DESC, p.id DESC`)

	return b.String(), args
}

// Count は人物数を返す。
func (r *PostgresPersonRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&count); err != nil {
		return 0, fmt.Errorf("人物数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountByCreator は指定提供者が登録した人物数を返す。
func (r *PostgresPersonRepo) CountByCreator(ctx context.Context, providerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM persons WHERE created_by = $1`, providerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("登録人物数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListRecentByCreator は指定提供者が登録した人物を新しい順にlimit件返す。
func (r *PostgresPersonRepo) ListRecentByCreator(ctx context.Context, providerID string, limit int) ([]*model.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons p
		 WHERE p.created_by = $1
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2`,
		providerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("最近の登録人物の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var persons []*model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("人物行の読み取りに失敗しました: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("人物の走査に失敗しました: %w", err)
	}
	return persons, nil
}

// compile-time interface check
var _ PersonRepository = (*PostgresPersonRepo)(nil)
