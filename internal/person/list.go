package person

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/search"
)

const (
	// DefaultPageSize は一覧の1ページあたりの既定件数。
	DefaultPageSize = 50
	// MaxPageSize は一覧の1ページあたりの最大件数。
	MaxPageSize = 200

	exportTimeLayout = "02.01.2006 15:04"
	utf8BOM          = "\uFEFF"
)

// Summary は一覧に表示する人物の要約。
// Fieldsには一覧表示対象（show_in_summary）の基本フィールドのみを含める。
type Summary struct {
	ID          string
	DisplayName string
	Fields      []FieldValue
	CreatedBy   *string
	CreatedAt   time.Time
}

// ListResult は一覧の1ページ分の結果。
type ListResult struct {
	People        []Summary
	SummaryFields []model.FieldDefinition
	Page          int
	PageSize      int
	HasMore       bool
}

// ListOptions は一覧のページ指定。
type ListOptions struct {
	Page     int
	PageSize int
}

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

func summaryFields(defs []model.FieldDefinition) []model.FieldDefinition {
	out := make([]model.FieldDefinition, 0, len(defs))
	for _, d := range defs {
		if d.ShowInSummary {
			out = append(out, d)
		}
	}
	return out
}

// Query は検索パラメータを現在のフィールド定義で検索条件に変換する。
func (s *Service) Query(ctx context.Context, params search.Params) (model.PersonQuery, []model.FieldDefinition, error) {
	baseDefs, err := s.catalog.BaseFields(ctx)
	if err != nil {
		return model.PersonQuery{}, nil, err
	}
	var customDefs []model.FieldDefinition
	if params.CategoryID != "" {
		customDefs, err = s.catalog.CategoryFields(ctx, params.CategoryID)
		if err != nil {
			return model.PersonQuery{}, nil, err
		}
	}
	return search.Compile(params, baseDefs, customDefs), baseDefs, nil
}

// List は検索条件に一致する人物を新しい順に1ページ分返す。
// 結果は逐次取得し、次ページの有無がわかった時点で走査を打ち切る。
func (s *Service) List(ctx context.Context, params search.Params, opts ListOptions) (*ListResult, error) {
	opts = opts.normalize()
	q, baseDefs, err := s.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &ListResult{
		People:        []Summary{},
		SummaryFields: summaryFields(baseDefs),
		Page:          opts.Page,
		PageSize:      opts.PageSize,
	}

	skip := (opts.Page - 1) * opts.PageSize
	i := 0
	for p, err := range s.persons.Search(ctx, q) {
		if err != nil {
			return nil, fmt.Errorf("人物の検索に失敗しました: %w", err)
		}
		if i < skip {
			i++
			continue
		}
		if len(result.People) == opts.PageSize {
			result.HasMore = true
			break
		}
		result.People = append(result.People, Summary{
			ID:          p.ID,
			DisplayName: DisplayName(p),
			Fields:      resolveFields(result.SummaryFields, p.BaseData),
			CreatedBy:   p.CreatedBy,
			CreatedAt:   p.CreatedAt,
		})
		i++
	}
	return result, nil
}

// ExportCSV は検索条件に一致する人物をCSVで書き出す。
// 表計算ソフトで文字化けしないよう先頭にUTF-8のBOMを付ける。
// 列はID・氏名・一覧表示対象の基本フィールド・支援記録数・登録者・登録日時。
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, params search.Params) (int, error) {
	q, baseDefs, err := s.Query(ctx, params)
	if err != nil {
		return 0, err
	}
	columns := summaryFields(baseDefs)

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return 0, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
	}
	cw := csv.NewWriter(w)

	header := []string{"ID", "氏名"}
	for _, d := range columns {
		header = append(header, d.DisplayName)
	}
	header = append(header, "支援記録数", "登録者", "登録日時")
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
	}

	// 検索カーソルを閉じてから人物ごとの参照を行い、1件のエクスポートで接続を2本同時に使わないようにする
	var people []*model.Person
	for p, err := range s.persons.Search(ctx, q) {
		if err != nil {
			return 0, fmt.Errorf("人物の検索に失敗しました: %w", err)
		}
		people = append(people, p)
	}

	creators := map[string]string{}
	rows := 0
	for _, p := range people {
		services, err := s.services.ListByPerson(ctx, p.ID)
		if err != nil {
			return rows, fmt.Errorf("支援記録の取得に失敗しました: %w", err)
		}
		creator, err := s.creatorName(ctx, p.CreatedBy, creators)
		if err != nil {
			return rows, err
		}

		record := []string{p.ID, DisplayName(p)}
		for _, d := range columns {
			record = append(record, form.DisplayString(p.BaseData[d.FieldKey]))
		}
		record = append(record,
			strconv.Itoa(len(services)),
			creator,
			p.CreatedAt.Local().Format(exportTimeLayout),
		)
		if err := cw.Write(record); err != nil {
			return rows, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
	}
	return rows, nil
}

// creatorName は登録者のユーザー名を返す。登録者が削除済みの場合は "-"。
func (s *Service) creatorName(ctx context.Context, providerID *string, cache map[string]string) (string, error) {
	if providerID == nil {
		return "-", nil
	}
	if name, ok := cache[*providerID]; ok {
		return name, nil
	}
	provider, err := s.providers.FindByID(ctx, *providerID)
	if err != nil {
		return "", fmt.Errorf("登録者の取得に失敗しました: %w", err)
	}
	name := "-"
	if provider != nil {
		name = provider.Username
	}
	cache[*providerID] = name
	return name, nil
}
