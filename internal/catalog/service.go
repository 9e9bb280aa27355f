// Package catalog は支援種別とフィールド定義の参照・初期投入を提供する。
//
// 定義はキャッシュせず毎回ストアから読み出すため、管理者が追加したフィールドは
// 次のフォーム生成から即座に反映される。
package catalog

import (
	"context"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
)

// LookupField はフィールド定義参照APIで返す1フィールド分の情報。
type LookupField struct {
	Name        string          `json:"name"`
	Key         string          `json:"key"`
	Kind        model.FieldKind `json:"kind"`
	Required    bool            `json:"required"`
	Placeholder string          `json:"placeholder"`
	Options     []string        `json:"options,omitempty"`
}

// FieldLookup は支援種別の追加フィールド定義一覧。
// 支援種別の選択が変わったときにクライアントがフォームの追加フィールド部分を再描画するために使う。
type FieldLookup struct {
	CategoryID   string        `json:"category_id"`
	CategoryName string        `json:"category_name"`
	Fields       []LookupField `json:"fields"`
}

// Service は支援種別・フィールド定義の参照サービス。
type Service struct {
	categories repository.CategoryRepository
	fields     repository.FieldDefinitionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(categories repository.CategoryRepository, fields repository.FieldDefinitionRepository) *Service {
	return &Service{categories: categories, fields: fields}
}

// ListCategories は全支援種別を表示順で返す。
func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("支援種別一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// GetCategory は支援種別を取得する。存在しない場合はNotFoundのAPIErrorを返す。
func (s *Service) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("支援種別の取得に失敗しました: %w", err)
	}
	if category == nil {
		return nil, model.NewNotFoundError("category", id)
	}
	return category, nil
}

// CategoryIndex は支援種別をIDで引けるマップを返す。
func (s *Service) CategoryIndex(ctx context.Context) (map[string]*model.Category, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*model.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index, nil
}

// BaseFields は基本フィールド定義を表示順で返す。
func (s *Service) BaseFields(ctx context.Context) ([]model.FieldDefinition, error) {
	defs, err := s.fields.ListBaseFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("基本フィールドの取得に失敗しました: %w", err)
	}
	return defs, nil
}

// CategoryFields は支援種別の追加フィールド定義を表示順で返す。
func (s *Service) CategoryFields(ctx context.Context, categoryID string) ([]model.FieldDefinition, error) {
	defs, err := s.fields.ListCategoryFields(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("追加フィールドの取得に失敗しました: %w", err)
	}
	return defs, nil
}

// LookupCategoryFields は支援種別の追加フィールド定義を参照用の形式で返す。
// 選択肢はchoice/select種別の場合のみ含める。
func (s *Service) LookupCategoryFields(ctx context.Context, categoryID string) (*FieldLookup, error) {
	category, err := s.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	defs, err := s.CategoryFields(ctx, category.ID)
	if err != nil {
		return nil, err
	}

	lookup := &FieldLookup{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Fields:       make([]LookupField, 0, len(defs)),
	}
	for _, d := range defs {
		f := LookupField{
			Name:        d.DisplayName,
			Key:         d.FieldKey,
			Kind:        d.Kind,
			Required:    d.Required,
			Placeholder: d.Placeholder,
		}
		if d.Kind.IsChoice() {
			f.Options = d.ChoiceOptions()
		}
		lookup.Fields = append(lookup.Fields, f)
	}
	return lookup, nil
}
