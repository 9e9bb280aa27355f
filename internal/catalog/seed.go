package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aidbook/internal/model"
)

//go:embed defaults.json
var defaultSeed []byte

type seedField struct {
	Name          string          `json:"name"`
	Key           string          `json:"key"`
	Kind          model.FieldKind `json:"kind"`
	Required      bool            `json:"required"`
	ShowInSummary bool            `json:"show_in_summary"`
	Placeholder   string          `json:"placeholder"`
	Order         int             `json:"order"`
	Choices       string          `json:"choices"`
}

type seedCategory struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Icon         string      `json:"icon"`
	DisplayOrder int         `json:"display_order"`
	Fields       []seedField `json:"fields"`
}

type seedFile struct {
	BaseFields []seedField    `json:"base_fields"`
	Categories []seedCategory `json:"categories"`
}

// SeedResult は初期データ投入の結果。既に存在したものは作成せずスキップ数に数える。
type SeedResult struct {
	CategoriesCreated int
	CategoriesSkipped int
	FieldsCreated     int
	FieldsSkipped     int
}

// Seed は組み込みの既定フィールド定義と支援種別を投入する。
func (s *Service) Seed(ctx context.Context) (*SeedResult, error) {
	return s.SeedFrom(ctx, defaultSeed)
}

// SeedFrom はJSON形式の定義を投入する。
// 同名の支援種別や同じキーのフィールドが既にある場合は変更せずスキップするため、何度実行してもよい。
func (s *Service) SeedFrom(ctx context.Context, data []byte) (*SeedResult, error) {
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("初期データの解析に失敗しました: %w", err)
	}

	result := &SeedResult{}

	for _, f := range file.BaseFields {
		def, err := f.definition(model.FieldScopeBase, "")
		if err != nil {
			return nil, err
		}
		if err := s.fields.CreateBaseField(ctx, def); err != nil {
			if errors.Is(err, model.ErrConflict) {
				result.FieldsSkipped++
				continue
			}
			return nil, fmt.Errorf("基本フィールド %s の投入に失敗しました: %w", f.Key, err)
		}
		result.FieldsCreated++
	}

	for _, c := range file.Categories {
		category, created, err := s.getOrCreateCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		if created {
			result.CategoriesCreated++
		} else {
			result.CategoriesSkipped++
		}

		for _, f := range c.Fields {
			def, err := f.definition(model.FieldScopeCategory, category.ID)
			if err != nil {
				return nil, err
			}
			if err := s.fields.CreateCategoryField(ctx, def); err != nil {
				if errors.Is(err, model.ErrConflict) {
					result.FieldsSkipped++
					continue
				}
				return nil, fmt.Errorf("追加フィールド %s/%s の投入に失敗しました: %w", c.Name, f.Key, err)
			}
			result.FieldsCreated++
		}
	}

	slog.Info("seed completed",
		slog.Int("categories_created", result.CategoriesCreated),
		slog.Int("categories_skipped", result.CategoriesSkipped),
		slog.Int("fields_created", result.FieldsCreated),
		slog.Int("fields_skipped", result.FieldsSkipped),
	)
	return result, nil
}

func (s *Service) getOrCreateCategory(ctx context.Context, c seedCategory) (*model.Category, bool, error) {
	existing, err := s.categories.FindByName(ctx, c.Name)
	if err != nil {
		return nil, false, fmt.Errorf("支援種別 %s の検索に失敗しました: %w", c.Name, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	category := &model.Category{
		ID:           uuid.NewString(),
		Name:         c.Name,
		Description:  c.Description,
		Icon:         c.Icon,
		DisplayOrder: c.DisplayOrder,
		CreatedAt:    time.Now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, false, fmt.Errorf("支援種別 %s の作成に失敗しました: %w", c.Name, err)
	}
	return category, true, nil
}

func (f seedField) definition(scope model.FieldScope, categoryID string) (*model.FieldDefinition, error) {
	if f.Key == "" {
		return nil, fmt.Errorf("フィールドキーが空です: %q", f.Name)
	}
	if !f.Kind.AllowedIn(scope) {
		return nil, fmt.Errorf("フィールド %s の種別 %q は %s では使用できません", f.Key, f.Kind, scope)
	}
	return &model.FieldDefinition{
		ID:            uuid.NewString(),
		Scope:         scope,
		CategoryID:    categoryID,
		DisplayName:   f.Name,
		FieldKey:      f.Key,
		Kind:          f.Kind,
		Required:      f.Required,
		Order:         f.Order,
		Placeholder:   f.Placeholder,
		ShowInSummary: f.ShowInSummary && scope == model.FieldScopeBase,
		RawChoices:    f.Choices,
	}, nil
}
