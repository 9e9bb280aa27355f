// Package provider は支援提供者のダッシュボードと公開用の集計を提供する。
package provider

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
)

// RecentPeopleLimit はダッシュボードに表示する最近登録した人物の件数。
const RecentPeopleLimit = 5

// CategoryCount は支援種別ごとの支援記録数。
type CategoryCount struct {
	Category *model.Category
	Count    int
}

// Dashboard は提供者のダッシュボードの内容。
// 集計はいずれもその提供者が登録した記録のみを対象とする。
type Dashboard struct {
	Provider      *model.Provider
	Categories    []*model.Category
	TotalPeople   int
	TotalServices int
	ServiceStats  []CategoryCount
	RecentPeople  []*model.Person
}

// Overview はログイン前のトップ画面に表示する集計。
type Overview struct {
	Categories     []*model.Category
	TotalPeople    int
	TotalProviders int
}

// Service は提供者向けの集計を行う。
type Service struct {
	gate       *access.Gate
	categories repository.CategoryRepository
	persons    repository.PersonRepository
	services   repository.HelpServiceRepository
	providers  repository.ProviderRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	gate *access.Gate,
	categories repository.CategoryRepository,
	persons repository.PersonRepository,
	services repository.HelpServiceRepository,
	providers repository.ProviderRepository,
) *Service {
	return &Service{
		gate:       gate,
		categories: categories,
		persons:    persons,
		services:   services,
		providers:  providers,
	}
}

// Dashboard は提供者のダッシュボードを組み立てる。
// 支援種別ごとの件数は提供者が担当する支援種別すべてについて返し、記録がない種別は0件とする。
func (s *Service) Dashboard(ctx context.Context, p *model.Provider) (*Dashboard, error) {
	d := &Dashboard{Provider: p}
	var perCategory map[string]int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Categories, err = s.gate.AuthorizedCategories(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		if d.TotalPeople, err = s.persons.CountByCreator(gctx, p.ID); err != nil {
			return fmt.Errorf("登録人物数の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.TotalServices, err = s.services.CountByCreator(gctx, p.ID); err != nil {
			return fmt.Errorf("支援記録数の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if perCategory, err = s.services.CountByCreatorPerCategory(gctx, p.ID); err != nil {
			return fmt.Errorf("支援種別ごとの支援記録数の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.RecentPeople, err = s.persons.ListRecentByCreator(gctx, p.ID, RecentPeopleLimit); err != nil {
			return fmt.Errorf("最近登録した人物の取得に失敗しました: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.ServiceStats = make([]CategoryCount, 0, len(d.Categories))
	for _, c := range d.Categories {
		d.ServiceStats = append(d.ServiceStats, CategoryCount{Category: c, Count: perCategory[c.ID]})
	}
	if d.RecentPeople == nil {
		d.RecentPeople = []*model.Person{}
	}
	return d, nil
}

// Overview は全体の集計を返す。ログインは不要。
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	o := &Overview{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if o.Categories, err = s.categories.List(gctx); err != nil {
			return fmt.Errorf("支援種別の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if o.TotalPeople, err = s.persons.Count(gctx); err != nil {
			return fmt.Errorf("人物数の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if o.TotalProviders, err = s.providers.Count(gctx); err != nil {
			return fmt.Errorf("提供者数の取得に失敗しました: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return o, nil
}
