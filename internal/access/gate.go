// Package access は支援提供者の権限判定を提供する。
//
// 支援記録の追加・編集は、提供者が担当する支援種別に限られる。
// 人物の基本情報（base_data）の編集は支援種別に依存しないため、判定の対象外。
package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/aidbook/internal/model"
)

// ProviderFinder はアカウントに紐づく提供者の検索に必要なインターフェース。
// repository.ProviderRepositoryの部分集合として定義する。
type ProviderFinder interface {
	FindByAccountID(ctx context.Context, accountID string) (*model.Provider, error)
}

// CategoryLister は支援種別一覧の取得に必要なインターフェース。
type CategoryLister interface {
	List(ctx context.Context) ([]*model.Category, error)
}

// Gate は提供者の権限を判定する。
type Gate struct {
	providers  ProviderFinder
	categories CategoryLister
}

// NewGate はGateを生成する。
func NewGate(providers ProviderFinder, categories CategoryLister) *Gate {
	return &Gate{providers: providers, categories: categories}
}

// ResolveProvider はアカウントに紐づく提供者を返す。
// 提供者として登録されていない場合はNotAProviderのAPIErrorを返す。
func (g *Gate) ResolveProvider(ctx context.Context, accountID string) (*model.Provider, error) {
	provider, err := g.providers.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider: %w", err)
	}
	if provider == nil {
		return nil, model.NewNotAProviderError()
	}
	return provider, nil
}

// CanEdit は提供者が指定支援種別の支援記録を追加・編集できるかどうかを返す。
func CanEdit(provider *model.Provider, categoryID string) bool {
	if provider == nil {
		return false
	}
	return provider.HasCategory(categoryID)
}

// RequireEdit は編集権限がない場合にNotAuthorizedのAPIErrorを返す。
// redirectToには拒否時にクライアントが戻るべき画面を指定する。
func RequireEdit(provider *model.Provider, category *model.Category, redirectTo string) error {
	if CanEdit(provider, category.ID) {
		return nil
	}
	return model.NewNotAuthorizedError(category.Name, redirectTo)
}

// AuthorizedCategories は提供者が担当する支援種別を表示順で返す。
func (g *Gate) AuthorizedCategories(ctx context.Context, provider *model.Provider) ([]*model.Category, error) {
	all, err := g.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	authorized := make([]*model.Category, 0, len(provider.CategoryIDs))
	for _, c := range all {
		if provider.HasCategory(c.ID) {
			authorized = append(authorized, c)
		}
	}
	return authorized, nil
}
