package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/provider"
)

// CatalogServiceInterface は支援種別・フィールド定義の参照に必要なサービスインターフェース。
type CatalogServiceInterface interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	LookupCategoryFields(ctx context.Context, categoryID string) (*catalog.FieldLookup, error)
}

// ProviderServiceInterface はダッシュボードと公開集計に必要なサービスインターフェース。
type ProviderServiceInterface interface {
	Dashboard(ctx context.Context, p *model.Provider) (*provider.Dashboard, error)
	Overview(ctx context.Context) (*provider.Overview, error)
}

// CatalogHandler は支援種別・ダッシュボード関連のHTTPハンドラー。
type CatalogHandler struct {
	catalog   CatalogServiceInterface
	providers ProviderServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(catalogSvc CatalogServiceInterface, providers ProviderServiceInterface) *CatalogHandler {
	return &CatalogHandler{catalog: catalogSvc, providers: providers}
}

// categoryListItem は支援種別一覧の1件。ログイン中の提供者が編集できるかどうかを含む。
type categoryListItem struct {
	categoryResponse
	Editable bool `json:"editable"`
}

// Categories は全支援種別を表示順で返す。
// GET /api/categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	p := providerFrom(w, r)
	if p == nil {
		return
	}

	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]categoryListItem, 0, len(categories))
	for i, c := range toCategoryResponses(categories) {
		items = append(items, categoryListItem{
			categoryResponse: c,
			Editable:         access.CanEdit(p, categories[i].ID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": items})
}

// CategoryFields は支援種別の追加フィールド定義を返す。
// 支援記録フォームで支援種別を切り替えたときに追加フィールドを再描画するために使う。
// GET /api/categories/{id}/fields
func (h *CatalogHandler) CategoryFields(w http.ResponseWriter, r *http.Request) {
	lookup, err := h.catalog.LookupCategoryFields(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

// Dashboard は提供者のダッシュボードを返す。
// GET /api/dashboard
func (h *CatalogHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := providerFrom(w, r)
	if p == nil {
		return
	}

	d, err := h.providers.Dashboard(r.Context(), p)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(d))
}

// Overview は全体の集計を返す。ログイン不要。
// GET /api/overview
func (h *CatalogHandler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.providers.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewResponse(o))
}
