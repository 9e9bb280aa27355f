package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/helpservice"
	"github.com/hitoshi/aidbook/internal/model"
)

// HelpServiceInterface は支援記録ハンドラーが必要とするサービスインターフェース。
type HelpServiceInterface interface {
	FormForNew(ctx context.Context, provider *model.Provider, personID, categoryID string) (*helpservice.FormView, error)
	Add(ctx context.Context, provider *model.Provider, personID string, in form.ServiceInput) (*model.HelpService, error)
	FormForEdit(ctx context.Context, provider *model.Provider, serviceID string) (*helpservice.FormView, error)
	Update(ctx context.Context, provider *model.Provider, serviceID string, in form.ServiceInput) (*model.HelpService, error)
}

// ServiceHandler は支援記録のHTTPハンドラー。
type ServiceHandler struct {
	service HelpServiceInterface
}

// NewServiceHandler はServiceHandlerを生成する。
func NewServiceHandler(service HelpServiceInterface) *ServiceHandler {
	return &ServiceHandler{service: service}
}

// NewForm は支援記録の追加フォームを返す。
// category を指定すると、その支援種別の追加フィールドを含める。
// GET /api/people/{id}/services/form?category=
func (h *ServiceHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}

	view, err := h.service.FormForNew(r.Context(), provider, chi.URLParam(r, "id"), r.URL.Query().Get("category"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceFormResponse(view))
}

// Create は人物に支援記録を追加する。
// POST /api/people/{id}/services
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}
	in, ok := decodeServiceInput(w, r)
	if !ok {
		return
	}

	svc, err := h.service.Add(r.Context(), provider, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceResponse(svc))
}

// EditForm は支援記録の編集フォームを返す。担当外の支援種別では読み取り専用になる。
// GET /api/services/{id}/form
func (h *ServiceHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}

	view, err := h.service.FormForEdit(r.Context(), provider, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceFormResponse(view))
}

// Update は支援記録を更新する。支援種別は変更できない。
// PUT /api/services/{id}
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}
	in, ok := decodeServiceInput(w, r)
	if !ok {
		return
	}

	svc, err := h.service.Update(r.Context(), provider, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

func decodeServiceInput(w http.ResponseWriter, r *http.Request) (form.ServiceInput, bool) {
	var req servicePayload
	if !decodeJSON(w, r, &req) {
		return form.ServiceInput{}, false
	}
	in, err := req.toServiceInput()
	if err != nil {
		invalidPayload(w, err)
		return form.ServiceInput{}, false
	}
	return in, true
}
