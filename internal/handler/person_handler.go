package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/person"
	"github.com/hitoshi/aidbook/internal/search"
)

// PersonServiceInterface は人物ハンドラーが必要とするサービスインターフェース。
type PersonServiceInterface interface {
	List(ctx context.Context, params search.Params, opts person.ListOptions) (*person.ListResult, error)
	ExportCSV(ctx context.Context, w io.Writer, params search.Params) (int, error)
	FormFor(ctx context.Context, p *model.Person) (*form.Schema, error)
	Create(ctx context.Context, provider *model.Provider, in form.Input) (*model.Person, error)
	Get(ctx context.Context, id string) (*model.Person, error)
	Detail(ctx context.Context, provider *model.Provider, id string) (*person.Detail, error)
	Update(ctx context.Context, id string, in form.Input) (*model.Person, error)
}

// PersonHandler は人物管理のHTTPハンドラー。
type PersonHandler struct {
	service PersonServiceInterface
	now     func() time.Time
}

// NewPersonHandler はPersonHandlerを生成する。
func NewPersonHandler(service PersonServiceInterface) *PersonHandler {
	return &PersonHandler{service: service, now: time.Now}
}

// List は検索条件に一致する人物の一覧を返す。export=csv の場合はCSVをダウンロードさせる。
// GET /api/people?search=&category=&status=&filter_<key>=&custom_<key>=&page=&page_size=&export=csv
func (h *PersonHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := search.ParseParams(q)

	if q.Get("export") == "csv" {
		h.exportCSV(w, r, params)
		return
	}

	opts := person.ListOptions{}
	if v := q.Get("page"); v != "" {
		opts.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		opts.PageSize, _ = strconv.Atoi(v)
	}

	res, err := h.service.List(r.Context(), params, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonListResponse(res, params))
}

// exportCSV はCSVを書き出す。途中で失敗した場合にエラーレスポンスを返せるよう、全体を組み立ててから送信する。
func (h *PersonHandler) exportCSV(w http.ResponseWriter, r *http.Request, params search.Params) {
	var buf bytes.Buffer
	rows, err := h.service.ExportCSV(r.Context(), &buf, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("people_%s.csv", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write csv export", slog.String("error", err.Error()))
		return
	}
	slog.Info("people exported", slog.Int("rows", rows))
}

// NewForm は人物の新規登録フォームを返す。
// GET /api/people/form
func (h *PersonHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	schema, err := h.service.FormFor(r.Context(), nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Fields: schema.Fields})
}

// Create は人物を登録する。
// POST /api/people
func (h *PersonHandler) Create(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}

	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	p, err := h.service.Create(r.Context(), provider, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonResponse(p))
}

// Get は人物の詳細を返す。
// GET /api/people/{id}
func (h *PersonHandler) Get(w http.ResponseWriter, r *http.Request) {
	provider := providerFrom(w, r)
	if provider == nil {
		return
	}

	d, err := h.service.Detail(r.Context(), provider, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDetailResponse(d))
}

// EditForm は人物の編集フォームを現在の値で返す。
// GET /api/people/{id}/form
func (h *PersonHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	schema, err := h.service.FormFor(r.Context(), p)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{PersonID: p.ID, Fields: schema.Fields})
}

// Update は人物の基本情報を更新する。
// PUT /api/people/{id}
func (h *PersonHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(p))
}

func (h *PersonHandler) decodeInput(w http.ResponseWriter, r *http.Request) (form.Input, bool) {
	var req personPayload
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	in, err := toInput(req.BaseData)
	if err != nil {
		invalidPayload(w, err)
		return nil, false
	}
	return in, true
}
