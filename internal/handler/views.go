package handler

import (
	"time"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/helpservice"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/person"
	"github.com/hitoshi/aidbook/internal/provider"
	"github.com/hitoshi/aidbook/internal/search"
)

// categoryResponse は支援種別のAPIレスポンス。
type categoryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	DisplayOrder int    `json:"display_order"`
}

func toCategoryResponses(categories []*model.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{
			ID:           c.ID,
			Name:         c.Name,
			Description:  c.Description,
			Icon:         c.Icon,
			DisplayOrder: c.DisplayOrder,
		})
	}
	return out
}

// personResponse は人物のAPIレスポンス。
type personResponse struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	BaseData    model.Document `json:"base_data"`
	CreatedBy   *string        `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toPersonResponse(p *model.Person) personResponse {
	data := p.BaseData
	if data == nil {
		data = model.Document{}
	}
	return personResponse{
		ID:          p.ID,
		DisplayName: person.DisplayName(p),
		BaseData:    data,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// serviceResponse は支援記録のAPIレスポンス。
type serviceResponse struct {
	ID           string         `json:"id"`
	PersonID     string         `json:"person_id"`
	HelpCategory string         `json:"help_category"`
	Status       string         `json:"status"`
	StatusLabel  string         `json:"status_label"`
	Notes        string         `json:"notes"`
	CustomData   model.Document `json:"custom_data"`
	CreatedBy    *string        `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toServiceResponse(s *model.HelpService) serviceResponse {
	data := s.CustomData
	if data == nil {
		data = model.Document{}
	}
	return serviceResponse{
		ID:           s.ID,
		PersonID:     s.PersonID,
		HelpCategory: s.CategoryID,
		Status:       string(s.Status),
		StatusLabel:  form.StatusLabel(s.Status),
		Notes:        s.Notes,
		CustomData:   data,
		CreatedBy:    s.CreatedBy,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// serviceViewResponse は人物詳細に含める支援記録。
type serviceViewResponse struct {
	serviceResponse
	CategoryName string              `json:"category_name"`
	Fields       []person.FieldValue `json:"fields"`
	Editable     bool                `json:"editable"`
}

func toServiceViews(views []person.ServiceView) []serviceViewResponse {
	out := make([]serviceViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, serviceViewResponse{
			serviceResponse: toServiceResponse(v.Service),
			CategoryName:    v.CategoryName,
			Fields:          v.Fields,
			Editable:        v.Editable,
		})
	}
	return out
}

// personDetailResponse は人物詳細のAPIレスポンス。
// 支援記録は編集可能なものと閲覧のみのものに分けて返す。
type personDetailResponse struct {
	personResponse
	Fields           []person.FieldValue   `json:"fields"`
	EditableServices []serviceViewResponse `json:"editable_services"`
	ReadOnlyServices []serviceViewResponse `json:"read_only_services"`
}

func toPersonDetailResponse(d *person.Detail) personDetailResponse {
	return personDetailResponse{
		personResponse:   toPersonResponse(d.Person),
		Fields:           d.Fields,
		EditableServices: toServiceViews(d.EditableServices),
		ReadOnlyServices: toServiceViews(d.ReadOnlyServices),
	}
}

// summaryColumnResponse は一覧の列見出し。
type summaryColumnResponse struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Kind  model.FieldKind `json:"kind"`
}

// personSummaryResponse は一覧の1行。
type personSummaryResponse struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"display_name"`
	Fields      []person.FieldValue `json:"fields"`
	CreatedBy   *string             `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
}

// personListResponse は人物一覧のAPIレスポンス。
type personListResponse struct {
	People     []personSummaryResponse `json:"people"`
	Columns    []summaryColumnResponse `json:"columns"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	HasMore    bool                    `json:"has_more"`
	Filters    search.Params           `json:"filters"`
	IsFiltered bool                    `json:"is_filtered"`
}

func toPersonListResponse(res *person.ListResult, params search.Params) personListResponse {
	out := personListResponse{
		People:     make([]personSummaryResponse, 0, len(res.People)),
		Columns:    make([]summaryColumnResponse, 0, len(res.SummaryFields)),
		Page:       res.Page,
		PageSize:   res.PageSize,
		HasMore:    res.HasMore,
		Filters:    params,
		IsFiltered: !params.IsEmpty(),
	}
	for _, d := range res.SummaryFields {
		out.Columns = append(out.Columns, summaryColumnResponse{Key: d.FieldKey, Label: d.DisplayName, Kind: d.Kind})
	}
	for _, s := range res.People {
		out.People = append(out.People, personSummaryResponse{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Fields:      s.Fields,
			CreatedBy:   s.CreatedBy,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out
}

// schemaResponse は人物フォームのAPIレスポンス。
type schemaResponse struct {
	PersonID string       `json:"person_id,omitempty"`
	Fields   []form.Field `json:"fields"`
}

// serviceFormResponse は支援記録フォームのAPIレスポンス。
// 追加フィールドのキーは送信時にcustom_data配下に置く。
type serviceFormResponse struct {
	PersonID       string       `json:"person_id"`
	ServiceID      string       `json:"service_id,omitempty"`
	CanEdit        bool         `json:"can_edit"`
	LockedCategory bool         `json:"locked_category"`
	Fixed          []form.Field `json:"fixed_fields"`
	CustomFields   []form.Field `json:"custom_fields"`
}

func toServiceFormResponse(v *helpservice.FormView) serviceFormResponse {
	out := serviceFormResponse{
		PersonID:       v.Person.ID,
		CanEdit:        v.CanEdit,
		LockedCategory: v.Form.LockedCategory(),
		Fixed:          []form.Field{v.Form.Category, v.Form.Status, v.Form.Notes},
		CustomFields:   v.Form.Custom.Fields,
	}
	if v.Service != nil {
		out.ServiceID = v.Service.ID
	}
	return out
}

// categoryCountResponse は支援種別ごとの支援記録数。
type categoryCountResponse struct {
	Category categoryResponse `json:"category"`
	Count    int              `json:"count"`
}

// dashboardResponse はダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	ProviderID    string                  `json:"provider_id"`
	Username      string                  `json:"username"`
	Categories    []categoryResponse      `json:"categories"`
	TotalPeople   int                     `json:"total_people"`
	TotalServices int                     `json:"total_services"`
	ServiceStats  []categoryCountResponse `json:"services_stats"`
	RecentPeople  []personResponse        `json:"recent_people"`
}

func toDashboardResponse(d *provider.Dashboard) dashboardResponse {
	out := dashboardResponse{
		ProviderID:    d.Provider.ID,
		Username:      d.Provider.Username,
		Categories:    toCategoryResponses(d.Categories),
		TotalPeople:   d.TotalPeople,
		TotalServices: d.TotalServices,
		ServiceStats:  make([]categoryCountResponse, 0, len(d.ServiceStats)),
		RecentPeople:  make([]personResponse, 0, len(d.RecentPeople)),
	}
	for _, s := range d.ServiceStats {
		out.ServiceStats = append(out.ServiceStats, categoryCountResponse{
			Category: toCategoryResponses([]*model.Category{s.Category})[0],
			Count:    s.Count,
		})
	}
	for _, p := range d.RecentPeople {
		out.RecentPeople = append(out.RecentPeople, toPersonResponse(p))
	}
	return out
}

// overviewResponse はトップ画面の集計のAPIレスポンス。
type overviewResponse struct {
	Categories     []categoryResponse `json:"categories"`
	TotalPeople    int                `json:"total_people"`
	TotalProviders int                `json:"total_providers"`
}

func toOverviewResponse(o *provider.Overview) overviewResponse {
	return overviewResponse{
		Categories:     toCategoryResponses(o.Categories),
		TotalPeople:    o.TotalPeople,
		TotalProviders: o.TotalProviders,
	}
}

// accountResponse はログイン中のアカウントのAPIレスポンス。
type accountResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}
