// Package helpservice は支援記録（人物と支援種別の組み合わせ）の追加・編集のドメインロジックを提供する。
//
// 支援記録の追加・編集は、提供者が担当する支援種別に限られる。
// 同じ人物・支援種別の組み合わせは1件のみで、同時に追加された場合はストアの一意制約が
// 後から書き込んだ側をConflictとして拒否する。
package helpservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/metrics"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
	"github.com/hitoshi/aidbook/internal/security"
)

// PersonPath は人物詳細画面のパス。権限エラー時の戻り先に使う。
func PersonPath(personID string) string {
	return "/people/" + personID
}

// FormView は支援記録フォームの表示内容。
type FormView struct {
	Person  *model.Person
	Service *model.HelpService // 編集時のみ
	Form    *form.ServiceForm
	CanEdit bool
}

// Service は支援記録のサービス層。
type Service struct {
	persons          repository.PersonRepository
	services         repository.HelpServiceRepository
	catalog          *catalog.Service
	gate             *access.Gate
	metrics          metrics.MetricsCollector
	sanitizer        security.TextSanitizer
	phonePlaceholder string
	now              func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	persons repository.PersonRepository,
	services repository.HelpServiceRepository,
	catalogSvc *catalog.Service,
	gate *access.Gate,
	collector metrics.MetricsCollector,
	sanitizer security.TextSanitizer,
	phonePlaceholder string,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		persons:          persons,
		services:         services,
		catalog:          catalogSvc,
		gate:             gate,
		metrics:          collector,
		sanitizer:        sanitizer,
		phonePlaceholder: phonePlaceholder,
		now:              time.Now,
	}
}

func (s *Service) getPerson(ctx context.Context, id string) (*model.Person, error) {
	p, err := s.persons.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("person", id)
	}
	return p, nil
}

// Get は支援記録を取得する。存在しない場合はNotFoundのAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.HelpService, error) {
	svc, err := s.services.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("支援記録の取得に失敗しました: %w", err)
	}
	if svc == nil {
		return nil, model.NewNotFoundError("service", id)
	}
	return svc, nil
}

// requireEdit は権限判定を行い、拒否した場合はメトリクスに記録する。
func (s *Service) requireEdit(provider *model.Provider, category *model.Category, personID string) error {
	if err := access.RequireEdit(provider, category, PersonPath(personID)); err != nil {
		s.metrics.RecordAuthorizationDenied(model.ErrCodeNotAuthorized)
		return err
	}
	return nil
}

// buildForm は提供者が担当する支援種別を選択肢とする支援記録フォームを生成する。
func (s *Service) buildForm(ctx context.Context, provider *model.Provider, category *model.Category, existing *model.HelpService, readOnly bool) (*form.ServiceForm, error) {
	authorized, err := s.gate.AuthorizedCategories(ctx, provider)
	if err != nil {
		return nil, err
	}
	choices := make([]model.Category, 0, len(authorized))
	for _, c := range authorized {
		choices = append(choices, *c)
	}

	var customDefs []model.FieldDefinition
	if category != nil {
		customDefs, err = s.catalog.CategoryFields(ctx, category.ID)
		if err != nil {
			return nil, err
		}
	}

	return form.BuildServiceForm(form.ServiceFormParams{
		Categories:       choices,
		Category:         category,
		CustomFields:     customDefs,
		Existing:         existing,
		ReadOnly:         readOnly,
		PhonePlaceholder: s.phonePlaceholder,
		Sanitizer:        s.sanitizer,
	}), nil
}

// FormForNew は支援記録の追加フォームを生成する。
// categoryIDが空の場合は支援種別の選択のみを含み、追加フィールドは空になる。
// 担当外の支援種別を指定した場合はNotAuthorizedのAPIErrorを返す。
func (s *Service) FormForNew(ctx context.Context, provider *model.Provider, personID, categoryID string) (*FormView, error) {
	p, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	var category *model.Category
	if categoryID != "" {
		category, err = s.catalog.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if err := s.requireEdit(provider, category, p.ID); err != nil {
			return nil, err
		}
	}

	sf, err := s.buildForm(ctx, provider, category, nil, false)
	if err != nil {
		return nil, err
	}
	return &FormView{Person: p, Form: sf, CanEdit: true}, nil
}

// Add は支援記録を追加する。
// 権限判定、入力検証、作成の順に行い、いずれかで失敗した場合は何も保存しない。
// 同じ人物・支援種別の支援記録が既にある場合はConflictのAPIErrorを返す。
func (s *Service) Add(ctx context.Context, provider *model.Provider, personID string, in form.ServiceInput) (*model.HelpService, error) {
	p, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	categoryID := strings.TrimSpace(in.Fixed[form.FieldKeyCategory])
	if categoryID == "" {
		verrs := &form.ValidationErrors{}
		verrs.Add(form.FieldKeyCategory, model.ErrCodeMissingRequiredField, "支援種別を選択してください。")
		s.metrics.RecordValidationFailure(metrics.KindService)
		return nil, verrs
	}
	category, err := s.catalog.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(provider, category, p.ID); err != nil {
		return nil, err
	}

	sf, err := s.buildForm(ctx, provider, category, nil, false)
	if err != nil {
		return nil, err
	}
	values, err := sf.Validate(in)
	if err != nil {
		s.metrics.RecordValidationFailure(metrics.KindService)
		return nil, err
	}

	now := s.now()
	providerID := provider.ID
	svc := &model.HelpService{
		ID:         uuid.NewString(),
		PersonID:   p.ID,
		CategoryID: values.CategoryID,
		CustomData: values.CustomData,
		Status:     values.Status,
		Notes:      values.Notes,
		CreatedBy:  &providerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		if errors.Is(err, model.ErrConflict) {
			s.metrics.RecordConflict(metrics.KindService)
			return nil, model.NewServiceConflictError(category.Name)
		}
		return nil, fmt.Errorf("支援記録の追加に失敗しました: %w", err)
	}

	s.metrics.RecordCreated(metrics.KindService)
	return svc, nil
}

// FormForEdit は支援記録の編集フォームを生成する。
// 支援種別は元の値に固定される。担当外の支援種別の場合は読み取り専用のフォームを返す。
func (s *Service) FormForEdit(ctx context.Context, provider *model.Provider, serviceID string) (*FormView, error) {
	svc, err := s.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	p, err := s.getPerson(ctx, svc.PersonID)
	if err != nil {
		return nil, err
	}
	category, err := s.catalog.GetCategory(ctx, svc.CategoryID)
	if err != nil {
		return nil, err
	}

	canEdit := access.CanEdit(provider, category.ID)
	sf, err := s.buildForm(ctx, provider, category, svc, !canEdit)
	if err != nil {
		return nil, err
	}
	return &FormView{Person: p, Service: svc, Form: sf, CanEdit: canEdit}, nil
}

// Update は支援記録の状態・メモ・追加フィールドを更新する。支援種別は変更しない。
func (s *Service) Update(ctx context.Context, provider *model.Provider, serviceID string, in form.ServiceInput) (*model.HelpService, error) {
	svc, err := s.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	category, err := s.catalog.GetCategory(ctx, svc.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(provider, category, svc.PersonID); err != nil {
		return nil, err
	}

	sf, err := s.buildForm(ctx, provider, category, svc, false)
	if err != nil {
		return nil, err
	}
	values, err := sf.Validate(in)
	if err != nil {
		s.metrics.RecordValidationFailure(metrics.KindService)
		return nil, err
	}

	svc.Status = values.Status
	svc.Notes = values.Notes
	svc.CustomData = values.CustomData
	svc.UpdatedAt = s.now()
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("支援記録の更新に失敗しました: %w", err)
	}

	s.metrics.RecordUpdated(metrics.KindService)
	return svc, nil
}
