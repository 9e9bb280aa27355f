// Package person は支援対象者（人物）の登録・編集・参照・一覧のドメインロジックを提供する。
//
// 人物の基本情報（base_data）はどの提供者でも編集できる。支援種別による権限判定は
// 支援記録（helpservice）にのみ適用される。
package person

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/metrics"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
	"github.com/hitoshi/aidbook/internal/security"
)

// Service は人物管理のサービス層。
type Service struct {
	persons          repository.PersonRepository
	services         repository.HelpServiceRepository
	providers        repository.ProviderRepository
	catalog          *catalog.Service
	metrics          metrics.MetricsCollector
	sanitizer        security.TextSanitizer
	phonePlaceholder string
	now              func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	persons repository.PersonRepository,
	services repository.HelpServiceRepository,
	providers repository.ProviderRepository,
	catalogSvc *catalog.Service,
	sanitizer security.TextSanitizer,
	phonePlaceholder string,
) *Service {
	return &Service{
		persons:          persons,
		services:         services,
		providers:        providers,
		catalog:          catalogSvc,
		metrics:          metrics.Nop{},
		sanitizer:        sanitizer,
		phonePlaceholder: phonePlaceholder,
		now:              time.Now,
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func (s *Service) WithMetrics(c metrics.MetricsCollector) *Service {
	if c != nil {
		s.metrics = c
	}
	return s
}

// DisplayName は人物の表示名を返す。名前が未入力の場合は「人物 #ID」とする。
func DisplayName(p *model.Person) string {
	first := form.DisplayString(p.BaseData["first_name"])
	last := form.DisplayString(p.BaseData["last_name"])
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return "人物 #" + p.ID
	}
}

// FormFor は人物の入力フォームを生成する。personがnilの場合は新規登録用の空フォームを返す。
func (s *Service) FormFor(ctx context.Context, p *model.Person) (*form.Schema, error) {
	defs, err := s.catalog.BaseFields(ctx)
	if err != nil {
		return nil, err
	}

	opts := form.Options{
		PhonePlaceholder: s.phonePlaceholder,
		Sanitizer:        s.sanitizer,
	}
	if p != nil {
		opts.Record = p.BaseData
	}
	return form.Build(defs, opts), nil
}

// Create は入力値を検証して人物を登録する。
// 検証エラーがある場合は*form.ValidationErrorsを返し、何も保存しない。
func (s *Service) Create(ctx context.Context, provider *model.Provider, in form.Input) (*model.Person, error) {
	schema, err := s.FormFor(ctx, nil)
	if err != nil {
		return nil, err
	}
	data, err := schema.Validate(in)
	if err != nil {
		s.metrics.RecordValidationFailure(metrics.KindPerson)
		return nil, err
	}

	now := s.now()
	providerID := provider.ID
	p := &model.Person{
		ID:        uuid.NewString(),
		BaseData:  data,
		CreatedBy: &providerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persons.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("人物の登録に失敗しました: %w", err)
	}
	s.metrics.RecordCreated(metrics.KindPerson)
	return p, nil
}

// Get は人物を取得する。存在しない場合はNotFoundのAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Person, error) {
	p, err := s.persons.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("person", id)
	}
	return p, nil
}

// Update は入力値を検証し、人物のbase_dataをドキュメント全体で置き換える。
// base_dataの編集には支援種別の権限を必要としない。
func (s *Service) Update(ctx context.Context, id string, in form.Input) (*model.Person, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	schema, err := s.FormFor(ctx, p)
	if err != nil {
		return nil, err
	}
	data, err := schema.Validate(in)
	if err != nil {
		s.metrics.RecordValidationFailure(metrics.KindPerson)
		return nil, err
	}

	if err := s.persons.SaveBaseData(ctx, p.ID, data); err != nil {
		return nil, fmt.Errorf("人物の更新に失敗しました: %w", err)
	}
	p.BaseData = data
	p.UpdatedAt = s.now()
	s.metrics.RecordUpdated(metrics.KindPerson)
	return p, nil
}
