package helpservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/metrics"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
	"github.com/hitoshi/aidbook/internal/security"
)

// recordingMetrics は呼び出し回数を記録するMetricsCollector。
type recordingMetrics struct {
	metrics.Nop
	mu          sync.Mutex
	created     map[string]int
	conflicts   map[string]int
	validations map[string]int
	denied      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		created:     map[string]int{},
		conflicts:   map[string]int{},
		validations: map[string]int{},
		denied:      map[string]int{},
	}
}

func (m *recordingMetrics) RecordCreated(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[kind]++
}

func (m *recordingMetrics) RecordConflict(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[kind]++
}

func (m *recordingMetrics) RecordValidationFailure(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations[kind]++
}

func (m *recordingMetrics) RecordAuthorizationDenied(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[code]++
}

type HelpServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *repository.Store
	metrics  *recordingMetrics
	svc      *Service
	provider *model.Provider
	food     *model.Category
	meds     *model.Category
	housing  *model.Category
	person   *model.Person
}

func TestHelpServiceSuite(t *testing.T) {
	suite.Run(t, new(HelpServiceSuite))
}

func (s *HelpServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemoryStore()
	cat := catalog.NewService(s.store.Categories, s.store.Fields)
	_, err := cat.Seed(s.ctx)
	s.Require().NoError(err)

	s.food, err = s.store.Categories.FindByName(s.ctx, "Alimente")
	s.Require().NoError(err)
	s.meds, err = s.store.Categories.FindByName(s.ctx, "Medicamente")
	s.Require().NoError(err)
	s.housing, err = s.store.Categories.FindByName(s.ctx, "Cazare")
	s.Require().NoError(err)

	account := &model.Account{ID: uuid.NewString(), Username: "ion", PasswordHash: "x", CreatedAt: time.Now()}
	s.provider = &model.Provider{ID: uuid.NewString(), AccountID: account.ID, CategoryIDs: []string{s.food.ID, s.meds.ID}}
	s.Require().NoError(s.store.Accounts.CreateWithProvider(s.ctx, account, s.provider))

	s.person = &model.Person{
		ID:        uuid.NewString(),
		BaseData:  model.Document{"first_name": "Ana", "last_name": "Rusu"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.store.Persons.Create(s.ctx, s.person))

	s.metrics = newRecordingMetrics()
	gate := access.NewGate(s.store.Providers, s.store.Categories)
	s.svc = NewService(s.store.Persons, s.store.Services, cat, gate, s.metrics, security.NewTextSanitizer(), "+373 69 123 456")
}

func foodInput(categoryID string) form.ServiceInput {
	return form.ServiceInput{
		Fixed: form.Input{
			form.FieldKeyCategory: categoryID,
			form.FieldKeyStatus:   string(model.ServiceStatusActive),
			form.FieldKeyNotes:    "prima vizită",
		},
		Custom: form.Input{
			"received_on":   "2026-03-01",
			"parcels":       "2",
			"has_allergies": "on",
			"diet":          "",
		},
	}
}

func (s *HelpServiceSuite) requireAPIError(err error, code string) *model.APIError {
	var apiErr *model.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(code, apiErr.Code)
	return apiErr
}

func (s *HelpServiceSuite) TestAdd_CreatesTypedRecord() {
	created, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	s.Require().NoError(err)

	s.Equal(s.person.ID, created.PersonID)
	s.Equal(s.food.ID, created.CategoryID)
	s.Equal(model.ServiceStatusActive, created.Status)
	s.Equal("prima vizită", created.Notes)
	s.Equal(int64(2), created.CustomData["parcels"])
	s.Equal(true, created.CustomData["has_allergies"])
	s.Equal("2026-03-01", created.CustomData["received_on"])
	s.Require().NotNil(created.CreatedBy)
	s.Equal(s.provider.ID, *created.CreatedBy)
	s.Equal(1, s.metrics.created[metrics.KindService])

	stored, err := s.svc.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.CustomData, stored.CustomData)
}

func (s *HelpServiceSuite) TestAdd_DuplicateIsConflict() {
	_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	s.Require().NoError(err)

	_, err = s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	apiErr := s.requireAPIError(err, model.ErrCodeConflict)
	s.Contains(apiErr.Message, "Alimente")
	s.Equal(1, s.metrics.conflicts[metrics.KindService])

	list, err := s.store.Services.ListByPerson(s.ctx, s.person.ID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *HelpServiceSuite) TestAdd_ConcurrentDuplicatesCreateOnlyOne() {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var apiErr *model.APIError
			if s.ErrorAs(err, &apiErr) && apiErr.Code == model.ErrCodeConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(workers-1, conflicts)
}

func (s *HelpServiceSuite) TestAdd_UnauthorizedCategory() {
	_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, form.ServiceInput{
		Fixed:  form.Input{form.FieldKeyCategory: s.housing.ID},
		Custom: form.Input{"address": "Str. Mare 3", "check_in": "2026-01-10"},
	})

	apiErr := s.requireAPIError(err, model.ErrCodeNotAuthorized)
	s.Equal(PersonPath(s.person.ID), apiErr.RedirectTo)
	s.Equal(1, s.metrics.denied[model.ErrCodeNotAuthorized])

	list, err := s.store.Services.ListByPerson(s.ctx, s.person.ID)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *HelpServiceSuite) TestAdd_MissingCategory() {
	in := foodInput("")

	_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, in)

	var verrs *form.ValidationErrors
	s.Require().ErrorAs(err, &verrs)
	_, ok := verrs.For(form.FieldKeyCategory)
	s.True(ok)
}

func (s *HelpServiceSuite) TestAdd_UnknownCategoryAndPerson() {
	_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(uuid.NewString()))
	s.requireAPIError(err, model.ErrCodeNotFound)

	_, err = s.svc.Add(s.ctx, s.provider, uuid.NewString(), foodInput(s.food.ID))
	s.requireAPIError(err, model.ErrCodeNotFound)
}

func (s *HelpServiceSuite) TestAdd_CustomFieldErrorsArePrefixed() {
	in := foodInput(s.food.ID)
	in.Custom["parcels"] = "doua"
	in.Custom["received_on"] = ""

	_, err := s.svc.Add(s.ctx, s.provider, s.person.ID, in)

	var verrs *form.ValidationErrors
	s.Require().ErrorAs(err, &verrs)
	_, ok := verrs.For(form.CustomFieldsPrefix + "parcels")
	s.True(ok)
	fe, ok := verrs.For(form.CustomFieldsPrefix + "received_on")
	s.True(ok)
	s.Equal(model.ErrCodeMissingRequiredField, fe.Code)
	s.Equal(1, s.metrics.validations[metrics.KindService])
}

func (s *HelpServiceSuite) TestFormForNew() {
	view, err := s.svc.FormForNew(s.ctx, s.provider, s.person.ID, "")
	s.Require().NoError(err)
	s.True(view.CanEdit)
	s.Empty(view.Form.Custom.Fields)
	// 空の選択肢 + 担当する2種別
	s.Len(view.Form.Category.Options, 3)

	view, err = s.svc.FormForNew(s.ctx, s.provider, s.person.ID, s.food.ID)
	s.Require().NoError(err)
	s.Equal(s.food.ID, view.Form.Category.Initial)
	s.Len(view.Form.Custom.Fields, 4)

	_, err = s.svc.FormForNew(s.ctx, s.provider, s.person.ID, s.housing.ID)
	s.requireAPIError(err, model.ErrCodeNotAuthorized)
}

func (s *HelpServiceSuite) TestFormForEdit_ReadOnlyForOtherCategories() {
	providerID := s.provider.ID
	other := &model.HelpService{
		ID:         uuid.NewString(),
		PersonID:   s.person.ID,
		CategoryID: s.housing.ID,
		CustomData: model.Document{"address": "Str. Mare 3"},
		Status:     model.ServiceStatusPending,
		CreatedBy:  &providerID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.store.Services.Create(s.ctx, other))

	view, err := s.svc.FormForEdit(s.ctx, s.provider, other.ID)
	s.Require().NoError(err)
	s.False(view.CanEdit)
	s.True(view.Form.LockedCategory())
	s.True(view.Form.Status.Disabled)
	for _, f := range view.Form.Custom.Fields {
		s.True(f.Disabled, f.Key)
	}
	s.Equal(s.person.ID, view.Person.ID)
}

func (s *HelpServiceSuite) TestUpdate_KeepsCategory() {
	created, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	s.Require().NoError(err)

	in := foodInput(s.meds.ID)
	in.Fixed[form.FieldKeyStatus] = string(model.ServiceStatusCompleted)
	in.Custom["parcels"] = "5"

	updated, err := s.svc.Update(s.ctx, s.provider, created.ID, in)
	s.Require().NoError(err)
	s.Equal(s.food.ID, updated.CategoryID)
	s.Equal(model.ServiceStatusCompleted, updated.Status)
	s.Equal(int64(5), updated.CustomData["parcels"])

	stored, err := s.svc.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(model.ServiceStatusCompleted, stored.Status)
}

func (s *HelpServiceSuite) TestUpdate_OmittedNotesKeepStoredValue() {
	created, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	s.Require().NoError(err)

	in := foodInput(s.food.ID)
	in.Fixed = form.Input{form.FieldKeyStatus: string(model.ServiceStatusCompleted)}

	updated, err := s.svc.Update(s.ctx, s.provider, created.ID, in)
	s.Require().NoError(err)
	s.Equal(model.ServiceStatusCompleted, updated.Status)
	s.Equal("prima vizită", updated.Notes)

	stored, err := s.svc.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("prima vizită", stored.Notes)

	// 明示的に空文字を送った場合はメモを消去する
	in.Fixed[form.FieldKeyNotes] = ""
	cleared, err := s.svc.Update(s.ctx, s.provider, created.ID, in)
	s.Require().NoError(err)
	s.Empty(cleared.Notes)
}

func (s *HelpServiceSuite) TestUpdate_RequiresCategoryAuthorization() {
	outsider := &model.Provider{ID: uuid.NewString(), CategoryIDs: []string{s.housing.ID}}
	created, err := s.svc.Add(s.ctx, s.provider, s.person.ID, foodInput(s.food.ID))
	s.Require().NoError(err)

	_, err = s.svc.Update(s.ctx, outsider, created.ID, foodInput(s.food.ID))
	s.requireAPIError(err, model.ErrCodeNotAuthorized)

	stored, err := s.svc.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("prima vizită", stored.Notes)
}

func (s *HelpServiceSuite) TestGet_NotFound() {
	_, err := s.svc.Get(s.ctx, uuid.NewString())
	s.requireAPIError(err, model.ErrCodeNotFound)
}
