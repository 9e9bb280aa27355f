package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/catalog"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
)

type ProviderServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *repository.Store
	svc      *Service
	provider *model.Provider
	other    *model.Provider
	food     *model.Category
	meds     *model.Category
}

func TestProviderServiceSuite(t *testing.T) {
	suite.Run(t, new(ProviderServiceSuite))
}

func (s *ProviderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemoryStore()
	_, err := catalog.NewService(s.store.Categories, s.store.Fields).Seed(s.ctx)
	s.Require().NoError(err)

	s.food, err = s.store.Categories.FindByName(s.ctx, "Alimente")
	s.Require().NoError(err)
	s.meds, err = s.store.Categories.FindByName(s.ctx, "Medicamente")
	s.Require().NoError(err)

	s.provider = s.newProvider("ana", s.food.ID, s.meds.ID)
	s.other = s.newProvider("ion", s.food.ID)

	gate := access.NewGate(s.store.Providers, s.store.Categories)
	s.svc = NewService(gate, s.store.Categories, s.store.Persons, s.store.Services, s.store.Providers)
}

func (s *ProviderServiceSuite) newProvider(username string, categoryIDs ...string) *model.Provider {
	account := &model.Account{ID: uuid.NewString(), Username: username, PasswordHash: "x", CreatedAt: time.Now()}
	p := &model.Provider{ID: uuid.NewString(), AccountID: account.ID, CategoryIDs: categoryIDs}
	s.Require().NoError(s.store.Accounts.CreateWithProvider(s.ctx, account, p))
	p.Username = username
	return p
}

func (s *ProviderServiceSuite) addPerson(by *model.Provider, name string, at time.Time) *model.Person {
	id := by.ID
	p := &model.Person{
		ID:        uuid.NewString(),
		BaseData:  model.Document{"first_name": name},
		CreatedBy: &id,
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.Require().NoError(s.store.Persons.Create(s.ctx, p))
	return p
}

func (s *ProviderServiceSuite) addService(by *model.Provider, personID, categoryID string) {
	id := by.ID
	s.Require().NoError(s.store.Services.Create(s.ctx, &model.HelpService{
		ID:         uuid.NewString(),
		PersonID:   personID,
		CategoryID: categoryID,
		CustomData: model.Document{},
		Status:     model.ServiceStatusActive,
		CreatedBy:  &id,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}))
}

func (s *ProviderServiceSuite) TestDashboard_CountsOwnRecordsOnly() {
	base := time.Now().Add(-time.Hour)
	var people []*model.Person
	for i := range 7 {
		people = append(people, s.addPerson(s.provider, fmt.Sprintf("P%d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	s.addService(s.provider, people[0].ID, s.food.ID)
	s.addService(s.provider, people[1].ID, s.food.ID)
	s.addService(s.other, people[2].ID, s.food.ID)

	otherPerson := s.addPerson(s.other, "X", time.Now())
	s.addService(s.other, otherPerson.ID, s.food.ID)

	d, err := s.svc.Dashboard(s.ctx, s.provider)
	s.Require().NoError(err)

	s.Equal(7, d.TotalPeople)
	s.Equal(2, d.TotalServices)
	s.Require().Len(d.ServiceStats, 2)
	s.Equal("Alimente", d.ServiceStats[0].Category.Name)
	s.Equal(2, d.ServiceStats[0].Count)
	s.Equal("Medicamente", d.ServiceStats[1].Category.Name)
	s.Zero(d.ServiceStats[1].Count)

	s.Require().Len(d.RecentPeople, RecentPeopleLimit)
	s.Equal(people[6].ID, d.RecentPeople[0].ID, "newest first")
}

func (s *ProviderServiceSuite) TestDashboard_EmptyProvider() {
	d, err := s.svc.Dashboard(s.ctx, s.other)
	s.Require().NoError(err)

	s.Zero(d.TotalPeople)
	s.NotNil(d.RecentPeople)
	s.Empty(d.RecentPeople)
	s.Len(d.ServiceStats, 1)
}

func (s *ProviderServiceSuite) TestOverview() {
	s.addPerson(s.provider, "A", time.Now())
	s.addPerson(s.other, "B", time.Now())

	o, err := s.svc.Overview(s.ctx)
	s.Require().NoError(err)

	s.Equal(2, o.TotalPeople)
	s.Equal(2, o.TotalProviders)
	s.Len(o.Categories, 3)
}
