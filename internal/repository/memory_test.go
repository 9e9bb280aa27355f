package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hitoshi/aidbook/internal/model"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context

	food     *model.Category
	housing  *model.Category
	provider *model.Provider
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()

	s.food = s.createCategory("Alimente", 1)
	s.housing = s.createCategory("Cazare", 2)

	account := &model.Account{ID: uuid.NewString(), Username: "ana", PasswordHash: "x", CreatedAt: time.Now()}
	s.provider = &model.Provider{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		CategoryIDs: []string{s.food.ID},
		CreatedAt:   time.Now(),
	}
	s.Require().NoError(s.store.Accounts.CreateWithProvider(s.ctx, account, s.provider))
}

func (s *MemoryStoreSuite) createCategory(name string, order int) *model.Category {
	c := &model.Category{ID: uuid.NewString(), Name: name, DisplayOrder: order, CreatedAt: time.Now()}
	s.Require().NoError(s.store.Categories.Create(s.ctx, c))
	return c
}

func (s *MemoryStoreSuite) createPerson(data model.Document, createdAt time.Time) *model.Person {
	providerID := s.provider.ID
	p := &model.Person{
		ID:        uuid.NewString(),
		BaseData:  data,
		CreatedBy: &providerID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.Require().NoError(s.store.Persons.Create(s.ctx, p))
	return p
}

func (s *MemoryStoreSuite) createService(personID, categoryID string, status model.ServiceStatus, data model.Document) *model.HelpService {
	providerID := s.provider.ID
	svc := &model.HelpService{
		ID:         uuid.NewString(),
		PersonID:   personID,
		CategoryID: categoryID,
		CustomData: data,
		Status:     status,
		CreatedBy:  &providerID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.store.Services.Create(s.ctx, svc))
	return svc
}

func (s *MemoryStoreSuite) search(q model.PersonQuery) []string {
	var ids []string
	for p, err := range s.store.Persons.Search(s.ctx, q) {
		s.Require().NoError(err)
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *MemoryStoreSuite) TestAccountsAndProviders() {
	s.Run("提供者はアカウント名と担当支援種別を持つ", func() {
		found, err := s.store.Providers.FindByAccountID(s.ctx, s.provider.AccountID)
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal("ana", found.Username)
		s.True(found.HasCategory(s.food.ID))
		s.False(found.HasCategory(s.housing.ID))
	})

	s.Run("提供者でないアカウントはnilを返す", func() {
		found, err := s.store.Providers.FindByAccountID(s.ctx, uuid.NewString())
		s.Require().NoError(err)
		s.Nil(found)
	})

	s.Run("重複するユーザー名はConflict", func() {
		account := &model.Account{ID: uuid.NewString(), Username: "ana"}
		provider := &model.Provider{ID: uuid.NewString(), AccountID: account.ID}
		err := s.store.Accounts.CreateWithProvider(s.ctx, account, provider)
		s.Require().Error(err)
		s.ErrorIs(err, model.ErrConflict)

		// 失敗時は提供者も作成されない
		count, err := s.store.Providers.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}

func (s *MemoryStoreSuite) TestAccountWithoutProvider() {
	staff := &model.Account{ID: uuid.NewString(), Username: "staff", PasswordHash: "x", CreatedAt: time.Now()}
	s.Require().NoError(s.store.Accounts.Create(s.ctx, staff))

	found, err := s.store.Accounts.FindByID(s.ctx, staff.ID)
	s.Require().NoError(err)
	s.Equal("staff", found.Username)

	p, err := s.store.Providers.FindByAccountID(s.ctx, staff.ID)
	s.Require().NoError(err)
	s.Nil(p)

	err = s.store.Accounts.Create(s.ctx, &model.Account{ID: uuid.NewString(), Username: "ana", CreatedAt: time.Now()})
	s.ErrorIs(err, model.ErrConflict)
}

func (s *MemoryStoreSuite) TestSessions() {
	account, err := s.store.Accounts.FindByUsername(s.ctx, "ana")
	s.Require().NoError(err)

	live := &model.Session{ID: "live", AccountID: account.ID, ExpiresAt: time.Now().Add(time.Hour)}
	expired := &model.Session{ID: "expired", AccountID: account.ID, ExpiresAt: time.Now().Add(-time.Hour)}
	s.Require().NoError(s.store.Sessions.Create(s.ctx, live))
	s.Require().NoError(s.store.Sessions.Create(s.ctx, expired))

	found, err := s.store.Sessions.FindByID(s.ctx, "expired")
	s.Require().NoError(err)
	s.Nil(found)

	n, err := s.store.Sessions.DeleteExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	found, err = s.store.Sessions.FindByID(s.ctx, "live")
	s.Require().NoError(err)
	s.NotNil(found)
}

func (s *MemoryStoreSuite) TestFieldDefinitions() {
	s.Require().NoError(s.store.Fields.CreateBaseField(s.ctx, &model.FieldDefinition{ID: "b2", FieldKey: "last_name", Kind: model.FieldKindText, Order: 2}))
	s.Require().NoError(s.store.Fields.CreateBaseField(s.ctx, &model.FieldDefinition{ID: "b1", FieldKey: "first_name", Kind: model.FieldKindText, Order: 1}))

	s.Run("表示順で返す", func() {
		defs, err := s.store.Fields.ListBaseFields(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(defs, 2)
		s.Equal("first_name", defs[0].FieldKey)
		s.Equal(model.FieldScopeBase, defs[0].Scope)
	})

	s.Run("基本フィールドのキー重複はConflict", func() {
		err := s.store.Fields.CreateBaseField(s.ctx, &model.FieldDefinition{ID: "b3", FieldKey: "first_name"})
		s.ErrorIs(err, model.ErrConflict)
	})

	s.Run("追加フィールドのキーは支援種別ごとに一意", func() {
		def := &model.FieldDefinition{ID: "c1", CategoryID: s.food.ID, FieldKey: "has_allergies", Kind: model.FieldKindChoice}
		s.Require().NoError(s.store.Fields.CreateCategoryField(s.ctx, def))

		dup := &model.FieldDefinition{ID: "c2", CategoryID: s.food.ID, FieldKey: "has_allergies"}
		s.ErrorIs(s.store.Fields.CreateCategoryField(s.ctx, dup), model.ErrConflict)

		other := &model.FieldDefinition{ID: "c3", CategoryID: s.housing.ID, FieldKey: "has_allergies"}
		s.NoError(s.store.Fields.CreateCategoryField(s.ctx, other))

		defs, err := s.store.Fields.ListCategoryFields(s.ctx, s.food.ID)
		s.Require().NoError(err)
		s.Len(defs, 1)
	})
}

func (s *MemoryStoreSuite) TestPersonRoundTrip() {
	data := model.Document{"first_name": "Ana", "phone": "+37369112233", "legacy": "kept"}
	p := s.createPerson(data, time.Now())

	// 呼び出し側のマップを変更しても保存内容に影響しない
	data["first_name"] = "changed"

	found, err := s.store.Persons.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(model.Document{"first_name": "Ana", "phone": "+37369112233", "legacy": "kept"}, found.BaseData)

	s.Require().NoError(s.store.Persons.SaveBaseData(s.ctx, p.ID, model.Document{"first_name": "Ion"}))
	found, err = s.store.Persons.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(model.Document{"first_name": "Ion"}, found.BaseData)

	s.Error(s.store.Persons.SaveBaseData(s.ctx, uuid.NewString(), model.Document{}))
}

func (s *MemoryStoreSuite) TestServiceUniqueness() {
	p := s.createPerson(model.Document{"first_name": "Ana"}, time.Now())
	first := s.createService(p.ID, s.food.ID, model.ServiceStatusActive, model.Document{"has_allergies": "Nu"})

	dup := &model.HelpService{
		ID:         uuid.NewString(),
		PersonID:   p.ID,
		CategoryID: s.food.ID,
		CustomData: model.Document{"has_allergies": "Da"},
		Status:     model.ServiceStatusPending,
	}
	err := s.store.Services.Create(s.ctx, dup)
	s.Require().Error(err)
	s.True(errors.Is(err, model.ErrConflict))

	found, err := s.store.Services.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("Nu", found.CustomData["has_allergies"])
	s.Equal(model.ServiceStatusActive, found.Status)
}

func (s *MemoryStoreSuite) TestServiceUpdateKeepsCategory() {
	p := s.createPerson(model.Document{}, time.Now())
	svc := s.createService(p.ID, s.food.ID, model.ServiceStatusActive, model.Document{})

	svc.CategoryID = s.housing.ID
	svc.Status = model.ServiceStatusCompleted
	svc.Notes = "gata"
	s.Require().NoError(s.store.Services.Update(s.ctx, svc))

	found, err := s.store.Services.FindByID(s.ctx, svc.ID)
	s.Require().NoError(err)
	s.Equal(s.food.ID, found.CategoryID)
	s.Equal(model.ServiceStatusCompleted, found.Status)
	s.Equal("gata", found.Notes)
}

func (s *MemoryStoreSuite) TestSearch() {
	base := time.Now()
	p1 := s.createPerson(model.Document{"first_name": "Ana", "phone": "069112233", "gender": "Feminin"}, base)
	p2 := s.createPerson(model.Document{"first_name": "Ion", "phone": "079000000", "gender": "Masculin"}, base.Add(time.Minute))
	p3 := s.createPerson(model.Document{"first_name": "Ștefan", "phone": "022", "gender": "Masculin"}, base.Add(2*time.Minute))

	s.createService(p1.ID, s.food.ID, model.ServiceStatusActive, model.Document{"has_allergies": "Da"})
	s.createService(p1.ID, s.housing.ID, model.ServiceStatusPending, model.Document{})
	s.createService(p2.ID, s.food.ID, model.ServiceStatusCompleted, model.Document{"has_allergies": "Nu"})

	keys := []string{"first_name", "phone"}

	s.Run("条件なしは新しい順に全件", func() {
		s.Equal([]string{p3.ID, p2.ID, p1.ID}, s.search(model.PersonQuery{}))
	})

	s.Run("全文検索は基本フィールドのいずれかに部分一致", func() {
		s.Equal([]string{p1.ID}, s.search(model.PersonQuery{Search: "069", SearchKeys: keys}))
		s.Equal([]string{p2.ID}, s.search(model.PersonQuery{Search: "ion", SearchKeys: keys}))
		s.Equal([]string{p3.ID}, s.search(model.PersonQuery{Search: "șTEFAN", SearchKeys: keys}))
	})

	s.Run("検索対象キーがなければ全文検索は無視される", func() {
		s.Len(s.search(model.PersonQuery{Search: "069"}), 3)
	})

	s.Run("支援種別で絞り込み、複数の支援記録でも重複しない", func() {
		s.Equal([]string{p2.ID, p1.ID}, s.search(model.PersonQuery{CategoryID: s.food.ID}))
	})

	s.Run("状態は支援種別と独立に評価される", func() {
		// p1はfoodがactive、housingがpending
		s.Equal([]string{p1.ID}, s.search(model.PersonQuery{CategoryID: s.food.ID, Status: model.ServiceStatusPending}))
	})

	s.Run("選択肢フィールドは完全一致", func() {
		q := model.PersonQuery{FieldFilters: []model.FieldFilter{{Key: "gender", Value: "Masculin", Exact: true}}}
		s.Equal([]string{p3.ID, p2.ID}, s.search(q))

		q = model.PersonQuery{FieldFilters: []model.FieldFilter{{Key: "gender", Value: "masc", Exact: true}}}
		s.Empty(s.search(q))
	})

	s.Run("その他のフィールドは部分一致", func() {
		q := model.PersonQuery{FieldFilters: []model.FieldFilter{{Key: "phone", Value: "0"}}}
		s.Len(s.search(q), 3)
	})

	s.Run("追加フィールドは選択した支援種別の支援記録に対して評価される", func() {
		q := model.PersonQuery{
			CategoryID:    s.food.ID,
			CustomFilters: []model.FieldFilter{{Key: "has_allergies", Value: "da"}},
		}
		s.Equal([]string{p1.ID}, s.search(q))
	})

	s.Run("途中で走査を止められる", func() {
		n := 0
		for range s.store.Persons.Search(s.ctx, model.PersonQuery{}) {
			n++
			break
		}
		s.Equal(1, n)
	})
}

func (s *MemoryStoreSuite) TestCreatorStatistics() {
	p1 := s.createPerson(model.Document{}, time.Now())
	p2 := s.createPerson(model.Document{}, time.Now().Add(time.Second))
	s.createService(p1.ID, s.food.ID, model.ServiceStatusActive, nil)
	s.createService(p2.ID, s.food.ID, model.ServiceStatusActive, nil)
	s.createService(p2.ID, s.housing.ID, model.ServiceStatusActive, nil)

	n, err := s.store.Persons.CountByCreator(s.ctx, s.provider.ID)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.store.Services.CountByCreator(s.ctx, s.provider.ID)
	s.Require().NoError(err)
	s.Equal(3, n)

	perCategory, err := s.store.Services.CountByCreatorPerCategory(s.ctx, s.provider.ID)
	s.Require().NoError(err)
	s.Equal(map[string]int{s.food.ID: 2, s.housing.ID: 1}, perCategory)

	recent, err := s.store.Persons.ListRecentByCreator(s.ctx, s.provider.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(p2.ID, recent[0].ID)
}
