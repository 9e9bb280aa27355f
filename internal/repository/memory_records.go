package repository

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/hitoshi/aidbook/internal/model"
)

// MemoryPersonRepo はインメモリの人物リポジトリ。
type MemoryPersonRepo struct {
	db *memoryDB
}

func copyPerson(p *model.Person) *model.Person {
	cp := *p
	cp.BaseData = p.BaseData.Clone()
	if p.CreatedBy != nil {
		id := *p.CreatedBy
		cp.CreatedBy = &id
	}
	return &cp
}

// newestFirst は作成日時の降順（同時刻はIDの降順）で並べる。
func newestFirst(a, b *model.Person) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// Create は人物を作成する。
func (r *MemoryPersonRepo) Create(_ context.Context, person *model.Person) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.persons[person.ID]; ok {
		return fmt.Errorf("人物の作成に失敗しました: %w (persons_pkey)", model.ErrConflict)
	}
	r.db.persons[person.ID] = copyPerson(person)
	return nil
}

// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
func (r *MemoryPersonRepo) FindByID(_ context.Context, id string) (*model.Person, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.persons[id]; ok {
		return copyPerson(p), nil
	}
	return nil, nil
}

// SaveBaseData はbase_dataをドキュメント全体で置き換える。
func (r *MemoryPersonRepo) SaveBaseData(_ context.Context, id string, data model.Document) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.persons[id]
	if !ok {
		return fmt.Errorf("人物が見つかりません: %s", id)
	}
	if data == nil {
		data = model.Document{}
	}
	p.BaseData = data.Clone()
	p.UpdatedAt = r.db.now()
	return nil
}

// Search は条件に一致する人物を作成日時の降順で返す。
// 走査開始時点のスナップショットを評価し、ロックを保持したままyieldしない。
func (r *MemoryPersonRepo) Search(ctx context.Context, q model.PersonQuery) iter.Seq2[*model.Person, error] {
	return func(yield func(*model.Person, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		matched := r.match(q)
		for _, p := range matched {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (r *MemoryPersonRepo) match(q model.PersonQuery) []*model.Person {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]*model.Person, 0)
	for _, p := range r.db.persons {
		if r.matchPerson(p, q) {
			out = append(out, copyPerson(p))
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

// matchPerson はPostgreSQL実装のbuildPersonSearchと同じ条件を評価する。
func (r *MemoryPersonRepo) matchPerson(p *model.Person, q model.PersonQuery) bool {
	if q.Search != "" && len(q.SearchKeys) > 0 {
		found := false
		for _, key := range q.SearchKeys {
			if v, ok := p.BaseData[key]; ok && containsFold(valueText(v), q.Search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, f := range q.FieldFilters {
		v, ok := p.BaseData[f.Key]
		if !ok {
			return false
		}
		if f.Exact {
			if valueText(v) != f.Value {
				return false
			}
		} else if !containsFold(valueText(v), f.Value) {
			return false
		}
	}

	if q.CategoryID != "" {
		if !r.hasService(p.ID, func(s *model.HelpService) bool { return s.CategoryID == q.CategoryID }) {
			return false
		}
		for _, f := range q.CustomFilters {
			ok := r.hasService(p.ID, func(s *model.HelpService) bool {
				if s.CategoryID != q.CategoryID {
					return false
				}
				v, exists := s.CustomData[f.Key]
				return exists && containsFold(valueText(v), f.Value)
			})
			if !ok {
				return false
			}
		}
	}

	if q.Status != "" {
		if !r.hasService(p.ID, func(s *model.HelpService) bool { return s.Status == q.Status }) {
			return false
		}
	}

	return true
}

func (r *MemoryPersonRepo) hasService(personID string, pred func(*model.HelpService) bool) bool {
	for _, s := range r.db.services {
		if s.PersonID == personID && pred(s) {
			return true
		}
	}
	return false
}

// Count は人物数を返す。
func (r *MemoryPersonRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.persons), nil
}

// CountByCreator は指定提供者が登録した人物数を返す。
func (r *MemoryPersonRepo) CountByCreator(_ context.Context, providerID string) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, p := range r.db.persons {
		if p.CreatedBy != nil && *p.CreatedBy == providerID {
			n++
		}
	}
	return n, nil
}

// ListRecentByCreator は指定提供者が登録した人物を新しい順にlimit件返す。
func (r *MemoryPersonRepo) ListRecentByCreator(_ context.Context, providerID string, limit int) ([]*model.Person, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Person
	for _, p := range r.db.persons {
		if p.CreatedBy != nil && *p.CreatedBy == providerID {
			out = append(out, copyPerson(p))
		}
	}
	slices.SortFunc(out, newestFirst)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryHelpServiceRepo はインメモリの支援記録リポジトリ。
type MemoryHelpServiceRepo struct {
	db *memoryDB
}

func copyService(s *model.HelpService) *model.HelpService {
	cp := *s
	cp.CustomData = s.CustomData.Clone()
	if s.CreatedBy != nil {
		id := *s.CreatedBy
		cp.CreatedBy = &id
	}
	return &cp
}

// Create は支援記録を作成する。
// 同じ人物・支援種別の組み合わせが存在する場合は何も書き込まずにmodel.ErrConflictを返す。
func (r *MemoryHelpServiceRepo) Create(_ context.Context, service *model.HelpService) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.persons[service.PersonID]; !ok {
		return fmt.Errorf("支援記録の作成に失敗しました: unknown person %s", service.PersonID)
	}
	if _, ok := r.db.categories[service.CategoryID]; !ok {
		return fmt.Errorf("支援記録の作成に失敗しました: unknown category %s", service.CategoryID)
	}
	for _, s := range r.db.services {
		if s.PersonID == service.PersonID && s.CategoryID == service.CategoryID {
			return fmt.Errorf("支援記録の作成に失敗しました: %w (uq_help_services_person_category)", model.ErrConflict)
		}
	}
	cp := copyService(service)
	if cp.CustomData == nil {
		cp.CustomData = model.Document{}
	}
	r.db.services[cp.ID] = cp
	return nil
}

// FindByID は指定IDの支援記録を取得する。見つからない場合はnilを返す。
func (r *MemoryHelpServiceRepo) FindByID(_ context.Context, id string) (*model.HelpService, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if s, ok := r.db.services[id]; ok {
		return copyService(s), nil
	}
	return nil, nil
}

// FindByPersonAndCategory は人物と支援種別で支援記録を検索する。見つからない場合はnilを返す。
func (r *MemoryHelpServiceRepo) FindByPersonAndCategory(_ context.Context, personID, categoryID string) (*model.HelpService, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, s := range r.db.services {
		if s.PersonID == personID && s.CategoryID == categoryID {
			return copyService(s), nil
		}
	}
	return nil, nil
}

// ListByPerson は人物の支援記録を作成日時の昇順で返す。
func (r *MemoryHelpServiceRepo) ListByPerson(_ context.Context, personID string) ([]*model.HelpService, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.HelpService
	for _, s := range r.db.services {
		if s.PersonID == personID {
			out = append(out, copyService(s))
		}
	}
	slices.SortFunc(out, func(a, b *model.HelpService) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Update は状態・メモ・custom_dataを更新する。支援種別は変更しない。
func (r *MemoryHelpServiceRepo) Update(_ context.Context, service *model.HelpService) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.services[service.ID]
	if !ok {
		return fmt.Errorf("支援記録が見つかりません: %s", service.ID)
	}
	s.CustomData = service.CustomData.Clone()
	if s.CustomData == nil {
		s.CustomData = model.Document{}
	}
	s.Status = service.Status
	s.Notes = service.Notes
	s.UpdatedAt = service.UpdatedAt
	return nil
}

// CountByCreator は指定提供者が登録した支援記録数を返す。
func (r *MemoryHelpServiceRepo) CountByCreator(_ context.Context, providerID string) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, s := range r.db.services {
		if s.CreatedBy != nil && *s.CreatedBy == providerID {
			n++
		}
	}
	return n, nil
}

// CountByCreatorPerCategory は指定提供者が登録した支援記録数を支援種別IDごとに返す。
func (r *MemoryHelpServiceRepo) CountByCreatorPerCategory(_ context.Context, providerID string) (map[string]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, s := range r.db.services {
		if s.CreatedBy != nil && *s.CreatedBy == providerID {
			counts[s.CategoryID]++
		}
	}
	return counts, nil
}

// compile-time interface check
var (
	_ PersonRepository      = (*MemoryPersonRepo)(nil)
	_ HelpServiceRepository = (*MemoryHelpServiceRepo)(nil)
)
