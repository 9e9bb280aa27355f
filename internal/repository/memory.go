package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/hitoshi/aidbook/internal/model"
)

// memoryDB はインメモリリポジトリが共有するデータ。
// 全リポジトリが1つのロックで保護されるため、リポジトリ間の参照整合性を検査できる。
type memoryDB struct {
	mu sync.RWMutex

	accounts       map[string]*model.Account
	sessions       map[string]*model.Session
	providers      map[string]*model.Provider
	categories     map[string]*model.Category
	baseFields     []*model.FieldDefinition
	categoryFields []*model.FieldDefinition
	persons        map[string]*model.Person
	services       map[string]*model.HelpService
	now            func() time.Time
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		accounts:   make(map[string]*model.Account),
		sessions:   make(map[string]*model.Session),
		providers:  make(map[string]*model.Provider),
		categories: make(map[string]*model.Category),
		persons:    make(map[string]*model.Person),
		services:   make(map[string]*model.HelpService),
		now:        time.Now,
	}
}

// containsFold は大文字小文字を区別しない部分一致（PostgreSQLのILIKE相当）を判定する。
// cases.Caserは並行利用できないため呼び出しごとに生成する。
func containsFold(s, substr string) bool {
	c := cases.Fold()
	return strings.Contains(c.String(s), c.String(substr))
}

// valueText はドキュメントの値をJSONBの ->> 演算子と同じ文字列表現に変換する。
func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}

// MemoryAccountRepo はインメモリのアカウントリポジトリ。
type MemoryAccountRepo struct {
	db *memoryDB
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *MemoryAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if a, ok := r.db.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
func (r *MemoryAccountRepo) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, a := range r.db.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// checkUsername はユーザー名の一意制約を検査する。呼び出し側でロックを取得すること。
func (r *MemoryAccountRepo) checkUsername(username string) error {
	for _, a := range r.db.accounts {
		if a.Username == username {
			return fmt.Errorf("failed to insert account: %w (uq_accounts_username)", model.ErrConflict)
		}
	}
	return nil
}

// Create は支援提供者を伴わないアカウントを作成する。
func (r *MemoryAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.checkUsername(account.Username); err != nil {
		return err
	}
	a := *account
	r.db.accounts[a.ID] = &a
	return nil
}

// CreateWithProvider はアカウントと支援提供者をまとめて作成する。
// いずれかの検査に失敗した場合は何も書き込まない。
func (r *MemoryAccountRepo) CreateWithProvider(_ context.Context, account *model.Account, provider *model.Provider) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.checkUsername(account.Username); err != nil {
		return err
	}
	for _, p := range r.db.providers {
		if p.AccountID == provider.AccountID {
			return fmt.Errorf("failed to insert provider: %w (uq_providers_account_id)", model.ErrConflict)
		}
	}
	for _, id := range provider.CategoryIDs {
		if _, ok := r.db.categories[id]; !ok {
			return fmt.Errorf("failed to insert provider category: unknown category %s", id)
		}
	}

	a := *account
	r.db.accounts[a.ID] = &a

	p := *provider
	p.Username = account.Username
	p.CategoryIDs = slices.Clone(provider.CategoryIDs)
	slices.Sort(p.CategoryIDs)
	p.CategoryIDs = slices.Compact(p.CategoryIDs)
	r.db.providers[p.ID] = &p

	return nil
}

// MemorySessionRepo はインメモリのセッションリポジトリ。
type MemorySessionRepo struct {
	db *memoryDB
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.accounts[session.AccountID]; !ok {
		return fmt.Errorf("failed to create session: unknown account %s", session.AccountID)
	}
	s := *session
	r.db.sessions[s.ID] = &s
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.sessions[id]
	if !ok || !s.ExpiresAt.After(r.db.now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.sessions, id)
	return nil
}

// DeleteByAccountID は指定アカウントの全セッションを削除する。
func (r *MemorySessionRepo) DeleteByAccountID(_ context.Context, accountID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, s := range r.db.sessions {
		if s.AccountID == accountID {
			delete(r.db.sessions, id)
		}
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	var n int64
	for id, s := range r.db.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.db.sessions, id)
			n++
		}
	}
	return n, nil
}

// MemoryProviderRepo はインメモリの支援提供者リポジトリ。
type MemoryProviderRepo struct {
	db *memoryDB
}

func copyProvider(p *model.Provider) *model.Provider {
	cp := *p
	cp.CategoryIDs = slices.Clone(p.CategoryIDs)
	return &cp
}

// FindByID は指定IDの提供者を取得する。見つからない場合はnilを返す。
func (r *MemoryProviderRepo) FindByID(_ context.Context, id string) (*model.Provider, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.providers[id]; ok {
		return copyProvider(p), nil
	}
	return nil, nil
}

// FindByAccountID はアカウントIDで提供者を検索する。提供者として登録されていない場合はnilを返す。
func (r *MemoryProviderRepo) FindByAccountID(_ context.Context, accountID string) (*model.Provider, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.providers {
		if p.AccountID == accountID {
			return copyProvider(p), nil
		}
	}
	return nil, nil
}

// Count は提供者数を返す。
func (r *MemoryProviderRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.providers), nil
}

// MemoryCategoryRepo はインメモリの支援種別リポジトリ。
type MemoryCategoryRepo struct {
	db *memoryDB
}

// List は全支援種別を表示順（同順位は名前順）で返す。
func (r *MemoryCategoryRepo) List(_ context.Context) ([]*model.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]*model.Category, 0, len(r.db.categories))
	for _, c := range r.db.categories {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Category) int {
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder - b.DisplayOrder
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// FindByID は指定IDの支援種別を取得する。見つからない場合はnilを返す。
func (r *MemoryCategoryRepo) FindByID(_ context.Context, id string) (*model.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// FindByName は名前で支援種別を検索する。見つからない場合はnilを返す。
func (r *MemoryCategoryRepo) FindByName(_ context.Context, name string) (*model.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, c := range r.db.categories {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// Create は支援種別を作成する。
func (r *MemoryCategoryRepo) Create(_ context.Context, category *model.Category) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, c := range r.db.categories {
		if c.Name == category.Name {
			return fmt.Errorf("支援種別の作成に失敗しました: %w (uq_categories_name)", model.ErrConflict)
		}
	}
	c := *category
	r.db.categories[c.ID] = &c
	return nil
}

// Count は支援種別数を返す。
func (r *MemoryCategoryRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.categories), nil
}

// MemoryFieldDefinitionRepo はインメモリのフィールド定義リポジトリ。
type MemoryFieldDefinitionRepo struct {
	db *memoryDB
}

func sortedDefinitions(defs []*model.FieldDefinition, keep func(*model.FieldDefinition) bool) []model.FieldDefinition {
	out := make([]model.FieldDefinition, 0, len(defs))
	for _, d := range defs {
		if keep(d) {
			out = append(out, *d)
		}
	}
	slices.SortStableFunc(out, func(a, b model.FieldDefinition) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(a.FieldKey, b.FieldKey)
	})
	return out
}

// ListBaseFields は基本フィールドを表示順で返す。
func (r *MemoryFieldDefinitionRepo) ListBaseFields(_ context.Context) ([]model.FieldDefinition, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return sortedDefinitions(r.db.baseFields, func(*model.FieldDefinition) bool { return true }), nil
}

// ListCategoryFields は指定支援種別の追加フィールドを表示順で返す。
func (r *MemoryFieldDefinitionRepo) ListCategoryFields(_ context.Context, categoryID string) ([]model.FieldDefinition, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return sortedDefinitions(r.db.categoryFields, func(d *model.FieldDefinition) bool {
		return d.CategoryID == categoryID
	}), nil
}

// CreateBaseField は基本フィールドを作成する。
func (r *MemoryFieldDefinitionRepo) CreateBaseField(_ context.Context, def *model.FieldDefinition) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, d := range r.db.baseFields {
		if d.FieldKey == def.FieldKey {
			return fmt.Errorf("基本フィールドの作成に失敗しました: %w (uq_base_fields_field_key)", model.ErrConflict)
		}
	}
	d := *def
	d.Scope = model.FieldScopeBase
	d.CategoryID = ""
	r.db.baseFields = append(r.db.baseFields, &d)
	return nil
}

// CreateCategoryField は追加フィールドを作成する。
func (r *MemoryFieldDefinitionRepo) CreateCategoryField(_ context.Context, def *model.FieldDefinition) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.categories[def.CategoryID]; !ok {
		return fmt.Errorf("追加フィールドの作成に失敗しました: unknown category %s", def.CategoryID)
	}
	for _, d := range r.db.categoryFields {
		if d.CategoryID == def.CategoryID && d.FieldKey == def.FieldKey {
			return fmt.Errorf("追加フィールドの作成に失敗しました: %w (uq_category_fields_category_field_key)", model.ErrConflict)
		}
	}
	d := *def
	d.Scope = model.FieldScopeCategory
	d.ShowInSummary = false
	r.db.categoryFields = append(r.db.categoryFields, &d)
	return nil
}

// compile-time interface check
var (
	_ AccountRepository         = (*MemoryAccountRepo)(nil)
	_ SessionRepository         = (*MemorySessionRepo)(nil)
	_ ProviderRepository        = (*MemoryProviderRepo)(nil)
	_ CategoryRepository        = (*MemoryCategoryRepo)(nil)
	_ FieldDefinitionRepository = (*MemoryFieldDefinitionRepo)(nil)
)
