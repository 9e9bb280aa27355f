package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/hitoshi/aidbook/internal/model"
)

// 一意制約違反がmodel.ErrConflictとしてラップされることを検証
func TestWrapWriteError_UniqueViolation(t *testing.T) {
	err := wrapWriteError("insert failed", &pq.Error{Code: "23505", Constraint: "uq_help_services_person_category"})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "uq_help_services_person_category") {
		t.Errorf("error should mention constraint: %v", err)
	}
}

// 一意制約違反以外のエラーはそのままラップされることを検証
func TestWrapWriteError_OtherError(t *testing.T) {
	cause := &pq.Error{Code: "23503"}
	err := wrapWriteError("insert failed", cause)
	if errors.Is(err, model.ErrConflict) {
		t.Error("foreign key violation should not be ErrConflict")
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		t.Error("original error should be unwrappable")
	}
}

// JSONBの数値が整数・小数として復元されることを検証
func TestDecodeDocument_Numbers(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"count": 4, "ratio": 1.5, "name": "Ana", "ok": true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := doc["count"].(int64); !ok || v != 4 {
		t.Errorf("count = %#v, want int64(4)", doc["count"])
	}
	if v, ok := doc["ratio"].(float64); !ok || v != 1.5 {
		t.Errorf("ratio = %#v, want 1.5", doc["ratio"])
	}
	if doc["name"] != "Ana" {
		t.Errorf("name = %#v, want Ana", doc["name"])
	}
	if doc["ok"] != true {
		t.Errorf("ok = %#v, want true", doc["ok"])
	}
}

// 空のJSONBとnilドキュメントの扱いを検証
func TestEncodeDecodeDocument_Empty(t *testing.T) {
	raw, err := encodeDocument(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("encodeDocument(nil) = %s, want {}", raw)
	}

	doc, err := decodeDocument(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || len(doc) != 0 {
		t.Errorf("decodeDocument(nil) = %#v, want empty document", doc)
	}
}

// ILIKEのワイルドカードがエスケープされることを検証
func TestContainsPattern_EscapesWildcards(t *testing.T) {
	tests := map[string]string{
		"069":    "%069%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range tests {
		if got := containsPattern(in); got != want {
			t.Errorf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

// 条件なしの検索はWHERE句を持たないことを検証
func TestBuildPersonSearch_NoConditions(t *testing.T) {
	query, args := buildPersonSearch(model.PersonQuery{})

	if strings.Contains(query, "WHERE") {
		t.Errorf("query should not have WHERE: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY p.created_at DESC, p.id DESC") {
		t.Errorf("query should be ordered newest first: %s", query)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

// 各条件が独立したEXISTSとして組み立てられることを検証
func TestBuildPersonSearch_AllConditions(t *testing.T) {
	q := model.PersonQuery{
		Search:     "069",
		SearchKeys: []string{"first_name", "phone"},
		CategoryID: "cat-1",
		Status:     model.ServiceStatusActive,
		FieldFilters: []model.FieldFilter{
			{Key: "gender", Value: "Feminin", Exact: true},
			{Key: "location", Value: "chis"},
		},
		CustomFilters: []model.FieldFilter{{Key: "has_allergies", Value: "Da"}},
	}

	query, args := buildPersonSearch(q)

	wants := []string{
		"unnest($1::text[])",
		"ILIKE $2",
		"p.base_data->>$3 = $4",
		"p.base_data->>$5 ILIKE $6",
		"s.category_id = $7",
		"s.custom_data->>$9 ILIKE $10",
		"s.status = $11",
	}
	for _, w := range wants {
		if !strings.Contains(query, w) {
			t.Errorf("query missing %q:\n%s", w, query)
		}
	}
	if n := strings.Count(query, "EXISTS"); n != 4 {
		t.Errorf("EXISTS count = %d, want 4", n)
	}
	if len(args) != 11 {
		t.Fatalf("len(args) = %d, want 11", len(args))
	}
	if args[1] != "%069%" {
		t.Errorf("search pattern = %v, want %%069%%", args[1])
	}
	if args[3] != "Feminin" {
		t.Errorf("exact filter value = %v, want Feminin", args[3])
	}
}

// 支援種別なしの追加フィールド条件は無視されることを検証
func TestBuildPersonSearch_CustomFiltersRequireCategory(t *testing.T) {
	query, args := buildPersonSearch(model.PersonQuery{
		CustomFilters: []model.FieldFilter{{Key: "has_allergies", Value: "Da"}},
	})
	if strings.Contains(query, "custom_data") {
		t.Errorf("custom filter without category should be ignored: %s", query)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

// UUID形式でないIDはデータベースに問い合わせずに「該当なし」となることを検証
// （dbがnilのため、問い合わせればパニックする）
func TestPostgresRepos_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresStore(nil)
	bad := "abc"

	if a, err := store.Accounts.FindByID(ctx, bad); a != nil || err != nil {
		t.Errorf("Accounts.FindByID = %v, %v; want nil, nil", a, err)
	}
	if c, err := store.Categories.FindByID(ctx, bad); c != nil || err != nil {
		t.Errorf("Categories.FindByID = %v, %v; want nil, nil", c, err)
	}
	if defs, err := store.Fields.ListCategoryFields(ctx, bad); len(defs) != 0 || err != nil {
		t.Errorf("Fields.ListCategoryFields = %v, %v; want empty", defs, err)
	}
	if p, err := store.Persons.FindByID(ctx, bad); p != nil || err != nil {
		t.Errorf("Persons.FindByID = %v, %v; want nil, nil", p, err)
	}
	if p, err := store.Providers.FindByID(ctx, bad); p != nil || err != nil {
		t.Errorf("Providers.FindByID = %v, %v; want nil, nil", p, err)
	}
	if s, err := store.Services.FindByID(ctx, bad); s != nil || err != nil {
		t.Errorf("Services.FindByID = %v, %v; want nil, nil", s, err)
	}
	valid := "6f1c1a8e-2b0e-4d6a-9a55-0d7f3c2b9e11"
	if s, err := store.Services.FindByPersonAndCategory(ctx, valid, bad); s != nil || err != nil {
		t.Errorf("Services.FindByPersonAndCategory = %v, %v; want nil, nil", s, err)
	}
	if list, err := store.Services.ListByPerson(ctx, bad); len(list) != 0 || err != nil {
		t.Errorf("Services.ListByPerson = %v, %v; want empty", list, err)
	}

	n := 0
	for _, err := range store.Persons.Search(ctx, model.PersonQuery{CategoryID: bad}) {
		if err != nil {
			t.Fatalf("Search error: %v", err)
		}
		n++
	}
	if n != 0 {
		t.Errorf("Search with malformed category returned %d rows, want 0", n)
	}
}

func TestIsUUID(t *testing.T) {
	if !isUUID("6f1c1a8e-2b0e-4d6a-9a55-0d7f3c2b9e11") {
		t.Error("canonical UUID should be accepted")
	}
	for _, id := range []string{"", "abc", "1", "6f1c1a8e-2b0e-4d6a-9a55"} {
		if isUUID(id) {
			t.Errorf("isUUID(%q) = true, want false", id)
		}
	}
}
