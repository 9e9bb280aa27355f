// Package search は人物一覧の検索パラメータを解析し、リポジトリが評価する検索条件に変換する。
package search

import (
	"net/url"
	"strings"

	"github.com/hitoshi/aidbook/internal/model"
)

// クエリパラメータ名。
const (
	ParamSearch   = "search"
	ParamCategory = "category"
	ParamStatus   = "status"

	// FieldFilterPrefix は基本フィールドの絞り込みパラメータの接頭辞（filter_<field_key>）。
	FieldFilterPrefix = "filter_"
	// CustomFilterPrefix は追加フィールドの絞り込みパラメータの接頭辞（custom_<field_key>）。
	CustomFilterPrefix = "custom_"
)

// Params は一覧画面から送られた検索パラメータ。空の値は含まない。
type Params struct {
	Search     string            `json:"search,omitempty"`
	CategoryID string            `json:"category,omitempty"`
	Status     string            `json:"status,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// ParseParams はクエリ文字列から検索パラメータを読み取る。
// 値は前後の空白を除去し、空になったものは捨てる。同名パラメータは最初の値を使う。
func ParseParams(values url.Values) Params {
	p := Params{
		Search:     strings.TrimSpace(values.Get(ParamSearch)),
		CategoryID: strings.TrimSpace(values.Get(ParamCategory)),
		Status:     strings.TrimSpace(values.Get(ParamStatus)),
		Fields:     map[string]string{},
		Custom:     map[string]string{},
	}

	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := strings.TrimSpace(vs[0])
		if v == "" {
			continue
		}
		if key, ok := strings.CutPrefix(name, FieldFilterPrefix); ok && key != "" {
			p.Fields[key] = v
		} else if key, ok := strings.CutPrefix(name, CustomFilterPrefix); ok && key != "" {
			p.Custom[key] = v
		}
	}
	return p
}

// IsEmpty は絞り込み条件が1つも指定されていないかどうかを返す。
func (p Params) IsEmpty() bool {
	return p.Search == "" && p.CategoryID == "" && p.Status == "" && len(p.Fields) == 0 && len(p.Custom) == 0
}

// Compile は検索パラメータとフィールド定義から検索条件を組み立てる。
//
// 定義に存在しないキーの絞り込みは無視する。選択肢型の基本フィールドは完全一致、
// それ以外は大文字小文字を区別しない部分一致。追加フィールドの絞り込みは
// 支援種別が選択されている場合のみ有効で、customDefsはその支援種別の定義であること。
// 全文検索の対象となる基本フィールドが1つもない場合、全文検索は条件に含めない。
func Compile(p Params, baseDefs, customDefs []model.FieldDefinition) model.PersonQuery {
	q := model.PersonQuery{CategoryID: p.CategoryID}

	if st := model.ServiceStatus(p.Status); st.Valid() {
		q.Status = st
	}

	if p.Search != "" && len(baseDefs) > 0 {
		q.Search = p.Search
		q.SearchKeys = make([]string, 0, len(baseDefs))
		for _, def := range baseDefs {
			q.SearchKeys = append(q.SearchKeys, def.FieldKey)
		}
	}

	for _, def := range baseDefs {
		if v, ok := p.Fields[def.FieldKey]; ok {
			q.FieldFilters = append(q.FieldFilters, model.FieldFilter{
				Key:   def.FieldKey,
				Value: v,
				Exact: def.Kind.IsChoice(),
			})
		}
	}

	if q.CategoryID != "" {
		for _, def := range customDefs {
			if v, ok := p.Custom[def.FieldKey]; ok {
				q.CustomFilters = append(q.CustomFilters, model.FieldFilter{Key: def.FieldKey, Value: v})
			}
		}
	}

	return q
}
