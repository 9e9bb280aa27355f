package person

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/aidbook/internal/access"
	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/model"
)

// FieldValue はフィールド定義と値の組（表示・エクスポート用）。
type FieldValue struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Kind    model.FieldKind `json:"kind"`
	Value   any             `json:"value"`
	Display string          `json:"display"`
}

// ServiceView は人物詳細に表示する1件の支援記録。
type ServiceView struct {
	Service      *model.HelpService
	CategoryName string
	StatusLabel  string
	Fields       []FieldValue
	Editable     bool
}

// Detail は人物詳細画面の内容。
// 支援記録は提供者が編集できるものと閲覧のみのものに分けて返す。
type Detail struct {
	Person           *model.Person
	DisplayName      string
	Fields           []FieldValue
	EditableServices []ServiceView
	ReadOnlyServices []ServiceView
}

// resolveFields はフィールド定義の順に(定義, 値)の組を作る。
// ドキュメントにないキーは空値とし、定義にないキーは含めない。
func resolveFields(defs []model.FieldDefinition, doc model.Document) []FieldValue {
	out := make([]FieldValue, 0, len(defs))
	for _, d := range defs {
		v := doc[d.FieldKey]
		out = append(out, FieldValue{
			Key:     d.FieldKey,
			Label:   d.DisplayName,
			Kind:    d.Kind,
			Value:   v,
			Display: form.DisplayString(v),
		})
	}
	return out
}

// Detail は人物の詳細を組み立てる。
// 基本フィールド定義・支援記録・支援種別の読み出しと、支援記録ごとの追加フィールド定義の読み出しは並行に行う。
func (s *Service) Detail(ctx context.Context, provider *model.Provider, id string) (*Detail, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		baseDefs   []model.FieldDefinition
		services   []*model.HelpService
		categories map[string]*model.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseDefs, err = s.catalog.BaseFields(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		services, err = s.services.ListByPerson(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("支援記録の取得に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.catalog.CategoryIndex(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]ServiceView, len(services))
	g, gctx = errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			defs, err := s.catalog.CategoryFields(gctx, svc.CategoryID)
			if err != nil {
				return err
			}
			name := svc.CategoryID
			if c, ok := categories[svc.CategoryID]; ok {
				name = c.Name
			}
			views[i] = ServiceView{
				Service:      svc,
				CategoryName: name,
				StatusLabel:  form.StatusLabel(svc.Status),
				Fields:       resolveFields(defs, svc.CustomData),
				Editable:     access.CanEdit(provider, svc.CategoryID),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Detail{
		Person:           p,
		DisplayName:      DisplayName(p),
		Fields:           resolveFields(baseDefs, p.BaseData),
		EditableServices: []ServiceView{},
		ReadOnlyServices: []ServiceView{},
	}
	for _, v := range views {
		if v.Editable {
			d.EditableServices = append(d.EditableServices, v)
		} else {
			d.ReadOnlyServices = append(d.ReadOnlyServices, v)
		}
	}
	return d, nil
}
