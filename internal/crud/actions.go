// Package crud mounts react-admin compatible CRUD routes on a gin router and
// delegates data access to caller-supplied collaborators.
package crud

import (
	"context"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/query"
)

// ListParams is what a list collaborator receives for a filtered list request.
type ListParams struct {
	Filter query.Filter
	Limit  int
	Offset int
	Order  []domain.OrderBy
}

// ListResult is one page of records plus the total number of matches.
type ListResult struct {
	Rows  []domain.Record
	Count int64
}

type (
	CreateFunc  func(ctx context.Context, body domain.Record) (domain.Record, error)
	GetOneFunc  func(ctx context.Context, id string) (domain.Record, error)
	UpdateFunc  func(ctx context.Context, id string, body domain.Record) (domain.Record, error)
	DestroyFunc func(ctx context.Context, id string) error
	GetListFunc func(ctx context.Context, params ListParams) (ListResult, error)
	// SearchFunc answers a free-text query. scope holds the other filters of
	// the request and must restrict the matches.
	SearchFunc func(ctx context.Context, q string, limit int, scope query.Filter) (ListResult, error)
)

// Funcs are the collaborators behind a resource. A nil field disables the
// matching route unless an operation list is given explicitly.
//
// GetOne returns a nil record and a nil error when the record does not exist.
type Funcs struct {
	Create  CreateFunc
	GetOne  GetOneFunc
	Update  UpdateFunc
	Destroy DestroyFunc
	GetList GetListFunc
	Search  SearchFunc
}

// Actions is a complete backend for a resource.
type Actions interface {
	Create(ctx context.Context, body domain.Record) (domain.Record, error)
	GetOne(ctx context.Context, id string) (domain.Record, error)
	Update(ctx context.Context, id string, body domain.Record) (domain.Record, error)
	Destroy(ctx context.Context, id string) error
	GetList(ctx context.Context, params ListParams) (ListResult, error)
}

// Searcher is implemented by backends that support free-text search.
type Searcher interface {
	Search(ctx context.Context, q string, limit int, scope query.Filter) (ListResult, error)
}

// FromActions adapts a backend into Funcs. Search is wired when a also
// implements Searcher.
func FromActions(a Actions) Funcs {
	f := Funcs{
		Create:  a.Create,
		GetOne:  a.GetOne,
		Update:  a.Update,
		Destroy: a.Destroy,
		GetList: a.GetList,
	}
	if s, ok := a.(Searcher); ok {
		f.Search = s.Search
	}
	return f
}

// SearchFields builds a SearchFunc that runs the ranked search plan over
// fields. fetch is called once per plan group, with the request scope already
// folded into the predicate.
func SearchFields(fields []query.SearchField, fetch query.FetchFunc, fold bool) SearchFunc {
	return func(ctx context.Context, q string, limit int, scope query.Filter) (ListResult, error) {
		plan, err := query.BuildSearchPlan(q, fields, fold)
		if err != nil {
			return ListResult{}, err
		}
		base := scope.Predicate()
		rows, err := query.Search(ctx, plan, limit, func(ctx context.Context, where query.Predicate, limit int) ([]domain.Record, error) {
			return fetch(ctx, query.Combine(base, where), limit)
		})
		if err != nil {
			return ListResult{}, err
		}
		return ListResult{Rows: rows, Count: int64(len(rows))}, nil
	}
}
