package crud

import (
	"context"
	"sync/atomic"

	"github.com/simp-lee/crudrouter/internal/domain"
)

// FetchAllFunc loads every record referenced by rows in one call.
type FetchAllFunc func(ctx context.Context, rows []domain.Record) ([]domain.Record, error)

// Reference describes how the rows of a response point at other records:
// row[Source] is matched against reference[Target].
type Reference struct {
	FetchAll FetchAllFunc
	Source   string
	Target   string
}

type memoKey uint64

var memoKeys atomic.Uint64

func newMemoKey() memoKey {
	return memoKey(memoKeys.Add(1))
}

// PopulateReference resolves a many-to-one reference: the attribute is the
// record whose Target (default "id") equals the row's Source, or nil.
// FetchAll runs once per response.
func PopulateReference(ref Reference) AttributeFunc {
	target := orDefault(ref.Target, domain.IDField)
	key := newMemoKey()

	return func(ctx context.Context, rec domain.Record, scope *Scope) (any, error) {
		byTarget, err := scope.Memo(key, func() (any, error) {
			refs, err := ref.FetchAll(ctx, scope.Rows)
			if err != nil {
				return nil, err
			}
			m := make(map[string]domain.Record, len(refs))
			for _, r := range refs {
				m[domain.IDKey(r[target])] = r
			}
			return m, nil
		})
		if err != nil {
			return nil, err
		}
		v := rec[ref.Source]
		if v == nil {
			return nil, nil
		}
		if r, ok := byTarget.(map[string]domain.Record)[domain.IDKey(v)]; ok {
			return r, nil
		}
		return nil, nil
	}
}

// PopulateReferenceMany resolves a one-to-many reference: the attribute is
// every record whose Target equals the row's Source (default "id"), never nil.
func PopulateReferenceMany(ref Reference) AttributeFunc {
	group := groupReferences(ref)
	return func(ctx context.Context, rec domain.Record, scope *Scope) (any, error) {
		refs, err := group(ctx, rec, scope)
		if err != nil {
			return nil, err
		}
		if refs == nil {
			refs = []domain.Record{}
		}
		return refs, nil
	}
}

// PopulateReferenceManyCount is PopulateReferenceMany reduced to the number
// of matching records.
func PopulateReferenceManyCount(ref Reference) AttributeFunc {
	group := groupReferences(ref)
	return func(ctx context.Context, rec domain.Record, scope *Scope) (any, error) {
		refs, err := group(ctx, rec, scope)
		if err != nil {
			return nil, err
		}
		return len(refs), nil
	}
}

// PopulateReferenceOne is PopulateReferenceMany reduced to the first match, or nil.
func PopulateReferenceOne(ref Reference) AttributeFunc {
	group := groupReferences(ref)
	return func(ctx context.Context, rec domain.Record, scope *Scope) (any, error) {
		refs, err := group(ctx, rec, scope)
		if err != nil || len(refs) == 0 {
			return nil, err
		}
		return refs[0], nil
	}
}

func groupReferences(ref Reference) func(ctx context.Context, rec domain.Record, scope *Scope) ([]domain.Record, error) {
	source := orDefault(ref.Source, domain.IDField)
	key := newMemoKey()

	return func(ctx context.Context, rec domain.Record, scope *Scope) ([]domain.Record, error) {
		byTarget, err := scope.Memo(key, func() (any, error) {
			refs, err := ref.FetchAll(ctx, scope.Rows)
			if err != nil {
				return nil, err
			}
			m := make(map[string][]domain.Record)
			for _, r := range refs {
				k := domain.IDKey(r[ref.Target])
				m[k] = append(m[k], r)
			}
			return m, nil
		})
		if err != nil {
			return nil, err
		}
		v := rec[source]
		if v == nil {
			return nil, nil
		}
		return byTarget.(map[string][]domain.Record)[domain.IDKey(v)], nil
	}
}

// Values collects the distinct values of field across rows, in first-seen
// order, skipping nils. It is the usual building block of a FetchAllFunc.
func Values(rows []domain.Record, field string) []any {
	seen := make(map[string]struct{}, len(rows))
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		v, ok := r[field]
		if !ok || v == nil {
			continue
		}
		k := domain.IDKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
