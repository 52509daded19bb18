package crud

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/crudrouter/internal/domain"
)

// AttributeFunc computes one additional attribute of rec. scope is shared by
// every row of the response.
type AttributeFunc func(ctx context.Context, rec domain.Record, scope *Scope) (any, error)

// Scope carries the rows of one response and a memo table that lets
// attribute functions share work across rows. It lives for a single request.
type Scope struct {
	Rows []domain.Record

	mu   sync.Mutex
	memo map[any]*memoEntry
}

type memoEntry struct {
	once sync.Once
	val  any
	err  error
}

// NewScope returns a scope over rows.
func NewScope(rows []domain.Record) *Scope {
	return &Scope{Rows: rows, memo: make(map[any]*memoEntry)}
}

// Memo returns the value stored under key, computing it with fn on first use.
// Concurrent callers with the same key wait for a single call of fn, and an
// error is memoized like a value.
func (s *Scope) Memo(key any, fn func() (any, error)) (any, error) {
	s.mu.Lock()
	if s.memo == nil {
		s.memo = make(map[any]*memoEntry)
	}
	e, ok := s.memo[key]
	if !ok {
		e = &memoEntry{}
		s.memo[key] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.val, e.err = fn()
	})
	return e.val, e.err
}

// enrich returns copies of rows carrying the additional attributes. Rows are
// processed with at most limit in flight; attributes of one row are computed
// in name order.
func enrich(ctx context.Context, rows []domain.Record, attrs map[string]AttributeFunc, limit int) ([]domain.Record, error) {
	if len(attrs) == 0 || len(rows) == 0 {
		return rows, nil
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	scope := NewScope(rows)
	out := make([]domain.Record, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, row := range rows {
		g.Go(func() error {
			rec := row.Clone()
			for _, name := range names {
				v, err := attrs[name](gctx, row, scope)
				if err != nil {
					return fmt.Errorf("additional attribute %q: %w", name, err)
				}
				rec[name] = v
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
