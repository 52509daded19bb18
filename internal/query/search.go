package query

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/crudrouter/internal/domain"
)

// FieldKind selects how a searchable field is compared to search terms.
type FieldKind int

const (
	// KindText matches terms as substrings.
	KindText FieldKind = iota
	// KindExact matches terms by equality.
	KindExact
	// KindUUID matches terms by equality, and only terms that parse as a UUID.
	KindUUID
)

// ParseFieldKind parses "text", "exact" or "uuid". The empty string selects KindText.
func ParseFieldKind(s string) (FieldKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, true
	case "exact":
		return KindExact, true
	case "uuid":
		return KindUUID, true
	}
	return KindText, false
}

// SearchField is a field the free-text search looks into.
type SearchField struct {
	Name string
	Kind FieldKind
}

// TextFields is shorthand for a list of KindText fields.
func TextFields(names ...string) []SearchField {
	out := make([]SearchField, len(names))
	for i, n := range names {
		out[i] = SearchField{Name: n}
	}
	return out
}

// Plan is an ordered list of alternative predicates. Hits from earlier groups
// rank before hits from later ones.
type Plan []Predicate

// ErrNoSearchableFields reports a search attempted on a resource without
// searchable fields.
var ErrNoSearchableFields = domain.NewAppError(domain.CodeConfiguration, "searchable fields must be provided to use free-text search", nil)

// BuildSearchPlan builds the ranked plan for q.
//
// The first group matches the untouched query as a phrase in any field. When
// q holds at least two whitespace-separated tokens, two more groups follow:
// every token matching some field, then any token matching any field. Text
// fields compare with a case-insensitive substring match when fold is set.
func BuildSearchPlan(q string, fields []SearchField, fold bool) (Plan, error) {
	if len(fields) == 0 {
		return nil, ErrNoSearchableFields
	}

	phrase := matchAny(fields, q, fold)

	tokens := strings.Fields(q)
	if len(tokens) < 2 {
		return Plan{phrase}, nil
	}

	all := make(And, 0, len(tokens))
	anyToken := make(Or, 0, len(tokens))
	for _, tok := range tokens {
		m := matchAny(fields, tok, fold)
		all = append(all, m)
		anyToken = append(anyToken, m)
	}

	return Plan{phrase, all, anyToken}, nil
}

// matchAny returns the Or of term compared against every field.
func matchAny(fields []SearchField, term string, fold bool) Or {
	or := make(Or, 0, len(fields))
	for _, f := range fields {
		switch f.Kind {
		case KindExact:
			or = append(or, Cond{Field: f.Name, Op: OpEq, Value: term})
		case KindUUID:
			id, err := uuid.Parse(strings.TrimSpace(term))
			if err != nil {
				continue
			}
			or = append(or, Cond{Field: f.Name, Op: OpEq, Value: id.String()})
		default:
			or = append(or, Cond{Field: f.Name, Op: OpContains, Value: term, Fold: fold})
		}
	}
	return or
}

// FetchFunc returns up to limit records matching where.
type FetchFunc func(ctx context.Context, where Predicate, limit int) ([]domain.Record, error)

// Search runs every group of plan concurrently and merges the results in plan
// order. Records are deduplicated by id, keeping the first occurrence, and the
// merged list is truncated to limit (no truncation when limit <= 0).
func Search(ctx context.Context, plan Plan, limit int, fetch FetchFunc) ([]domain.Record, error) {
	chunks := make([][]domain.Record, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range plan {
		g.Go(func() error {
			rows, err := fetch(gctx, group, limit)
			if err != nil {
				return err
			}
			chunks[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeUnique(chunks, limit), nil
}

func mergeUnique(chunks [][]domain.Record, limit int) []domain.Record {
	seen := make(map[string]struct{})
	out := make([]domain.Record, 0)
	for _, chunk := range chunks {
		for _, rec := range chunk {
			if id, ok := rec.ID(); ok {
				key := domain.IDKey(id)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}
