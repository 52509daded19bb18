// Package query holds the storage-neutral predicate model used between the
// HTTP layer and persistence collaborators, together with the filter parser
// and the ranked free-text search planner.
package query

import (
	"sort"
	"strings"
)

// Op is the comparison applied by a Cond.
type Op string

const (
	OpEq         Op = "EQ"          // field = value (IS NULL when value is nil)
	OpIn         Op = "IN"          // field IN (values...)
	OpLike       Op = "LIKE"        // field LIKE value, value is a caller-supplied pattern
	OpContains   Op = "CONTAINS"    // field LIKE %value%
	OpStartsWith Op = "STARTS_WITH" // field LIKE value%
	OpEndsWith   Op = "ENDS_WITH"   // field LIKE %value
)

// Predicate is a boolean expression over record fields: a Cond, an And or an Or.
type Predicate interface {
	predicate()
}

// Cond compares one field. Fold selects case-insensitive matching for the
// pattern operators and is ignored otherwise.
type Cond struct {
	Field string
	Op    Op
	Value any
	Fold  bool
}

// And is satisfied when every member is. An empty And matches everything.
type And []Predicate

// Or is satisfied when any member is. An empty Or matches nothing.
type Or []Predicate

func (Cond) predicate() {}
func (And) predicate()  {}
func (Or) predicate()   {}

// IsPattern reports whether c is one of the substring operators.
func (c Cond) IsPattern() bool {
	switch c.Op {
	case OpContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// Pattern renders the SQL LIKE pattern for c. Metacharacters in the value are
// escaped with a backslash, so stores must use ESCAPE '\'. OpLike values are
// returned verbatim.
func (c Cond) Pattern() string {
	v := stringValue(c.Value)
	switch c.Op {
	case OpContains:
		return "%" + escapeLike(v) + "%"
	case OpStartsWith:
		return escapeLike(v) + "%"
	case OpEndsWith:
		return "%" + escapeLike(v)
	default:
		return v
	}
}

// GlobPattern renders c as an SQLite GLOB pattern, used for case-sensitive
// matching where LIKE ignores case.
func (c Cond) GlobPattern() string {
	v := escapeGlob(stringValue(c.Value))
	switch c.Op {
	case OpContains:
		return "*" + v + "*"
	case OpStartsWith:
		return v + "*"
	case OpEndsWith:
		return "*" + v
	default:
		return v
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var globEscaper = strings.NewReplacer(`*`, `[*]`, `?`, `[?]`, `[`, `[[]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// Filter is a parsed filter: one condition per field.
type Filter map[string]Cond

// Fields returns the filtered field names in sorted order.
func (f Filter) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Predicate returns f as an And of its conditions in field order, or nil when
// f is empty.
func (f Filter) Predicate() Predicate {
	if len(f) == 0 {
		return nil
	}
	and := make(And, 0, len(f))
	for _, name := range f.Fields() {
		and = append(and, f[name])
	}
	return and
}

// Values returns the compared value of every condition keyed by field.
func (f Filter) Values() map[string]any {
	out := make(map[string]any, len(f))
	for name, c := range f {
		out[name] = c.Value
	}
	return out
}

// Combine joins predicates with And, dropping nil members.
func Combine(preds ...Predicate) Predicate {
	var and And
	for _, p := range preds {
		if p != nil {
			and = append(and, p)
		}
	}
	switch len(and) {
	case 0:
		return nil
	case 1:
		return and[0]
	default:
		return and
	}
}

// Walk calls fn for every Cond in p, depth first.
func Walk(p Predicate, fn func(Cond) error) error {
	switch v := p.(type) {
	case nil:
		return nil
	case Cond:
		return fn(v)
	case And:
		for _, m := range v {
			if err := Walk(m, fn); err != nil {
				return err
			}
		}
	case Or:
		for _, m := range v {
			if err := Walk(m, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
