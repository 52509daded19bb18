package gormstore

import (
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/query"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// matchNothing is the translation of an empty Or.
var matchNothing = clause.Expr{SQL: "1 = 0"}

// expr translates p into a GORM condition. A nil result means no condition.
func (s *Store[M]) expr(p query.Predicate) (clause.Expression, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case query.Cond:
		return s.cond(v)
	case query.And:
		exprs, err := s.exprs(v)
		if err != nil {
			return nil, err
		}
		switch len(exprs) {
		case 0:
			return nil, nil
		case 1:
			return exprs[0], nil
		}
		return clause.And(exprs...), nil
	case query.Or:
		exprs, err := s.exprs(v)
		if err != nil {
			return nil, err
		}
		switch len(exprs) {
		case 0:
			return matchNothing, nil
		case 1:
			return exprs[0], nil
		}
		return clause.Or(exprs...), nil
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (s *Store[M]) exprs(preds []query.Predicate) ([]clause.Expression, error) {
	out := make([]clause.Expression, 0, len(preds))
	for _, p := range preds {
		e, err := s.expr(p)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store[M]) cond(c query.Cond) (clause.Expression, error) {
	name, ok := s.columns[c.Field]
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter: unknown field %q", c.Field), nil)
	}
	col := clause.Column{Name: name}

	switch c.Op {
	case query.OpEq:
		return clause.Eq{Column: col, Value: c.Value}, nil
	case query.OpIn:
		values, _ := c.Value.([]any)
		if len(values) == 0 {
			return matchNothing, nil
		}
		return clause.IN{Column: col, Values: values}, nil
	case query.OpLike:
		return s.like(col, c.Pattern()), nil
	case query.OpContains, query.OpStartsWith, query.OpEndsWith:
		return s.pattern(col, c), nil
	default:
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter: unsupported operator %s", c.Op), nil)
	}
}

// like renders a caller-supplied LIKE pattern, ignoring case on every dialect.
func (s *Store[M]) like(col clause.Column, pattern string) clause.Expression {
	switch s.db.Dialector.Name() {
	case dialectPostgres:
		return clause.Expr{SQL: "? ILIKE ?", Vars: []any{col, pattern}}
	case dialectSQLite:
		return clause.Expr{SQL: "? LIKE ?", Vars: []any{col, pattern}}
	default:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{col, pattern}}
	}
}

// pattern renders a substring match in the dialect of the store. SQLite LIKE
// ignores ASCII case, so case-sensitive matches use GLOB there.
func (s *Store[M]) pattern(col clause.Column, c query.Cond) clause.Expression {
	switch s.db.Dialector.Name() {
	case dialectPostgres:
		if c.Fold {
			return clause.Expr{SQL: `? ILIKE ? ESCAPE '\'`, Vars: []any{col, c.Pattern()}}
		}
		return clause.Expr{SQL: `? LIKE ? ESCAPE '\'`, Vars: []any{col, c.Pattern()}}
	case dialectSQLite:
		if c.Fold {
			return clause.Expr{SQL: `? LIKE ? ESCAPE '\'`, Vars: []any{col, c.Pattern()}}
		}
		return clause.Expr{SQL: "? GLOB ?", Vars: []any{col, c.GlobPattern()}}
	default:
		if c.Fold {
			return clause.Expr{SQL: `LOWER(?) LIKE LOWER(?) ESCAPE '\'`, Vars: []any{col, c.Pattern()}}
		}
		return clause.Expr{SQL: `? LIKE ? ESCAPE '\'`, Vars: []any{col, c.Pattern()}}
	}
}
