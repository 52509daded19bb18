package gormstore

import (
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/query"
)

// whereSQL renders the WHERE clause the store builds for p, without running it.
func whereSQL(t *testing.T, s *Store[testContact], p query.Predicate) string {
	t.Helper()
	e, err := s.expr(p)
	if err != nil {
		t.Fatalf("expr: %v", err)
	}
	return s.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		tx = tx.Model(&testContact{})
		if e != nil {
			tx = tx.Where(e)
		}
		return tx.Find(&[]testContact{})
	})
}

func TestExpr_SQLite(t *testing.T) {
	s := newTestStore(t, setupTestDB(t), Config{})

	tests := []struct {
		name string
		pred query.Predicate
		want []string
		not  []string
	}{
		{
			name: "nil",
			pred: nil,
			not:  []string{"WHERE"},
		},
		{
			name: "equality",
			pred: query.Cond{Field: "level", Op: query.OpEq, Value: 5},
			want: []string{"`level` = 5"},
		},
		{
			name: "null",
			pred: query.Cond{Field: "name", Op: query.OpEq, Value: nil},
			want: []string{"`name` IS NULL"},
		},
		{
			name: "in",
			pred: query.Cond{Field: "id", Op: query.OpIn, Value: []any{1, 2}},
			want: []string{"`id` IN (1,2)"},
		},
		{
			name: "empty in",
			pred: query.Cond{Field: "id", Op: query.OpIn, Value: []any{}},
			want: []string{"1 = 0"},
		},
		{
			name: "folded contains",
			pred: query.Cond{Field: "name", Op: query.OpContains, Value: "a_b", Fold: true},
			want: []string{"`name` LIKE \"%a\\_b%\" ESCAPE '\\'"},
		},
		{
			name: "case sensitive contains",
			pred: query.Cond{Field: "name", Op: query.OpStartsWith, Value: "a*"},
			want: []string{"`name` GLOB \"a[*]*\""},
		},
		{
			name: "wildcard like",
			pred: query.Cond{Field: "email", Op: query.OpLike, Value: "%@Doe.com"},
			want: []string{"`email` LIKE \"%@Doe.com\""},
			not:  []string{"GLOB"},
		},
		{
			name: "single member or is unwrapped",
			pred: query.And{
				query.Cond{Field: "level", Op: query.OpEq, Value: 1},
				query.Or{query.Cond{Field: "level", Op: query.OpEq, Value: 2}},
			},
			want: []string{"`level` = 1 AND `level` = 2"},
			not:  []string{" OR "},
		},
		{
			name: "or inside and",
			pred: query.And{
				query.Cond{Field: "level", Op: query.OpEq, Value: 1},
				query.Or{
					query.Cond{Field: "name", Op: query.OpEq, Value: "a"},
					query.Cond{Field: "email", Op: query.OpEq, Value: "b"},
				},
			},
			want: []string{"`level` = 1 AND (`name` = \"a\" OR `email` = \"b\")"},
		},
		{
			name: "empty or",
			pred: query.Or{},
			want: []string{"1 = 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := whereSQL(t, s, tt.pred)
			for _, w := range tt.want {
				if !strings.Contains(sql, w) {
					t.Errorf("SQL %q does not contain %q", sql, w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(sql, n) {
					t.Errorf("SQL %q should not contain %q", sql, n)
				}
			}
		})
	}
}

func TestExpr_UnknownField(t *testing.T) {
	s := newTestStore(t, setupTestDB(t), Config{})

	_, err := s.expr(query.And{query.Cond{Field: "secret", Op: query.OpEq, Value: 1}})
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExpr_Postgres(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=crud dbname=crud sslmode=disable",
	}), &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open postgres dialector: %v", err)
	}
	s := newTestStore(t, db, Config{})

	tests := []struct {
		name string
		cond query.Cond
		want string
	}{
		{"folded", query.Cond{Field: "name", Op: query.OpContains, Value: "doe", Fold: true}, `"name" ILIKE '%doe%' ESCAPE '\'`},
		{"case sensitive", query.Cond{Field: "email", Op: query.OpEndsWith, Value: "@doe.com"}, `"email" LIKE '%@doe.com' ESCAPE '\'`},
		{"wildcard", query.Cond{Field: "email", Op: query.OpLike, Value: "%@Doe.com"}, `"email" ILIKE '%@Doe.com'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sql := whereSQL(t, s, tt.cond); !strings.Contains(sql, tt.want) {
				t.Errorf("SQL %q does not contain %q", sql, tt.want)
			}
		})
	}
}
