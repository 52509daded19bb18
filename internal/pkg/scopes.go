package pkg

import (
	"regexp"
	"slices"
	"strings"

	"github.com/simp-lee/crudrouter/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidFieldName reports whether name is safe to use as a column name.
func ValidFieldName(name string) bool {
	return validFieldName.MatchString(name)
}

// Window returns a GORM scope that applies OFFSET and LIMIT.
// A non-positive limit leaves the query unbounded.
func Window(offset, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}

// Sort returns a GORM scope that applies ORDER BY for every sort term.
// Only field names present in the allowed list are accepted; others are silently ignored.
// Field names are validated against a strict pattern to prevent SQL injection.
func Sort(order []domain.OrderBy, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, o := range order {
			field := strings.TrimSpace(o.Field)
			if !ValidFieldName(field) || !IsAllowed(field, allowed) {
				continue
			}
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: field},
				Desc:   o.Direction == domain.SortDesc,
			})
		}
		return db
	}
}

// IsAllowed checks if a field name is in the allowed list.
func IsAllowed(field string, allowed []string) bool {
	return slices.Contains(allowed, field)
}
