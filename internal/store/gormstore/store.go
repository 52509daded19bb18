// Package gormstore implements the CRUD collaborators on top of a GORM model.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/crudrouter/internal/crud"
	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
	"github.com/simp-lee/crudrouter/internal/query"
)

// Config restricts what clients can do with a model. Field names are the
// JSON names of the model fields.
type Config struct {
	// SortableFields and FilterableFields default to every field with a
	// column when empty.
	SortableFields   []string
	FilterableFields []string

	// SearchableFields enables free-text search.
	SearchableFields    []query.SearchField
	CaseSensitiveSearch bool
}

// Store serves one model. It implements crud.Actions and crud.Searcher.
type Store[M any] struct {
	db  *gorm.DB
	cfg Config

	// JSON field name to column name.
	columns    map[string]string
	sortable   []string
	filterable map[string]bool

	pkField string
	pkKind  schema.DataType
}

var (
	_ crud.Actions  = (*Store[struct{ ID uint }])(nil)
	_ crud.Searcher = (*Store[struct{ ID uint }])(nil)
)

// New builds a store for model M. It fails when M cannot be parsed by GORM,
// has no primary key, or cfg names fields M does not have.
func New[M any](db *gorm.DB, cfg Config) (*Store[M], error) {
	sch, err := schema.Parse(new(M), &sync.Map{}, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	pk := sch.PrioritizedPrimaryField
	if pk == nil {
		return nil, fmt.Errorf("model %s has no primary key", sch.Name)
	}

	s := &Store[M]{
		db:         db,
		cfg:        cfg,
		columns:    make(map[string]string),
		filterable: make(map[string]bool),
		pkKind:     pk.DataType,
	}
	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}
		s.columns[name] = f.DBName
		if f == pk {
			s.pkField = name
		}
	}
	if s.pkField == "" {
		return nil, fmt.Errorf("model %s: primary key %s is not exposed as JSON", sch.Name, pk.Name)
	}

	sortable := cfg.SortableFields
	if len(sortable) == 0 {
		sortable = fieldNames(s.columns)
	}
	for _, name := range sortable {
		col, ok := s.columns[name]
		if !ok {
			return nil, fmt.Errorf("model %s: unknown sortable field %q", sch.Name, name)
		}
		s.sortable = append(s.sortable, col)
	}

	filterable := cfg.FilterableFields
	if len(filterable) == 0 {
		filterable = fieldNames(s.columns)
	}
	for _, name := range filterable {
		if _, ok := s.columns[name]; !ok {
			return nil, fmt.Errorf("model %s: unknown filterable field %q", sch.Name, name)
		}
		s.filterable[name] = true
	}

	for _, f := range cfg.SearchableFields {
		if _, ok := s.columns[f.Name]; !ok {
			return nil, fmt.Errorf("model %s: unknown searchable field %q", sch.Name, f.Name)
		}
	}

	return s, nil
}

// Create inserts body as a new row and returns the stored record.
func (s *Store[M]) Create(ctx context.Context, body domain.Record) (domain.Record, error) {
	var m M
	if err := domain.FromRecord(body, &m); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return domain.ToRecord(&m)
}

// GetOne returns the row with the given primary key, or nil when there is none.
func (s *Store[M]) GetOne(ctx context.Context, id string) (domain.Record, error) {
	key, ok := s.parseID(id)
	if !ok {
		return nil, nil
	}

	var m M
	err := s.db.WithContext(ctx).Where(s.pkEq(key)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return domain.ToRecord(&m)
}

// Update overlays body on the stored row inside a transaction. The primary
// key in body, if any, is ignored.
func (s *Store[M]) Update(ctx context.Context, id string, body domain.Record) (domain.Record, error) {
	key, ok := s.parseID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	patch := body.Clone()
	delete(patch, s.pkField)

	var out domain.Record
	err := pkg.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var m M
		if err := tx.Where(s.pkEq(key)).First(&m).Error; err != nil {
			return mapError(err)
		}
		if err := domain.FromRecord(patch, &m); err != nil {
			return err
		}
		if err := tx.Save(&m).Error; err != nil {
			return mapError(err)
		}
		rec, err := domain.ToRecord(&m)
		out = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Destroy deletes the row with the given primary key.
func (s *Store[M]) Destroy(ctx context.Context, id string) error {
	key, ok := s.parseID(id)
	if !ok {
		return domain.ErrNotFound
	}

	result := s.db.WithContext(ctx).Where(s.pkEq(key)).Delete(new(M))
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetList returns one page of rows matching params.Filter and the total
// number of matches.
func (s *Store[M]) GetList(ctx context.Context, params crud.ListParams) (crud.ListResult, error) {
	if err := s.checkFilter(params.Filter); err != nil {
		return crud.ListResult{}, err
	}
	where, err := s.expr(params.Filter.Predicate())
	if err != nil {
		return crud.ListResult{}, err
	}

	base := s.db.WithContext(ctx).Model(new(M))
	if where != nil {
		base = base.Where(where)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return crud.ListResult{}, mapError(err)
	}

	var models []M
	if err := base.Scopes(
		pkg.Window(params.Offset, params.Limit),
		pkg.Sort(s.order(params.Order), s.sortable),
	).Find(&models).Error; err != nil {
		return crud.ListResult{}, mapError(err)
	}

	rows, err := toRecords(models)
	if err != nil {
		return crud.ListResult{}, err
	}
	return crud.ListResult{Rows: rows, Count: total}, nil
}

// Search runs the ranked free-text search over the configured searchable
// fields, restricted by scope.
func (s *Store[M]) Search(ctx context.Context, q string, limit int, scope query.Filter) (crud.ListResult, error) {
	if err := s.checkFilter(scope); err != nil {
		return crud.ListResult{}, err
	}
	search := crud.SearchFields(s.cfg.SearchableFields, s.fetch, !s.cfg.CaseSensitiveSearch)
	return search(ctx, q, limit, scope)
}

// FindAll returns every row whose field takes one of values. It backs
// reference attributes.
func (s *Store[M]) FindAll(ctx context.Context, field string, values []any) ([]domain.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return s.fetch(ctx, query.Cond{Field: field, Op: query.OpIn, Value: sqlValues(values)}, 0)
}

// sqlValues turns the json.Number values records carry into int64 or
// float64, which every driver accepts.
func sqlValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		n, ok := v.(json.Number)
		if !ok {
			out[i] = v
			continue
		}
		if iv, err := n.Int64(); err == nil {
			out[i] = iv
		} else if fv, err := n.Float64(); err == nil {
			out[i] = fv
		} else {
			out[i] = n.String()
		}
	}
	return out
}

// fetch returns up to limit rows matching where, in primary key order.
func (s *Store[M]) fetch(ctx context.Context, where query.Predicate, limit int) ([]domain.Record, error) {
	expr, err := s.expr(where)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(new(M))
	if expr != nil {
		tx = tx.Where(expr)
	}

	var models []M
	if err := tx.Scopes(pkg.Window(0, limit)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.columns[s.pkField]}}).
		Find(&models).Error; err != nil {
		return nil, mapError(err)
	}
	return toRecords(models)
}

func (s *Store[M]) checkFilter(f query.Filter) error {
	for _, name := range f.Fields() {
		if !s.filterable[f[name].Field] {
			return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter: unknown field %q", name), nil)
		}
	}
	return nil
}

// order maps sort fields to columns. Unknown fields are dropped.
func (s *Store[M]) order(in []domain.OrderBy) []domain.OrderBy {
	out := make([]domain.OrderBy, 0, len(in))
	for _, o := range in {
		if col, ok := s.columns[o.Field]; ok {
			out = append(out, domain.OrderBy{Field: col, Direction: o.Direction})
		}
	}
	return out
}

func (s *Store[M]) pkEq(key any) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: s.columns[s.pkField]}, Value: key}
}

// parseID converts a path identifier to the primary key type. ok is false
// when id cannot be a key of this model.
func (s *Store[M]) parseID(id string) (any, bool) {
	id = strings.TrimSpace(id)
	switch s.pkKind {
	case schema.Int:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	case schema.Uint:
		n, err := strconv.ParseUint(id, 10, 64)
		return n, err == nil
	default:
		return id, id != ""
	}
}

func toRecords[M any](models []M) ([]domain.Record, error) {
	rows := make([]domain.Record, 0, len(models))
	for i := range models {
		rec, err := domain.ToRecord(&models[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func jsonName(f *schema.Field) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func fieldNames(columns map[string]string) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	return names
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not every GORM dialector translates driver-level errors to
// gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
