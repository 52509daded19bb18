// Package post serves the /posts resource.
package post

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simp-lee/crudrouter/internal/crud"
	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
	"github.com/simp-lee/crudrouter/internal/query"
	"github.com/simp-lee/crudrouter/internal/store/gormstore"
)

// Path is the route prefix of the resource, relative to the API group.
const Path = "/posts"

// Module implements the app.Module interface for posts.
type Module struct {
	posts    *gormstore.Store[domain.Post]
	users    *gormstore.Store[domain.User]
	validate *validator.Validate
	opts     []crud.Option
}

// NewModule builds the post resource on db. Posts are searchable by title,
// body and public uuid; each row carries its author.
func NewModule(db *gorm.DB, caseSensitiveSearch bool, opts ...crud.Option) (*Module, error) {
	posts, err := gormstore.New[domain.Post](db, gormstore.Config{
		SortableFields: []string{"id", "title", "author_id", "created_at", "updated_at"},
		SearchableFields: []query.SearchField{
			{Name: "title", Kind: query.KindText},
			{Name: "body", Kind: query.KindText},
			{Name: "uuid", Kind: query.KindUUID},
		},
		CaseSensitiveSearch: caseSensitiveSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("post store: %w", err)
	}
	users, err := gormstore.New[domain.User](db, gormstore.Config{})
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}

	m := &Module{posts: posts, users: users, validate: validator.New()}
	m.opts = append([]crud.Option{
		crud.WithBeforeWrite(m.checkInput),
		crud.WithAdditionalAttribute("author", crud.PopulateReference(crud.Reference{
			FetchAll: m.authors,
			Source:   "author_id",
		})),
	}, opts...)
	return m, nil
}

// RegisterRoutes mounts the post routes on api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) error {
	return crud.RegisterActions(api, Path, m.posts, m.opts...)
}

// checkInput assigns a uuid to new posts, keeps it fixed on update and
// rejects posts whose author does not exist.
func (m *Module) checkInput(ctx context.Context, op crud.Operation, body domain.Record) (domain.Record, error) {
	out := body.Clone()
	for _, f := range readOnlyFields {
		delete(out, f)
	}
	switch op {
	case crud.OpCreate:
		if v, _ := out["uuid"].(string); strings.TrimSpace(v) == "" {
			out["uuid"] = uuid.NewString()
		}
	case crud.OpUpdate:
		delete(out, "uuid")
	}

	var in PostInput
	if err := domain.FromRecord(out, &in); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := m.validate.Struct(&in); err != nil {
		return nil, pkg.ValidationError(err, &in)
	}

	author, err := m.users.GetOne(ctx, fmt.Sprint(in.AuthorID))
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, domain.NewValidationError("validation error", map[string]string{
			"author_id": "Author does not exist",
		})
	}

	out["title"] = in.Title
	if op == crud.OpCreate {
		out["uuid"] = strings.ToLower(in.UUID)
	}
	return out, nil
}

func (m *Module) authors(ctx context.Context, rows []domain.Record) ([]domain.Record, error) {
	return m.users.FindAll(ctx, domain.IDField, crud.Values(rows, "author_id"))
}
