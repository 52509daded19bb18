// Package user serves the /users resource.
package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/simp-lee/crudrouter/internal/crud"
	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
	"github.com/simp-lee/crudrouter/internal/query"
	"github.com/simp-lee/crudrouter/internal/store/gormstore"
)

// Path is the route prefix of the resource, relative to the API group.
const Path = "/users"

// Module implements the app.Module interface for users.
type Module struct {
	users    *gormstore.Store[domain.User]
	posts    *gormstore.Store[domain.Post]
	validate *validator.Validate
	opts     []crud.Option
}

// NewModule builds the user resource on db. opts are applied after the
// module's own hooks and attributes.
func NewModule(db *gorm.DB, caseSensitiveSearch bool, opts ...crud.Option) (*Module, error) {
	users, err := gormstore.New[domain.User](db, gormstore.Config{
		SortableFields:      []string{"id", "name", "email", "created_at", "updated_at"},
		SearchableFields:    query.TextFields("name", "email"),
		CaseSensitiveSearch: caseSensitiveSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}
	posts, err := gormstore.New[domain.Post](db, gormstore.Config{})
	if err != nil {
		return nil, fmt.Errorf("post store: %w", err)
	}

	m := &Module{users: users, posts: posts, validate: validator.New()}
	m.opts = append([]crud.Option{
		crud.WithBeforeWrite(m.checkInput),
		crud.WithAdditionalAttribute("post_count", crud.PopulateReferenceManyCount(crud.Reference{
			FetchAll: m.postsByAuthor,
			Target:   "author_id",
		})),
	}, opts...)
	return m, nil
}

// RegisterRoutes mounts the user routes on api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) error {
	return crud.RegisterActions(api, Path, m.users, m.opts...)
}

// checkInput normalizes and validates a user body.
func (m *Module) checkInput(_ context.Context, _ crud.Operation, body domain.Record) (domain.Record, error) {
	out := body.Clone()
	for _, f := range readOnlyFields {
		delete(out, f)
	}

	var in UserInput
	if err := domain.FromRecord(out, &in); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := m.validate.Struct(&in); err != nil {
		return nil, pkg.ValidationError(err, &in)
	}

	out["name"] = in.Name
	out["email"] = in.Email
	return out, nil
}

func (m *Module) postsByAuthor(ctx context.Context, rows []domain.Record) ([]domain.Record, error) {
	return m.posts.FindAll(ctx, "author_id", crud.Values(rows, domain.IDField))
}
