package crud

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// Register mounts the CRUD routes of one resource on r:
//
//	GET    path      list, filter and search
//	GET    path/:id  read one
//	POST   path      create
//	PUT    path/:id  update
//	DELETE path/:id  delete
//
// Only operations whose collaborator is set are mounted unless WithOperations
// lists them explicitly. Errors are attached to the gin context, so the
// router needs middleware.ErrorHandler to render them.
func Register(r gin.IRoutes, path string, funcs Funcs, opts ...Option) error {
	cfg := newConfig(opts)

	ops, err := cfg.resolveOperations(funcs)
	if err != nil {
		return fmt.Errorf("register %s: %w", path, err)
	}

	res := newResource(funcs, cfg)
	base := strings.TrimSuffix(path, "/")
	item := base + "/:id"
	if base == "" {
		base = "/"
	}

	for _, op := range ops {
		switch op {
		case OpGetList:
			r.GET(base, res.GetList)
		case OpGetOne:
			r.GET(item, res.GetOne)
		case OpCreate:
			r.POST(base, res.Create)
		case OpUpdate:
			r.PUT(item, res.Update)
		case OpDestroy:
			r.DELETE(item, res.Destroy)
		}
	}
	return nil
}

// RegisterActions is Register for a backend implementing Actions, and
// Searcher when it supports free-text search.
func RegisterActions(r gin.IRoutes, path string, a Actions, opts ...Option) error {
	return Register(r, path, FromActions(a), opts...)
}
