package crud

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
	"github.com/simp-lee/crudrouter/internal/query"
)

// resource serves the routes of one path.
type resource struct {
	funcs  Funcs
	cfg    Config
	parser query.FilterParser
}

func newResource(funcs Funcs, cfg Config) *resource {
	return &resource{
		funcs: funcs,
		cfg:   cfg,
		parser: query.FilterParser{
			Mode:       cfg.FilterMode,
			Transforms: cfg.FilterTransforms,
		},
	}
}

// fail hands err to the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Create handles POST /path.
func (r *resource) Create(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := bindRecord(c)
	if err != nil {
		fail(c, err)
		return
	}
	if body, err = r.beforeWrite(ctx, OpCreate, body); err != nil {
		fail(c, err)
		return
	}

	rec, err := r.funcs.Create(ctx, body)
	if err != nil {
		fail(c, err)
		return
	}
	if rec, err = r.afterRead(ctx, rec); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// GetOne handles GET /path/:id.
func (r *resource) GetOne(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := r.funcs.GetOne(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if rec == nil {
		pkg.NotFound(c)
		return
	}

	if rec, err = r.afterRead(ctx, rec); err != nil {
		fail(c, err)
		return
	}
	rows, err := enrich(ctx, []domain.Record{rec}, r.cfg.AdditionalAttributes, r.cfg.AdditionalAttributesConcurrency)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rows[0])
}

// Update handles PUT /path/:id. The record must exist before it is written.
func (r *resource) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	existing, err := r.funcs.GetOne(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	if existing == nil {
		pkg.NotFound(c)
		return
	}

	body, err := bindRecord(c)
	if err != nil {
		fail(c, err)
		return
	}
	if body, err = r.beforeWrite(ctx, OpUpdate, body); err != nil {
		fail(c, err)
		return
	}

	rec, err := r.funcs.Update(ctx, id, body)
	if err != nil {
		fail(c, err)
		return
	}
	if rec == nil {
		rec = body
	}
	rec = rec.Clone()
	if existingID, ok := existing.ID(); ok {
		rec[domain.IDField] = existingID
	}

	if rec, err = r.afterRead(ctx, rec); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Destroy handles DELETE /path/:id and echoes the path identifier.
func (r *resource) Destroy(c *gin.Context) {
	id := c.Param("id")

	if err := r.funcs.Destroy(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{domain.IDField: id})
}

func (r *resource) beforeWrite(ctx context.Context, op Operation, body domain.Record) (domain.Record, error) {
	for _, hook := range r.cfg.Hooks.BeforeWrite {
		var err error
		if body, err = hook(ctx, op, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (r *resource) afterRead(ctx context.Context, rec domain.Record) (domain.Record, error) {
	for _, hook := range r.cfg.Hooks.AfterRead {
		var err error
		if rec, err = hook(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// bindRecord decodes the request body, which must be a JSON object.
func bindRecord(c *gin.Context) (domain.Record, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid body", err)
	}
	v, err := query.DecodeBody(raw)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid body: must be a JSON object", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid body: must be a JSON object", nil)
	}
	return domain.Record(obj), nil
}
