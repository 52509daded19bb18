package crud

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
	"github.com/simp-lee/crudrouter/internal/query"
)

// GetList handles GET /path.
//
// Without a free-text query the parsed filter goes to the GetList
// collaborator. With one, the Search collaborator answers instead, scoped by
// the remaining filters. Either way the response carries the pagination
// headers and a JSON array body.
func (r *resource) GetList(c *gin.Context) {
	ctx := c.Request.Context()

	lq, err := pkg.ParseListQuery(c, r.cfg.MaxPageSize)
	if err != nil {
		fail(c, err)
		return
	}

	filter, err := r.parser.Parse(lq.Filter)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := r.fetch(ctx, lq, filter)
	if err != nil {
		fail(c, err)
		return
	}

	rows := res.Rows
	for _, hook := range r.cfg.Hooks.AfterList {
		if rows, err = hook(ctx, rows, filter); err != nil {
			fail(c, err)
			return
		}
	}
	if rows, err = enrich(ctx, rows, r.cfg.AdditionalAttributes, r.cfg.AdditionalAttributesConcurrency); err != nil {
		fail(c, err)
		return
	}
	if rows == nil {
		rows = []domain.Record{}
	}

	pkg.SetListHeaders(c.Writer.Header(), lq.Offset, res.Count, len(rows))
	c.JSON(http.StatusOK, rows)
}

func (r *resource) fetch(ctx context.Context, lq domain.ListQuery, filter query.Filter) (ListResult, error) {
	if lq.Q == "" {
		return r.funcs.GetList(ctx, ListParams{
			Filter: filter,
			Limit:  lq.Limit,
			Offset: lq.Offset,
			Order:  lq.Order,
		})
	}

	if r.funcs.Search == nil {
		return ListResult{}, domain.ErrSearchNotImplemented
	}
	return r.funcs.Search(ctx, lq.Q, lq.Limit, filter)
}
