package pkg

import (
	"fmt"
	"math"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/query"
)

const (
	defaultRangeFrom = 0
	defaultRangeTo   = 99

	// maxRangeBound bounds both range ends so the window and
	// offset+rows stay within int32.
	maxRangeBound = math.MaxInt32 - 1

	// QueryKey is the filter key carrying the free-text search query.
	QueryKey = "q"
)

var defaultOrder = []domain.OrderBy{{Field: domain.IDField, Direction: domain.SortAsc}}

// ParseListQuery extracts the range, sort and filter query parameters of a
// list request. The q key is lifted out of the filter into ListQuery.Q.
// When maxLimit is positive the window is capped to it.
func ParseListQuery(c *gin.Context, maxLimit int) (domain.ListQuery, error) {
	from, to, err := parseRange(c.Query("range"))
	if err != nil {
		return domain.ListQuery{}, err
	}
	limit := to - from + 1
	if limit <= 0 {
		return domain.ListQuery{}, domain.NewAppError(domain.CodeValidation, "invalid range: window is empty or too large", nil)
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	order, err := parseSort(c.Query("sort"))
	if err != nil {
		return domain.ListQuery{}, err
	}

	filter, err := query.DecodeFilter(c.Query("filter"))
	if err != nil {
		return domain.ListQuery{}, err
	}

	q, err := popQuery(filter)
	if err != nil {
		return domain.ListQuery{}, err
	}

	return domain.ListQuery{
		Offset: from,
		Limit:  limit,
		Order:  order,
		Filter: filter,
		Q:      q,
	}, nil
}

func parseRange(raw string) (int, int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultRangeFrom, defaultRangeTo, nil
	}

	invalid := func(cause error) error {
		return domain.NewAppError(domain.CodeValidation, "invalid range: must be a JSON array [from, to] of non-negative integers with to >= from", cause)
	}

	v, err := query.DecodeJSON(raw)
	if err != nil {
		return 0, 0, invalid(err)
	}
	bounds, ok := v.([]any)
	if !ok || len(bounds) != 2 {
		return 0, 0, invalid(nil)
	}
	from, ok1 := bounds[0].(int64)
	to, ok2 := bounds[1].(int64)
	if !ok1 || !ok2 || from < 0 || to < from {
		return 0, 0, invalid(nil)
	}
	if to > maxRangeBound {
		return 0, 0, invalid(fmt.Errorf("range end %d exceeds %d", to, maxRangeBound))
	}
	return int(from), int(to), nil
}

func parseSort(raw string) ([]domain.OrderBy, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultOrder, nil
	}

	invalid := func(cause error) error {
		return domain.NewAppError(domain.CodeValidation, `invalid sort: must be a JSON array [field, "ASC"|"DESC"]`, cause)
	}

	v, err := query.DecodeJSON(raw)
	if err != nil {
		return nil, invalid(err)
	}
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return nil, invalid(nil)
	}
	field, ok1 := pair[0].(string)
	dir, ok2 := pair[1].(string)
	if !ok1 || !ok2 || strings.TrimSpace(field) == "" {
		return nil, invalid(nil)
	}

	direction := domain.SortDirection(strings.ToUpper(strings.TrimSpace(dir)))
	if direction != domain.SortAsc && direction != domain.SortDesc {
		return nil, invalid(fmt.Errorf("unknown direction %q", dir))
	}

	return []domain.OrderBy{{Field: strings.TrimSpace(field), Direction: direction}}, nil
}

// popQuery removes the free-text key from filter and returns its value.
// An empty string counts as no query.
func popQuery(filter map[string]any) (string, error) {
	v, ok := filter[QueryKey]
	if !ok {
		return "", nil
	}
	delete(filter, QueryKey)

	switch q := v.(type) {
	case nil:
		return "", nil
	case string:
		return q, nil
	default:
		return "", domain.NewAppError(domain.CodeValidation, "invalid filter: q must be a string", nil)
	}
}
