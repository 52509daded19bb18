package pkg

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderContentRange  = "Content-Range"
	HeaderTotalCount    = "X-Total-Count"
	HeaderExposeHeaders = "Access-Control-Expose-Headers"
)

// SetListHeaders annotates a list response with its pagination headers:
// Content-Range as "{offset}-{offset+rowsCount}/{total}" and X-Total-Count,
// and makes sure both are listed in Access-Control-Expose-Headers.
func SetListHeaders(h http.Header, offset int, total int64, rowsCount int) {
	ExposeHeaders(h, HeaderContentRange, HeaderTotalCount)
	end := int64(offset) + int64(rowsCount)
	if end < int64(offset) {
		end = math.MaxInt64
	}
	h.Set(HeaderContentRange, strconv.Itoa(offset)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(total, 10))
	h.Set(HeaderTotalCount, strconv.FormatInt(total, 10))
}

// ExposeHeaders merges names into the comma-separated
// Access-Control-Expose-Headers value, keeping existing entries first and
// dropping duplicates. A header that already holds several values is left as is.
func ExposeHeaders(h http.Header, names ...string) {
	current := h.Values(HeaderExposeHeaders)
	if len(current) > 1 {
		return
	}

	var merged []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := http.CanonicalHeaderKey(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, name)
	}

	if len(current) == 1 {
		for _, name := range strings.Split(current[0], ",") {
			add(name)
		}
	}
	for _, name := range names {
		add(name)
	}

	h.Set(HeaderExposeHeaders, strings.Join(merged, ", "))
}
