package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/simp-lee/crudrouter/internal/domain"
)

// OptionsKey is the filter key carrying per-field match directives.
const OptionsKey = "__options"

// FilterMode selects how string filter values are interpreted.
type FilterMode int

const (
	// FilterModeOptions compares strings by equality unless the field is
	// marked in the __options map.
	FilterModeOptions FilterMode = iota
	// FilterModeWildcard turns any string containing '%' into a LIKE pattern
	// matched without regard to case. The __options map is ignored.
	FilterModeWildcard
)

// ParseFilterMode parses "options" or "wildcard". The empty string selects
// FilterModeOptions.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "options":
		return FilterModeOptions, nil
	case "wildcard":
		return FilterModeWildcard, nil
	default:
		return FilterModeOptions, fmt.Errorf("unknown filter mode %q: must be one of %q, %q", s, "options", "wildcard")
	}
}

func (m FilterMode) String() string {
	if m == FilterModeWildcard {
		return "wildcard"
	}
	return "options"
}

// FilterOption is a match directive a client attaches to a field through __options.
type FilterOption string

const (
	Contains    FilterOption = "CONTAINS"
	IContains   FilterOption = "I_CONTAINS"
	StartsWith  FilterOption = "STARTS_WITH"
	IStartsWith FilterOption = "I_STARTS_WITH"
	EndsWith    FilterOption = "ENDS_WITH"
	IEndsWith   FilterOption = "I_ENDS_WITH"
)

const wildcardToken = "%"

var optionOps = map[FilterOption]struct {
	op   Op
	fold bool
}{
	Contains:    {OpContains, false},
	IContains:   {OpContains, true},
	StartsWith:  {OpStartsWith, false},
	IStartsWith: {OpStartsWith, true},
	EndsWith:    {OpEndsWith, false},
	IEndsWith:   {OpEndsWith, true},
}

// Transform converts the raw value of one filter field into a condition.
// A returned Cond with an empty Field is assigned the filter key.
type Transform func(value any) (Cond, error)

// FilterParser converts a decoded filter object into a Filter.
type FilterParser struct {
	Mode       FilterMode
	Transforms map[string]Transform
}

// Parse translates raw into one condition per field.
//
// Scalars become equality conditions and arrays become IN conditions. Fields
// marked in __options (FilterModeOptions) or strings containing '%'
// (FilterModeWildcard) become pattern conditions. Fields with a registered
// Transform are handed to it instead.
func (p FilterParser) Parse(raw map[string]any) (Filter, error) {
	options, err := p.options(raw)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k == OptionsKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Filter, len(keys))
	for _, key := range keys {
		c, err := p.parseField(key, raw[key], options)
		if err != nil {
			return nil, err
		}
		if c.Field == "" {
			c.Field = key
		}
		out[key] = c
	}
	return out, nil
}

func (p FilterParser) parseField(key string, value any, options map[string]FilterOption) (Cond, error) {
	if t, ok := p.Transforms[key]; ok {
		c, err := t(value)
		if err != nil {
			return Cond{}, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter %q", key), err)
		}
		return c, nil
	}

	switch v := value.(type) {
	case map[string]any:
		return Cond{}, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter %q: object values are not supported", key), nil)
	case []any:
		for _, item := range v {
			if !isScalar(item) {
				return Cond{}, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter %q: list items must be scalars", key), nil)
			}
		}
		return Cond{Field: key, Op: OpIn, Value: v}, nil
	}

	if opt, ok := options[key]; ok {
		if value == nil {
			return Cond{}, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter %q: %s needs a value", key, opt), nil)
		}
		m := optionOps[opt]
		return Cond{Field: key, Op: m.op, Value: stringValue(value), Fold: m.fold}, nil
	}

	if s, ok := value.(string); ok && p.Mode == FilterModeWildcard && strings.Contains(s, wildcardToken) {
		return Cond{Field: key, Op: OpLike, Value: s}, nil
	}

	return Cond{Field: key, Op: OpEq, Value: value}, nil
}

func (p FilterParser) options(raw map[string]any) (map[string]FilterOption, error) {
	v, ok := raw[OptionsKey]
	if !ok || v == nil || p.Mode != FilterModeOptions {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid filter: "+OptionsKey+" must be an object", nil)
	}
	out := make(map[string]FilterOption, len(m))
	for field, o := range m {
		s, ok := o.(string)
		if !ok {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter option for %q: must be a string", field), nil)
		}
		opt := FilterOption(strings.ToUpper(strings.TrimSpace(s)))
		if _, known := optionOps[opt]; !known {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid filter option %q for %q", s, field), nil)
		}
		out[field] = opt
	}
	return out, nil
}

// DecodeFilter decodes the JSON filter query parameter. An empty string
// yields an empty filter. JSON numbers come back as int64 when integral and
// float64 otherwise.
func DecodeFilter(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}
	v, err := DecodeJSON(s)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid filter: must be a JSON object", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid filter: must be a JSON object", nil)
	}
	return obj, nil
}

// DecodeJSON decodes a single JSON value and normalizes its numbers.
func DecodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected trailing data")
	}
	return normalizeNumbers(v), nil
}

// DecodeBody decodes a JSON request body the same way as DecodeJSON.
func DecodeBody(raw []byte) (any, error) {
	return DecodeJSON(string(bytes.TrimSpace(raw)))
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
