package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/query"
)

// Operation names one of the routes Register can mount.
type Operation string

const (
	OpGetList Operation = "GET_LIST"
	OpGetOne  Operation = "GET_ONE"
	OpCreate  Operation = "CREATE"
	OpUpdate  Operation = "UPDATE"
	OpDestroy Operation = "DELETE"
)

// AllOperations lists every operation in mount order.
var AllOperations = []Operation{OpGetList, OpGetOne, OpCreate, OpUpdate, OpDestroy}

// ParseOperation parses an operation name such as "get_list" or "DELETE".
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllOperations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

type (
	// WriteHook runs on the request body before Create or Update. The returned
	// record replaces the body.
	WriteHook func(ctx context.Context, op Operation, body domain.Record) (domain.Record, error)
	// ReadHook runs on every record returned by Create, GetOne and Update.
	ReadHook func(ctx context.Context, rec domain.Record) (domain.Record, error)
	// ListHook runs on the rows of a list response, before additional attributes.
	ListHook func(ctx context.Context, rows []domain.Record, filter query.Filter) ([]domain.Record, error)
)

// Hooks are applied in slice order.
type Hooks struct {
	BeforeWrite []WriteHook
	AfterRead   []ReadHook
	AfterList   []ListHook
}

func (h *Hooks) merge(o Hooks) {
	h.BeforeWrite = append(h.BeforeWrite, o.BeforeWrite...)
	h.AfterRead = append(h.AfterRead, o.AfterRead...)
	h.AfterList = append(h.AfterList, o.AfterList...)
}

const defaultAttributesConcurrency = 10

// Config is the per-resource configuration assembled from Options.
type Config struct {
	// Operations restricts the mounted routes. Nil mounts every operation
	// whose collaborator is set.
	Operations []Operation

	Hooks Hooks

	FilterMode       query.FilterMode
	FilterTransforms map[string]query.Transform

	// AdditionalAttributes are computed for every row of a list response and
	// for single records, keyed by the attribute name they are stored under.
	AdditionalAttributes            map[string]AttributeFunc
	AdditionalAttributesConcurrency int

	// MaxPageSize caps the list window. Zero means no cap.
	MaxPageSize int
}

// Option configures a resource.
type Option func(*Config)

// WithOperations restricts the routes mounted to ops. Each needs its collaborator.
func WithOperations(ops ...Operation) Option {
	return func(c *Config) {
		c.Operations = append([]Operation{}, ops...)
	}
}

// WithHooks appends every hook in h to the resource's hook chains.
func WithHooks(h Hooks) Option {
	return func(c *Config) {
		c.Hooks.merge(h)
	}
}

// WithBeforeWrite appends hooks run on the body of create and update requests.
func WithBeforeWrite(hooks ...WriteHook) Option {
	return WithHooks(Hooks{BeforeWrite: hooks})
}

// WithAfterRead appends hooks run on the record returned by GetOne.
func WithAfterRead(hooks ...ReadHook) Option {
	return WithHooks(Hooks{AfterRead: hooks})
}

// WithAfterList appends hooks run on the rows of a list response.
func WithAfterList(hooks ...ListHook) Option {
	return WithHooks(Hooks{AfterList: hooks})
}

// WithFilterMode selects how string filter values are turned into conditions.
func WithFilterMode(m query.FilterMode) Option {
	return func(c *Config) {
		c.FilterMode = m
	}
}

// WithFilterTransform registers a custom translation for one filter key.
func WithFilterTransform(field string, t query.Transform) Option {
	return func(c *Config) {
		if c.FilterTransforms == nil {
			c.FilterTransforms = make(map[string]query.Transform)
		}
		c.FilterTransforms[field] = t
	}
}

// WithAdditionalAttribute adds a computed field name to read and list responses.
func WithAdditionalAttribute(name string, fn AttributeFunc) Option {
	return func(c *Config) {
		if c.AdditionalAttributes == nil {
			c.AdditionalAttributes = make(map[string]AttributeFunc)
		}
		c.AdditionalAttributes[name] = fn
	}
}

// WithAdditionalAttributesConcurrency bounds how many rows are enriched at
// once. Values below 1 select the default of 10.
func WithAdditionalAttributesConcurrency(n int) Option {
	return func(c *Config) {
		c.AdditionalAttributesConcurrency = n
	}
}

// WithMaxPageSize caps the number of rows a list request returns. Zero disables the cap.
func WithMaxPageSize(n int) Option {
	return func(c *Config) {
		c.MaxPageSize = n
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AdditionalAttributesConcurrency < 1 {
		cfg.AdditionalAttributesConcurrency = defaultAttributesConcurrency
	}
	return cfg
}

// resolveOperations returns the operations to mount, or a configuration error
// when one of them lacks its collaborator.
func (cfg Config) resolveOperations(funcs Funcs) ([]Operation, error) {
	available := map[Operation]bool{
		OpGetList: funcs.GetList != nil,
		OpGetOne:  funcs.GetOne != nil,
		OpCreate:  funcs.Create != nil,
		OpUpdate:  funcs.Update != nil,
		OpDestroy: funcs.Destroy != nil,
	}

	if cfg.Operations == nil {
		var ops []Operation
		for _, op := range AllOperations {
			if available[op] {
				ops = append(ops, op)
			}
		}
		if available[OpUpdate] && !available[OpGetOne] {
			return nil, configErr("update requires a GetOne collaborator to check the record exists")
		}
		return ops, nil
	}

	seen := make(map[Operation]bool, len(cfg.Operations))
	ops := make([]Operation, 0, len(cfg.Operations))
	for _, op := range cfg.Operations {
		has, known := available[op]
		if !known {
			return nil, configErr(fmt.Sprintf("unknown operation %q", op))
		}
		if !has {
			return nil, configErr(fmt.Sprintf("operation %s is enabled but its collaborator is missing", op))
		}
		if op == OpUpdate && !available[OpGetOne] {
			return nil, configErr("update requires a GetOne collaborator to check the record exists")
		}
		if !seen[op] {
			seen[op] = true
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func configErr(msg string) error {
	return domain.NewAppError(domain.CodeConfiguration, msg, nil)
}
