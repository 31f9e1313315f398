// Package catalog maps plain Go structs to relational tables: it derives
// table metadata from struct types, plans multi-table fetches that load a
// whole object graph in one round trip, materializes the rows back into
// typed objects and wires their associations.
//
// A Cataloger is an explicit dependency; there is no global instance.
//
//	c, err := catalog.Open(cfg)
//	orders, err := catalog.Find[Order](ctx, c, catalog.Eq("OrderID", 7))
package catalog

import (
	"database/sql"
	"log/slog"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

// DefaultMaxDepth bounds association expansion when no depth is configured.
const DefaultMaxDepth = 5

// FetchOptions controls how far a fetch reaches.
type FetchOptions struct {
	// Expand adds association selects to the fetch plan.
	Expand bool
	// LazyLoad issues follow-up fetches during wiring for associations the
	// plan did not cover.
	LazyLoad bool
	// MaxDepth bounds association expansion in hops from the root.
	MaxDepth int
}

// DefaultFetchOptions returns Expand with the default depth and no lazy loading.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{Expand: true, MaxDepth: DefaultMaxDepth}
}

func (o FetchOptions) depth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Cataloger executes fetches, saves and deletes against one database.
// It is safe for concurrent use.
type Cataloger struct {
	db       *sql.DB
	dialect  dialect.Dialect
	compiler *ast.Compiler
	registry *Registry
	logger   *slog.Logger
	defaults FetchOptions
}

// Option configures a Cataloger.
type Option func(*Cataloger)

// WithRegistry uses r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(c *Cataloger) { c.registry = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cataloger) { c.logger = l }
}

// WithFetchOptions sets the options used by Find, FindByID and All.
func WithFetchOptions(o FetchOptions) Option {
	return func(c *Cataloger) { c.defaults = o }
}

// New returns a Cataloger over an open database.
func New(db *sql.DB, d dialect.Dialect, opts ...Option) *Cataloger {
	c := &Cataloger{
		db:       db,
		dialect:  d,
		compiler: d.Compiler(),
		registry: defaultRegistry,
		logger:   slog.Default(),
		defaults: DefaultFetchOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "catalog", "dialect", d.Name())
	return c
}

// DB returns the underlying database handle.
func (c *Cataloger) DB() *sql.DB { return c.db }

// Dialect returns the configured dialect.
func (c *Cataloger) Dialect() dialect.Dialect { return c.dialect }

// Registry returns the metadata registry in use.
func (c *Cataloger) Registry() *Registry { return c.registry }

// Options returns the default fetch options.
func (c *Cataloger) Options() FetchOptions { return c.defaults }

// Close closes the underlying database.
func (c *Cataloger) Close() error { return c.db.Close() }
