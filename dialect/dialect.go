// Package dialect defines the seam between the catalog engine and a
// database vendor: how connections are opened, how statements are rendered,
// how generated identities come back and how failures are classified.
//
// Vendor packages register themselves on import, the same way database/sql
// drivers do:
//
//	import _ "github.com/CaliLuke/go-catalog/dialect/sqlite"
package dialect

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/CaliLuke/go-catalog/ast"
)

// Dialect is implemented once per database engine.
type Dialect interface {
	// Name is the registry name, e.g. "sqlite".
	Name() string
	// Open returns a connection factory for dsn.
	Open(dsn string) (*sql.DB, error)
	// Compiler returns the statement compiler for this engine: identifier
	// quoting and parameter placeholders.
	Compiler() *ast.Compiler
	// InsertReturning reports whether INSERT ... RETURNING yields the
	// generated identity. When false, sql.Result.LastInsertId is used.
	InsertReturning() bool
	// MultiResultSets reports whether a batch of selects may be sent as one
	// command and read back with Rows.NextResultSet.
	MultiResultSets() bool
	// IsConstraintViolation reports whether err is an integrity constraint
	// failure (unique, foreign key, not null).
	IsConstraintViolation(err error) bool
}

// ProcedureCaller is implemented by dialects that can invoke stored
// procedures returning result sets.
type ProcedureCaller interface {
	CallStyle() ast.CallStyle
}

// Options configures a dialect instance.
type Options struct {
	// Driver overrides the database/sql driver name.
	Driver string
	// MultiStatements enables multi-statement batches where the engine
	// supports them.
	MultiStatements bool
}

// Factory builds a configured Dialect.
type Factory func(Options) (Dialect, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a dialect available by name. It panics if name is empty,
// factory is nil or name is already registered.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || factory == nil {
		panic("dialect: Register with empty name or nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("dialect: Register called twice for " + name)
	}
	factories[name] = factory
}

// Lookup builds the dialect registered under name.
func Lookup(name string, opts Options) (Dialect, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, &UnknownDialectError{Name: name}
	}
	return factory(opts)
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDialectError is returned by Lookup for unregistered names.
type UnknownDialectError struct {
	Name string
}

// Error returns the error message for UnknownDialectError.
func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("dialect: unknown dialect %q (forgotten import?)", e.Name)
}
