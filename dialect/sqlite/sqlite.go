// Package sqlite registers the "sqlite" dialect backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

// Name is the registry name of this dialect.
const Name = "sqlite"

func init() {
	dialect.Register(Name, func(opts dialect.Options) (dialect.Dialect, error) {
		return New(opts), nil
	})
}

// Dialect implements dialect.Dialect for SQLite.
type Dialect struct {
	driver string
}

// New returns a SQLite dialect. Options.MultiStatements is ignored.
func New(opts dialect.Options) *Dialect {
	driver := opts.Driver
	if driver == "" {
		driver = "sqlite"
	}
	return &Dialect{driver: driver}
}

// Name implements dialect.Dialect.
func (d *Dialect) Name() string { return Name }

// Open implements dialect.Dialect. An in-memory database is private to the
// connection that created it, so the pool is pinned to one connection.
func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Compiler implements dialect.Dialect.
func (d *Dialect) Compiler() *ast.Compiler {
	return &ast.Compiler{Quote: ast.DoubleQuote, Placeholder: ast.Question}
}

// InsertReturning implements dialect.Dialect.
func (d *Dialect) InsertReturning() bool { return true }

// MultiResultSets implements dialect.Dialect.
func (d *Dialect) MultiResultSets() bool { return false }

// IsConstraintViolation implements dialect.Dialect.
func (d *Dialect) IsConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
