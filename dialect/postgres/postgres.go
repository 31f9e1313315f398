// Package postgres registers the "postgres" dialect. The default driver is
// pgx through its database/sql adapter; set Options.Driver to "postgres" to
// use lib/pq instead.
package postgres

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

// Name is the registry name of this dialect.
const Name = "postgres"

// integrityViolationClass is the SQLSTATE class for constraint failures.
const integrityViolationClass = "23"

func init() {
	dialect.Register(Name, func(opts dialect.Options) (dialect.Dialect, error) {
		return New(opts), nil
	})
}

// Dialect implements dialect.Dialect and dialect.ProcedureCaller for PostgreSQL.
type Dialect struct {
	driver string
}

// New returns a PostgreSQL dialect. Options.MultiStatements is ignored:
// the extended protocol used for bound parameters allows one statement
// per command.
func New(opts dialect.Options) *Dialect {
	driver := opts.Driver
	if driver == "" {
		driver = "pgx"
	}
	return &Dialect{driver: driver}
}

// Name implements dialect.Dialect.
func (d *Dialect) Name() string { return Name }

// Driver returns the database/sql driver name in use.
func (d *Dialect) Driver() string { return d.driver }

// Open implements dialect.Dialect.
func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	return sql.Open(d.driver, dsn)
}

// Compiler implements dialect.Dialect.
func (d *Dialect) Compiler() *ast.Compiler {
	return &ast.Compiler{Quote: ast.DoubleQuote, Placeholder: ast.Dollar}
}

// InsertReturning implements dialect.Dialect.
func (d *Dialect) InsertReturning() bool { return true }

// MultiResultSets implements dialect.Dialect.
func (d *Dialect) MultiResultSets() bool { return false }

// CallStyle implements dialect.ProcedureCaller. Procedures returning rows
// are set-returning functions in PostgreSQL.
func (d *Dialect) CallStyle() ast.CallStyle { return ast.CallFunction }

// IsConstraintViolation implements dialect.Dialect for both pgx and lib/pq errors.
func (d *Dialect) IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, integrityViolationClass)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == integrityViolationClass
	}
	return false
}
