// Package mysql registers the "mysql" dialect backed by go-sql-driver/mysql.
package mysql

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

// Name is the registry name of this dialect.
const Name = "mysql"

// Server error numbers reported for integrity constraint failures.
const (
	errDupEntry         = 1062
	errBadNull          = 1048
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errRowIsReferenced2 = 1217
	errNoReferencedRow2 = 1216
)

func init() {
	dialect.Register(Name, func(opts dialect.Options) (dialect.Dialect, error) {
		return New(opts), nil
	})
}

// Dialect implements dialect.Dialect and dialect.ProcedureCaller for MySQL.
type Dialect struct {
	multiStatements bool
}

// New returns a MySQL dialect. With Options.MultiStatements set, Open
// enables the driver's multiStatements mode and fetch plans are sent as a
// single command.
func New(opts dialect.Options) *Dialect {
	return &Dialect{multiStatements: opts.MultiStatements}
}

// Name implements dialect.Dialect.
func (d *Dialect) Name() string { return Name }

// Open implements dialect.Dialect. parseTime is always enabled so DATETIME
// columns scan into time.Time.
func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	cfg, err := d.config(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// config parses dsn and applies the dialect's driver settings. A batch
// with bound arguments cannot be server-prepared, so multi-statement mode
// also interpolates parameters client side.
func (d *Dialect) config(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	if d.multiStatements {
		cfg.MultiStatements = true
		cfg.InterpolateParams = true
	}
	return cfg, nil
}

// Compiler implements dialect.Dialect.
func (d *Dialect) Compiler() *ast.Compiler {
	return &ast.Compiler{Quote: ast.Backtick, Placeholder: ast.Question, EmptyInsert: "() VALUES ()"}
}

// InsertReturning implements dialect.Dialect. MySQL reports generated ids
// through LastInsertId.
func (d *Dialect) InsertReturning() bool { return false }

// MultiResultSets implements dialect.Dialect.
func (d *Dialect) MultiResultSets() bool { return d.multiStatements }

// CallStyle implements dialect.ProcedureCaller.
func (d *Dialect) CallStyle() ast.CallStyle { return ast.CallProcedure }

// IsConstraintViolation implements dialect.Dialect.
func (d *Dialect) IsConstraintViolation(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case errDupEntry, errBadNull, errRowIsReferenced, errNoReferencedRow,
		errRowIsReferenced2, errNoReferencedRow2:
		return true
	}
	return false
}
