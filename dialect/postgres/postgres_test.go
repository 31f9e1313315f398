package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

func TestRegistered(t *testing.T) {
	d, err := dialect.Lookup(Name, dialect.Options{})
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.(*Dialect).Driver())
	assert.True(t, d.InsertReturning())
	assert.False(t, d.MultiResultSets())

	d, err = dialect.Lookup(Name, dialect.Options{Driver: "postgres"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.(*Dialect).Driver())
}

func TestCompiler(t *testing.T) {
	c := New(dialect.Options{}).Compiler()
	cmd, err := c.Compile(ast.Call("orders_for", New(dialect.Options{}).CallStyle(), 3))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "orders_for"($1)`, cmd.SQL)
}

func TestIsConstraintViolation(t *testing.T) {
	d := New(dialect.Options{})
	assert.True(t, d.IsConstraintViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, d.IsConstraintViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})))
	assert.False(t, d.IsConstraintViolation(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, d.IsConstraintViolation(&pq.Error{Code: "23502"}))
	assert.False(t, d.IsConstraintViolation(&pq.Error{Code: "42601"}))
	assert.False(t, d.IsConstraintViolation(errors.New("boom")))
}
