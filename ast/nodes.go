// Package ast defines the Abstract Syntax Tree (AST) for the SQL statements
// issued by the catalog engine.
//
// It decouples statement construction from text rendering: table and column
// names are quoted by the compiler and every value travels as a bound
// argument, never as interpolated text.
package ast

// QueryNode is the marker interface for all AST nodes.
type QueryNode interface {
	queryNode()
}

// --- Conditions ---

// Condition is the marker interface for nodes usable in a WHERE clause.
type Condition interface {
	QueryNode
	condition()
}

// EqCondition matches rows whose column equals a bound value.
// A nil Value compiles to IS NULL.
type EqCondition struct {
	// Column is the unquoted column name.
	Column string
	// Value is bound as a parameter.
	Value any
}

func (EqCondition) queryNode() {}
func (EqCondition) condition() {}

// AndCondition joins its conditions with AND.
type AndCondition struct {
	Conditions []Condition
}

func (AndCondition) queryNode() {}
func (AndCondition) condition() {}

// InSelectCondition matches rows whose column value is produced by a nested
// single-column select.
type InSelectCondition struct {
	// Column is the column of the outer table.
	Column string
	// Select must project exactly one column.
	Select SelectStatement
}

func (InSelectCondition) queryNode() {}
func (InSelectCondition) condition() {}

// --- Statements ---

// Statement is the marker interface for complete SQL statements.
type Statement interface {
	QueryNode
	statement()
}

// SelectStatement projects columns of a single table.
type SelectStatement struct {
	// Table is the unquoted table name.
	Table string
	// Columns lists the projected columns in scan order.
	Columns []string
	// Where is optional.
	Where Condition
}

func (SelectStatement) queryNode() {}
func (SelectStatement) statement() {}

// InsertStatement inserts a single row.
type InsertStatement struct {
	Table   string
	Columns []string
	Values  []any
	// Returning names a column to return from the inserted row.
	// Only honored by dialects that support RETURNING.
	Returning string
}

func (InsertStatement) queryNode() {}
func (InsertStatement) statement() {}

// Assignment sets a column to a bound value in an UPDATE.
type Assignment struct {
	Column string
	Value  any
}

func (Assignment) queryNode() {}

// UpdateStatement updates the rows matched by Where.
type UpdateStatement struct {
	Table string
	Set   []Assignment
	Where Condition
}

func (UpdateStatement) queryNode() {}
func (UpdateStatement) statement() {}

// DeleteStatement deletes the rows matched by Where. Where is required.
type DeleteStatement struct {
	Table string
	Where Condition
}

func (DeleteStatement) queryNode() {}
func (DeleteStatement) statement() {}

// CallStyle selects how a stored procedure invocation is rendered.
type CallStyle int

const (
	// CallProcedure renders CALL name(args).
	CallProcedure CallStyle = iota
	// CallFunction renders SELECT * FROM name(args), for set-returning functions.
	CallFunction
)

// CallStatement invokes a stored procedure or set-returning function.
type CallStatement struct {
	Procedure string
	Args      []any
	Style     CallStyle
}

func (CallStatement) queryNode() {}
func (CallStatement) statement() {}
