// Package ast defines the Abstract Syntax Tree (AST) for SQL statements.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a compiled statement: SQL text plus its bound arguments in
// placeholder order.
type Command struct {
	SQL  string
	Args []any
}

// Compiler compiles AST nodes into SQL text for one dialect.
// The zero value renders ANSI double-quoted identifiers and ? placeholders.
type Compiler struct {
	// Placeholder renders the n-th (1-based) bound parameter.
	Placeholder func(n int) string
	// Quote renders an identifier.
	Quote func(name string) string
	// EmptyInsert is appended after the table name when an insert has no
	// columns. Defaults to "DEFAULT VALUES".
	EmptyInsert string
}

// Question renders every parameter as ?.
func Question(int) string { return "?" }

// Dollar renders numbered parameters $1, $2, ...
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// DoubleQuote quotes an identifier with ANSI double quotes.
func DoubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Backtick quotes an identifier with MySQL backticks.
func Backtick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Compile compiles a single statement into a Command.
// It returns an error if the node type is unknown or the statement is incomplete.
func (c *Compiler) Compile(node QueryNode) (Command, error) {
	st := &state{c: c}
	if err := st.statement(node); err != nil {
		return Command{}, err
	}
	return Command{SQL: st.b.String(), Args: st.args}, nil
}

// CompileBatch compiles several statements into one command separated by
// ";\n". Placeholder numbering continues across statements.
func (c *Compiler) CompileBatch(nodes []QueryNode) (Command, error) {
	st := &state{c: c}
	for i, node := range nodes {
		if i > 0 {
			st.b.WriteString(";\n")
		}
		if err := st.statement(node); err != nil {
			return Command{}, fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return Command{SQL: st.b.String(), Args: st.args}, nil
}

type state struct {
	c    *Compiler
	b    strings.Builder
	args []any
}

func (s *state) quote(name string) string {
	if s.c.Quote != nil {
		return s.c.Quote(name)
	}
	return DoubleQuote(name)
}

func (s *state) bind(v any) string {
	s.args = append(s.args, v)
	if s.c.Placeholder != nil {
		return s.c.Placeholder(len(s.args))
	}
	return "?"
}

func (s *state) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = s.quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (s *state) statement(node QueryNode) error {
	switch n := node.(type) {
	case SelectStatement:
		return s.selectStmt(n)
	case InsertStatement:
		return s.insertStmt(n)
	case UpdateStatement:
		return s.updateStmt(n)
	case DeleteStatement:
		return s.deleteStmt(n)
	case CallStatement:
		return s.callStmt(n)
	default:
		return fmt.Errorf("unknown node type: %T", node)
	}
}

// --- Statements ---

func (s *state) selectStmt(n SelectStatement) error {
	if n.Table == "" {
		return fmt.Errorf("select: table name is required")
	}
	if len(n.Columns) == 0 {
		return fmt.Errorf("select %s: no columns", n.Table)
	}
	s.b.WriteString("SELECT ")
	s.b.WriteString(s.quoteList(n.Columns))
	s.b.WriteString(" FROM ")
	s.b.WriteString(s.quote(n.Table))
	return s.where(n.Where)
}

func (s *state) insertStmt(n InsertStatement) error {
	if n.Table == "" {
		return fmt.Errorf("insert: table name is required")
	}
	if len(n.Columns) != len(n.Values) {
		return fmt.Errorf("insert %s: %d columns but %d values", n.Table, len(n.Columns), len(n.Values))
	}
	s.b.WriteString("INSERT INTO ")
	s.b.WriteString(s.quote(n.Table))
	if len(n.Columns) == 0 {
		empty := s.c.EmptyInsert
		if empty == "" {
			empty = "DEFAULT VALUES"
		}
		s.b.WriteString(" " + empty)
	} else {
		s.b.WriteString(" (" + s.quoteList(n.Columns) + ") VALUES (")
		for i, v := range n.Values {
			if i > 0 {
				s.b.WriteString(", ")
			}
			s.b.WriteString(s.bind(v))
		}
		s.b.WriteString(")")
	}
	if n.Returning != "" {
		s.b.WriteString(" RETURNING " + s.quote(n.Returning))
	}
	return nil
}

func (s *state) updateStmt(n UpdateStatement) error {
	if n.Table == "" {
		return fmt.Errorf("update: table name is required")
	}
	if len(n.Set) == 0 {
		return fmt.Errorf("update %s: no assignments", n.Table)
	}
	s.b.WriteString("UPDATE " + s.quote(n.Table) + " SET ")
	for i, a := range n.Set {
		if i > 0 {
			s.b.WriteString(", ")
		}
		s.b.WriteString(s.quote(a.Column) + " = " + s.bind(a.Value))
	}
	return s.where(n.Where)
}

func (s *state) deleteStmt(n DeleteStatement) error {
	if n.Table == "" {
		return fmt.Errorf("delete: table name is required")
	}
	if n.Where == nil {
		return fmt.Errorf("delete %s: where clause is required", n.Table)
	}
	s.b.WriteString("DELETE FROM " + s.quote(n.Table))
	return s.where(n.Where)
}

func (s *state) callStmt(n CallStatement) error {
	if n.Procedure == "" {
		return fmt.Errorf("call: procedure name is required")
	}
	switch n.Style {
	case CallProcedure:
		s.b.WriteString("CALL ")
	case CallFunction:
		s.b.WriteString("SELECT * FROM ")
	default:
		return fmt.Errorf("call %s: unknown style %d", n.Procedure, n.Style)
	}
	s.b.WriteString(s.quote(n.Procedure) + "(")
	for i, v := range n.Args {
		if i > 0 {
			s.b.WriteString(", ")
		}
		s.b.WriteString(s.bind(v))
	}
	s.b.WriteString(")")
	return nil
}

// --- Conditions ---

func (s *state) where(cond Condition) error {
	if cond == nil {
		return nil
	}
	s.b.WriteString(" WHERE ")
	return s.condition(cond)
}

func (s *state) condition(cond Condition) error {
	switch n := cond.(type) {
	case EqCondition:
		if n.Column == "" {
			return fmt.Errorf("eq: column is required")
		}
		if n.Value == nil {
			s.b.WriteString(s.quote(n.Column) + " IS NULL")
			return nil
		}
		s.b.WriteString(s.quote(n.Column) + " = " + s.bind(n.Value))
		return nil

	case AndCondition:
		if len(n.Conditions) == 0 {
			return fmt.Errorf("and: no conditions")
		}
		for i, sub := range n.Conditions {
			if i > 0 {
				s.b.WriteString(" AND ")
			}
			if err := s.condition(sub); err != nil {
				return err
			}
		}
		return nil

	case InSelectCondition:
		if len(n.Select.Columns) != 1 {
			return fmt.Errorf("in %s: subquery must project one column, got %d", n.Column, len(n.Select.Columns))
		}
		s.b.WriteString(s.quote(n.Column) + " IN (")
		if err := s.selectStmt(n.Select); err != nil {
			return fmt.Errorf("in %s: %w", n.Column, err)
		}
		s.b.WriteString(")")
		return nil

	default:
		return fmt.Errorf("unknown condition type: %T", cond)
	}
}
