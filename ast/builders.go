// Package ast provides builder helpers for ergonomic AST construction.
package ast

// Select creates a SelectStatement over the given columns.
func Select(table string, columns ...string) SelectStatement {
	return SelectStatement{Table: table, Columns: columns}
}

// Filter returns a copy of s whose WHERE clause is the conjunction of the
// existing condition and cond.
func (s SelectStatement) Filter(cond Condition) SelectStatement {
	s.Where = And(s.Where, cond)
	return s
}

// Eq creates an equality condition.
func Eq(column string, value any) EqCondition {
	return EqCondition{Column: column, Value: value}
}

// In creates a condition matching column against the values projected by sub.
func In(column string, sub SelectStatement) InSelectCondition {
	return InSelectCondition{Column: column, Select: sub}
}

// And combines conditions, dropping nils. It returns nil when nothing is
// left and the single condition unchanged when only one remains.
func And(conds ...Condition) Condition {
	kept := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if c == nil {
			continue
		}
		if and, ok := c.(AndCondition); ok {
			kept = append(kept, and.Conditions...)
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return AndCondition{Conditions: kept}
	}
}

// Insert creates an InsertStatement. columns and values must align.
func Insert(table string, columns []string, values []any) InsertStatement {
	return InsertStatement{Table: table, Columns: columns, Values: values}
}

// Set creates an Assignment.
func Set(column string, value any) Assignment {
	return Assignment{Column: column, Value: value}
}

// Update creates an UpdateStatement.
func Update(table string, where Condition, set ...Assignment) UpdateStatement {
	return UpdateStatement{Table: table, Set: set, Where: where}
}

// Delete creates a DeleteStatement.
func Delete(table string, where Condition) DeleteStatement {
	return DeleteStatement{Table: table, Where: where}
}

// Call creates a CallStatement.
func Call(procedure string, style CallStyle, args ...any) CallStatement {
	return CallStatement{Procedure: procedure, Args: args, Style: style}
}
