// Package sqlgen parses SQL DDL and generates catalog entity structs from it.
package sqlgen

import "strings"

// Schema holds every table parsed from a DDL file, in declaration order.
type Schema struct {
	// Tables lists the CREATE TABLE statements.
	Tables []TableSpec
}

// TableSpec describes one CREATE TABLE statement.
type TableSpec struct {
	// Name is the unquoted table name.
	Name string
	// Columns lists the column definitions in order.
	Columns []ColumnSpec
	// PrimaryKey lists the primary key columns, from either a column
	// constraint or a table constraint.
	PrimaryKey []string
	// ForeignKeys lists every reference, inline or table-level.
	ForeignKeys []ForeignKeySpec
	// Annotations holds the "-- @key value" comments preceding the statement.
	Annotations map[string]string
}

// ColumnSpec describes one column definition.
type ColumnSpec struct {
	// Name is the unquoted column name.
	Name string
	// Type is the declared type without size arguments, upper-cased.
	Type string
	// Size holds the type arguments, e.g. ["12", "2"] for NUMERIC(12,2).
	Size []string
	// NotNull is set by NOT NULL or by membership in the primary key.
	NotNull bool
	// Unique is set by a UNIQUE column constraint or single-column UNIQUE table constraint.
	Unique bool
	// AutoIncrement is set by AUTOINCREMENT or AUTO_INCREMENT.
	AutoIncrement bool
	// Default is the literal text of the DEFAULT clause, if any.
	Default string
}

// ForeignKeySpec describes a reference from Columns to RefTable.
type ForeignKeySpec struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Table finds a table by name, case-insensitively.
func (s *Schema) Table(name string) (*TableSpec, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Column finds a column by name, case-insensitively.
func (t *TableSpec) Column(name string) (*ColumnSpec, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Identity returns the single primary key column, or "" for tables with
// no primary key or a composite one.
func (t *TableSpec) Identity() string {
	if len(t.PrimaryKey) != 1 {
		return ""
	}
	return t.PrimaryKey[0]
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *TableSpec) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, column) {
			return true
		}
	}
	return false
}
