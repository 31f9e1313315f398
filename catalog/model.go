// Package catalog provides reflection-based derivation of entity metadata.
package catalog

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// EntityConfig is the explicit descriptor of an entity type. Every field is
// optional; set fields take precedence over struct tags, which take
// precedence over naming conventions.
type EntityConfig struct {
	// Table overrides the table name.
	Table string
	// Cached loads the whole table once and resolves every association
	// against that snapshot.
	Cached bool
	// Reference overrides the column name other tables use to point at
	// this type.
	Reference string
	// Identity names the identity field (Go field name).
	Identity string
	// Exclude lists Go field names that are never mapped.
	Exclude []string
	// Columns renames columns, keyed by Go field name.
	Columns map[string]string
	// ForeignKeys overrides association key columns, keyed by the Go field
	// name of the association.
	ForeignKeys map[string]string
}

// Tabler is implemented by entity types that name their own table.
type Tabler interface {
	TableName() string
}

// ColumnInfo describes one persisted scalar field.
type ColumnInfo struct {
	// Name is the SQL column name.
	Name string
	// FieldName is the Go struct field name.
	FieldName string
	// FieldIndex is the index of the field in the struct.
	FieldIndex int
	// Type is the declared field type.
	Type reflect.Type
	// Nullable is true for pointer fields.
	Nullable bool
}

// AssociationInfo describes a field that references other entities.
type AssociationInfo struct {
	// FieldName is the Go struct field name.
	FieldName string
	// FieldIndex is the index of the field in the struct.
	FieldIndex int
	// Target is the associated struct type.
	Target reflect.Type
	// Collection is true for slice fields.
	Collection bool
	// ForeignKey is the explicit key column override, if any.
	ForeignKey string
}

// EntityInfo is the derived metadata of one entity type. It is immutable
// once published, apart from the cached-table snapshot.
type EntityInfo struct {
	// GoType is the struct type.
	GoType reflect.Type
	// Table is the SQL table name.
	Table string
	// Identity is the identity column, nil when none could be resolved.
	Identity *ColumnInfo
	// Reference is the default foreign-key column name for this type.
	Reference string
	// Cached marks a type whose whole table is loaded once.
	Cached bool
	// Columns lists persisted fields in declaration order.
	Columns []ColumnInfo
	// Associations lists entity-valued fields in declaration order.
	Associations []AssociationInfo
	// Excluded lists Go field names that are neither columns nor associations.
	Excluded []string

	newFn    func() reflect.Value
	snapshot atomic.Pointer[snapshot]
	loading  singleflight.Group
}

// Name returns the Go type name.
func (e *EntityInfo) Name() string { return e.GoType.Name() }

// Column finds a column by SQL name, then by Go field name, then
// case-insensitively by either.
func (e *EntityInfo) Column(name string) (*ColumnInfo, bool) {
	for i := range e.Columns {
		if e.Columns[i].Name == name {
			return &e.Columns[i], true
		}
	}
	for i := range e.Columns {
		if e.Columns[i].FieldName == name {
			return &e.Columns[i], true
		}
	}
	for i := range e.Columns {
		if strings.EqualFold(e.Columns[i].Name, name) || strings.EqualFold(e.Columns[i].FieldName, name) {
			return &e.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the SQL column names in declaration order.
func (e *EntityInfo) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// New allocates a zero entity and returns a pointer to it.
func (e *EntityInfo) New() reflect.Value {
	if e.newFn != nil {
		return e.newFn()
	}
	return reflect.New(e.GoType)
}

// ExtractEntityInfo analyzes a struct type and derives its metadata.
// A type without a resolvable identity is valid; it can still be embedded
// as an association target but cannot be fetched, saved or deleted on its own.
func ExtractEntityInfo(t reflect.Type, cfg EntityConfig) (*EntityInfo, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	info := &EntityInfo{GoType: t, Cached: cfg.Cached}

	excluded := make(map[string]bool, len(cfg.Exclude))
	for _, name := range cfg.Exclude {
		excluded[name] = true
	}

	identityIdx := -1
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		tag, err := ParseTag(field.Tag.Get(TagName))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.Skip || excluded[field.Name] {
			info.Excluded = append(info.Excluded, field.Name)
			continue
		}

		desc := Describe(field.Type)
		switch desc.Kind {
		case KindScalar:
			name := field.Name
			if tag.Column != "" {
				name = tag.Column
			}
			if override, ok := cfg.Columns[field.Name]; ok {
				name = override
			}
			info.Columns = append(info.Columns, ColumnInfo{
				Name:       name,
				FieldName:  field.Name,
				FieldIndex: i,
				Type:       field.Type,
				Nullable:   desc.Nullable,
			})
			if tag.Identity && identityIdx < 0 {
				identityIdx = len(info.Columns) - 1
			}

		case KindSingle, KindCollection:
			fk := tag.ForeignKey
			if override, ok := cfg.ForeignKeys[field.Name]; ok {
				fk = override
			}
			info.Associations = append(info.Associations, AssociationInfo{
				FieldName:  field.Name,
				FieldIndex: i,
				Target:     desc.ElemType,
				Collection: desc.IsList,
				ForeignKey: fk,
			})

		default:
			info.Excluded = append(info.Excluded, field.Name)
		}
	}

	if cfg.Identity != "" {
		identityIdx = -1
		for i, c := range info.Columns {
			if c.FieldName == cfg.Identity {
				identityIdx = i
				break
			}
		}
		if identityIdx < 0 {
			return nil, fmt.Errorf("identity field %q is not a column of %s", cfg.Identity, t.Name())
		}
	}
	if identityIdx < 0 {
		identityIdx = columnByField(info.Columns, t.Name()+"ID")
	}
	if identityIdx < 0 {
		identityIdx = columnByField(info.Columns, "ID")
	}
	if identityIdx >= 0 {
		info.Identity = &info.Columns[identityIdx]
	}

	info.Table = t.Name()
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		if name := tabler.TableName(); name != "" {
			info.Table = name
		}
	}
	if cfg.Table != "" {
		info.Table = cfg.Table
	}

	switch {
	case cfg.Reference != "":
		info.Reference = cfg.Reference
	case info.Identity != nil:
		info.Reference = info.Identity.Name
	default:
		info.Reference = t.Name() + "ID"
	}

	return info, nil
}

func columnByField(cols []ColumnInfo, name string) int {
	for i, c := range cols {
		if c.FieldName == name {
			return i
		}
	}
	return -1
}
