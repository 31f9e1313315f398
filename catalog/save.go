package catalog

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/CaliLuke/go-catalog/ast"
)

// bindValue converts a field or filter value into a query argument. Nil
// pointers, the zero time and the minimum int32/int64 values are the
// "no value" sentinels and bind as NULL.
func bindValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return bindValue(rv.Elem().Interface())
	}
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		return t
	}
	switch rv.Kind() {
	case reflect.Int32:
		if rv.Int() == math.MinInt32 {
			return nil
		}
	case reflect.Int, reflect.Int64:
		if rv.Int() == math.MinInt64 {
			return nil
		}
	}
	return v
}

// identityArg returns the identity of v as a query argument. It reports
// false for a zero or nil identity and for the "no value" sentinels, which
// would otherwise compile to IS NULL.
func identityArg(info *EntityInfo, v reflect.Value) (any, bool) {
	id := v.Field(info.Identity.FieldIndex).Interface()
	if _, ok := identityKey(id); !ok {
		return nil, false
	}
	arg := bindValue(id)
	return arg, arg != nil
}

func entityValue(entity any, op string) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("catalog: %s: entity must be a non-nil pointer to struct, got %T", op, entity)
	}
	return rv, nil
}

// Save inserts entity when its identity is the zero value, reading the
// generated identity back into it, and updates every non-identity column
// by identity otherwise. entity must be a pointer to struct.
func (c *Cataloger) Save(ctx context.Context, entity any) error {
	rv, err := entityValue(entity, "save")
	if err != nil {
		return err
	}
	info, err := c.registry.MetadataFor(rv.Type())
	if err != nil {
		return err
	}
	if info.Identity == nil {
		return &MissingIdentityError{TypeName: info.Name(), Operation: "save"}
	}

	v := rv.Elem()
	cols := make([]string, 0, len(info.Columns))
	vals := make([]any, 0, len(info.Columns))
	for _, col := range info.Columns {
		if col.FieldIndex == info.Identity.FieldIndex {
			continue
		}
		cols = append(cols, col.Name)
		vals = append(vals, bindValue(v.Field(col.FieldIndex).Interface()))
	}

	id, set := identityArg(info, v)
	if !set {
		return c.insert(ctx, info, v.Field(info.Identity.FieldIndex), cols, vals)
	}
	return c.update(ctx, info, id, cols, vals)
}

func (c *Cataloger) insert(ctx context.Context, info *EntityInfo, idField reflect.Value, cols []string, vals []any) error {
	stmt := ast.Insert(info.Table, cols, vals)
	returning := c.dialect.InsertReturning()
	if returning {
		stmt.Returning = info.Identity.Name
	}
	cmd, err := c.compiler.Compile(stmt)
	if err != nil {
		return fmt.Errorf("insert %s: %w", info.Table, err)
	}
	c.logger.Debug("insert", "table", info.Table, "sql", cmd.SQL)

	var id any
	if returning {
		if err := c.db.QueryRowContext(ctx, cmd.SQL, cmd.Args...).Scan(&id); err != nil {
			return c.execError("insert", info.Table, cmd.SQL, err)
		}
	} else {
		res, err := c.db.ExecContext(ctx, cmd.SQL, cmd.Args...)
		if err != nil {
			return c.execError("insert", info.Table, cmd.SQL, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return c.execError("insert", info.Table, cmd.SQL, err)
		}
	}
	if err := setColumn(idField, info.Identity, id); err != nil {
		return &HydrationError{TypeName: info.Name(), Field: info.Identity.FieldName, Cause: err}
	}
	return nil
}

func (c *Cataloger) update(ctx context.Context, info *EntityInfo, id any, cols []string, vals []any) error {
	if len(cols) == 0 {
		return nil
	}
	set := make([]ast.Assignment, len(cols))
	for i := range cols {
		set[i] = ast.Set(cols[i], vals[i])
	}
	cmd, err := c.compiler.Compile(ast.Update(info.Table, ast.Eq(info.Identity.Name, id), set...))
	if err != nil {
		return fmt.Errorf("update %s: %w", info.Table, err)
	}
	c.logger.Debug("update", "table", info.Table, "sql", cmd.SQL)
	if _, err := c.db.ExecContext(ctx, cmd.SQL, cmd.Args...); err != nil {
		return c.execError("update", info.Table, cmd.SQL, err)
	}
	return nil
}

// Delete removes the row of entity by identity. entity must be a pointer
// to struct.
func (c *Cataloger) Delete(ctx context.Context, entity any) error {
	rv, err := entityValue(entity, "delete")
	if err != nil {
		return err
	}
	info, err := c.registry.MetadataFor(rv.Type())
	if err != nil {
		return err
	}
	if info.Identity == nil {
		return &MissingIdentityError{TypeName: info.Name(), Operation: "delete"}
	}
	id, set := identityArg(info, rv.Elem())
	if !set {
		return fmt.Errorf("catalog: delete %s: %w", info.Table, ErrUnsetIdentity)
	}
	cmd, err := c.compiler.Compile(ast.Delete(info.Table, ast.Eq(info.Identity.Name, id)))
	if err != nil {
		return fmt.Errorf("delete %s: %w", info.Table, err)
	}
	c.logger.Debug("delete", "table", info.Table, "sql", cmd.SQL)
	if _, err := c.db.ExecContext(ctx, cmd.SQL, cmd.Args...); err != nil {
		return c.execError("delete", info.Table, cmd.SQL, err)
	}
	return nil
}
