package catalog

import (
	"context"
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-catalog/ast"
)

// snapshot is the full table of a cached type. It is published once per
// EntityInfo and never modified afterwards; its objects are shared by
// every fetch and are not wired.
type snapshot struct {
	rows    []reflect.Value
	byID    map[any]reflect.Value
	idField int
}

func newSnapshot(info *EntityInfo, objs []reflect.Value) *snapshot {
	s := &snapshot{rows: objs, byID: make(map[any]reflect.Value, len(objs)), idField: -1}
	if info.Identity == nil {
		return s
	}
	s.idField = info.Identity.FieldIndex
	for _, obj := range objs {
		if key, ok := identityKey(obj.Elem().Field(info.Identity.FieldIndex).Interface()); ok {
			if _, dup := s.byID[key]; !dup {
				s.byID[key] = obj
			}
		}
	}
	return s
}

// match returns the rows whose column equals key, scanning linearly unless
// the column is the identity.
func (s *snapshot) match(col *ColumnInfo, key any) []reflect.Value {
	if col.FieldIndex == s.idField {
		if obj, ok := s.byID[key]; ok {
			return []reflect.Value{obj}
		}
		return nil
	}
	var out []reflect.Value
	for _, obj := range s.rows {
		if k, ok := identityKey(obj.Elem().Field(col.FieldIndex).Interface()); ok && k == key {
			out = append(out, obj)
		}
	}
	return out
}

// publish installs s unless another snapshot won the race, and returns the
// snapshot that is now in effect.
func (e *EntityInfo) publish(s *snapshot) *snapshot {
	if e.snapshot.CompareAndSwap(nil, s) {
		return s
	}
	return e.snapshot.Load()
}

// CachedRows returns the loaded snapshot of a cached type as pointers to
// its struct type, or nil when none has been loaded. The objects are
// shared and must be treated as read-only.
func (e *EntityInfo) CachedRows() []any {
	s := e.snapshot.Load()
	if s == nil {
		return nil
	}
	out := make([]any, len(s.rows))
	for i, obj := range s.rows {
		out[i] = obj.Interface()
	}
	return out
}

// loadSnapshot loads the whole table of a cached type once. Concurrent
// callers share a single query.
func (c *Cataloger) loadSnapshot(ctx context.Context, info *EntityInfo) (*snapshot, error) {
	if s := info.snapshot.Load(); s != nil {
		return s, nil
	}
	v, err, _ := info.loading.Do("snapshot", func() (any, error) {
		if s := info.snapshot.Load(); s != nil {
			return s, nil
		}
		cmd, err := c.compiler.Compile(ast.Select(info.Table, info.ColumnNames()...))
		if err != nil {
			return nil, err
		}
		conn, err := c.db.Conn(ctx)
		if err != nil {
			return nil, c.execError("find", info.Table, cmd.SQL, err)
		}
		defer conn.Close()

		rows, err := conn.QueryContext(ctx, cmd.SQL, cmd.Args...)
		if err != nil {
			return nil, c.execError("find", info.Table, cmd.SQL, err)
		}
		defer rows.Close()
		objs, err := scanAll(info, rows)
		if err != nil {
			return nil, fmt.Errorf("load cached %s: %w", info.Table, err)
		}
		c.logger.Debug("cached table loaded", "table", info.Table, "rows", len(objs))
		return info.publish(newSnapshot(info, objs)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}
