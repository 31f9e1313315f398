package catalog

import (
	"context"
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-catalog/ast"
	"github.com/CaliLuke/go-catalog/dialect"
)

// entityFor resolves the metadata of T, which must be a struct type.
func entityFor[T any](c *Cataloger) (*EntityInfo, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("catalog: %s is not a struct type", t)
	}
	return c.registry.MetadataFor(t)
}

func typed[T any](objs []reflect.Value) []*T {
	out := make([]*T, len(objs))
	for i, obj := range objs {
		out[i] = obj.Interface().(*T)
	}
	return out
}

// Find returns every T matching the equality filters, using the
// cataloger's default fetch options.
//
// When some association selects fail, Find returns the objects together
// with a *PartialResultError; the objects are usable and only the
// associations fed by the failed selects are left unset.
func Find[T any](ctx context.Context, c *Cataloger, filters ...Filter) ([]*T, error) {
	return FindWith[T](ctx, c, c.defaults, filters...)
}

// FindWith is Find with explicit fetch options.
func FindWith[T any](ctx context.Context, c *Cataloger, opts FetchOptions, filters ...Filter) ([]*T, error) {
	info, err := entityFor[T](c)
	if err != nil {
		return nil, err
	}
	objs, err := c.fetch(ctx, info, filters, opts)
	if objs == nil && err != nil {
		return nil, err
	}
	return typed[T](objs), err
}

// All returns every row of T.
func All[T any](ctx context.Context, c *Cataloger) ([]*T, error) {
	return FindWith[T](ctx, c, c.defaults)
}

// FindByID returns the T whose identity equals id, or nil when no row
// matches.
func FindByID[T any](ctx context.Context, c *Cataloger, id any) (*T, error) {
	return FindByIDWith[T](ctx, c, c.defaults, id)
}

// FindByIDWith is FindByID with explicit fetch options.
func FindByIDWith[T any](ctx context.Context, c *Cataloger, opts FetchOptions, id any) (*T, error) {
	info, err := entityFor[T](c)
	if err != nil {
		return nil, err
	}
	if info.Identity == nil {
		return nil, &MissingIdentityError{TypeName: info.Name(), Operation: "find"}
	}
	objs, err := c.fetch(ctx, info, []Filter{Eq(info.Identity.Name, id)}, opts)
	if len(objs) == 0 {
		return nil, err
	}
	want, _ := identityKey(id)
	for _, obj := range objs {
		if key, _ := identityKey(obj.Elem().Field(info.Identity.FieldIndex).Interface()); key == want {
			return obj.Interface().(*T), err
		}
	}
	return objs[0].Interface().(*T), err
}

// CallProcedure invokes a stored procedure and materializes its result
// sets in order: the i-th set into resultTypes[i]. resultTypes[0] must be
// T; a nil or empty resultTypes means just T. The rows bypass the planner
// but are wired like any fetch, with follow-up fetches when
// opts.LazyLoad is set.
func CallProcedure[T any](ctx context.Context, c *Cataloger, name string, resultTypes []reflect.Type, opts FetchOptions, args ...any) ([]*T, error) {
	pc, ok := c.dialect.(dialect.ProcedureCaller)
	if !ok {
		return nil, &UnsupportedError{Dialect: c.dialect.Name(), Feature: "stored procedures"}
	}
	root, err := entityFor[T](c)
	if err != nil {
		return nil, err
	}
	if len(resultTypes) == 0 {
		resultTypes = []reflect.Type{root.GoType}
	}
	infos := make([]*EntityInfo, len(resultTypes))
	for i, t := range resultTypes {
		if infos[i], err = c.registry.MetadataFor(t); err != nil {
			return nil, err
		}
	}
	if infos[0] != root {
		return nil, &TypeMismatchError{Want: root.Name(), Got: infos[0].Name()}
	}

	bound := make([]any, len(args))
	for i, a := range args {
		bound[i] = bindValue(a)
	}
	cmd, err := c.compiler.Compile(ast.Call(name, pc.CallStyle(), bound...))
	if err != nil {
		return nil, err
	}

	b := newBatch(ctx, c, nil, opts)
	roots, err := c.callInto(ctx, cmd, infos, b)
	if err != nil {
		return nil, err
	}
	b.wire()
	return typed[T](roots), b.err()
}

func (c *Cataloger) callInto(ctx context.Context, cmd ast.Command, infos []*EntityInfo, b *batch) ([]reflect.Value, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, c.execError("call", infos[0].Table, cmd.SQL, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, cmd.SQL, cmd.Args...)
	if err != nil {
		return nil, c.execError("call", infos[0].Table, cmd.SQL, err)
	}
	defer rows.Close()

	var roots []reflect.Value
	for i, info := range infos {
		if i > 0 && !rows.NextResultSet() {
			if err := rows.Err(); err != nil {
				b.fail(i, info.Table, err)
			}
			break
		}
		objs, err := b.load(info, rows, i)
		if err != nil {
			if i == 0 {
				return nil, c.execError("call", info.Table, cmd.SQL, err)
			}
			b.fail(i, info.Table, err)
			continue
		}
		if i == 0 {
			roots = objs
		}
	}
	return roots, nil
}
