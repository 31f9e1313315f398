package catalog

import (
	"context"
	"database/sql"
	"reflect"
)

// lazyOrigin marks objects that arrived through a follow-up fetch rather
// than a plan step.
const lazyOrigin = -1

// batch holds every object materialized during one fetch, indexed by type
// and identity, plus the queue of objects whose associations still need
// wiring. It never outlives the fetch that created it.
type batch struct {
	ctx  context.Context
	c    *Cataloger
	plan *Plan
	opts FetchOptions

	types    map[*EntityInfo]*typeRows
	origins  map[any][]int
	queue    []queued
	failed   map[int]bool
	failures []*ResultSetError
}

type queued struct {
	info *EntityInfo
	obj  reflect.Value
}

// typeRows is the per-type slice of a batch.
type typeRows struct {
	order []reflect.Value
	byID  map[any]reflect.Value
	// index maps a column field index to key -> objects, built on first use.
	index map[int]map[any][]reflect.Value
}

func newBatch(ctx context.Context, c *Cataloger, plan *Plan, opts FetchOptions) *batch {
	return &batch{
		ctx:     ctx,
		c:       c,
		plan:    plan,
		opts:    opts,
		types:   make(map[*EntityInfo]*typeRows),
		origins: make(map[any][]int),
		failed:  make(map[int]bool),
	}
}

func (b *batch) rows(info *EntityInfo) *typeRows {
	tr, ok := b.types[info]
	if !ok {
		tr = &typeRows{byID: make(map[any]reflect.Value), index: make(map[int]map[any][]reflect.Value)}
		b.types[info] = tr
	}
	return tr
}

// add records obj under its identity. When an object with the same
// identity is already present the first one wins and is returned instead.
func (b *batch) add(info *EntityInfo, obj reflect.Value, origin int) reflect.Value {
	tr := b.rows(info)
	if info.Identity != nil {
		if key, ok := identityKey(obj.Elem().Field(info.Identity.FieldIndex).Interface()); ok {
			if existing, dup := tr.byID[key]; dup {
				b.origins[existing.Interface()] = append(b.origins[existing.Interface()], origin)
				return existing
			}
			tr.byID[key] = obj
		}
	}
	tr.order = append(tr.order, obj)
	for field, idx := range tr.index {
		if key, ok := identityKey(obj.Elem().Field(field).Interface()); ok {
			idx[key] = append(idx[key], obj)
		}
	}
	b.origins[obj.Interface()] = []int{origin}
	b.queue = append(b.queue, queued{info: info, obj: obj})
	return obj
}

// load materializes one result set into the batch and returns the
// canonical objects in row order without duplicates. A failing row
// discards the whole set.
func (b *batch) load(info *EntityInfo, rows *sql.Rows, origin int) ([]reflect.Value, error) {
	objs, err := scanAll(info, rows)
	if err != nil {
		return nil, err
	}
	seen := make(map[any]bool, len(objs))
	result := make([]reflect.Value, 0, len(objs))
	for _, obj := range objs {
		kept := b.add(info, obj, origin)
		if seen[kept.Interface()] {
			continue
		}
		seen[kept.Interface()] = true
		result = append(result, kept)
	}
	return result, nil
}

// fail records a contained failure.
func (b *batch) fail(index int, table string, cause error) {
	if index >= 0 {
		b.failed[index] = true
	}
	rse := &ResultSetError{Index: index, Table: table, Cause: cause}
	b.failures = append(b.failures, rse)
	b.c.logger.Warn("contained fetch failure", "table", table, "step", index, "error", cause)
}

// err returns the collected failures, or nil.
func (b *batch) err() error {
	if len(b.failures) == 0 {
		return nil
	}
	return &PartialResultError{Failures: b.failures}
}

// lookup returns the batch objects of info whose column equals key.
func (b *batch) lookup(info *EntityInfo, col *ColumnInfo, key any) []reflect.Value {
	tr, ok := b.types[info]
	if !ok {
		return nil
	}
	if info.Identity != nil && col.FieldIndex == info.Identity.FieldIndex {
		if obj, ok := tr.byID[key]; ok {
			return []reflect.Value{obj}
		}
		return nil
	}
	idx, ok := tr.index[col.FieldIndex]
	if !ok {
		idx = make(map[any][]reflect.Value)
		for _, obj := range tr.order {
			if k, ok := identityKey(obj.Elem().Field(col.FieldIndex).Interface()); ok {
				idx[k] = append(idx[k], obj)
			}
		}
		tr.index[col.FieldIndex] = idx
	}
	return idx[key]
}

// covered reports whether a plan step that produced obj also expanded the
// association, in which case an empty match is a genuine empty result.
func (b *batch) covered(obj reflect.Value, a *AssociationInfo) bool {
	if b.plan == nil {
		return false
	}
	for _, origin := range b.origins[obj.Interface()] {
		if origin < 0 {
			continue
		}
		step, ok := b.plan.covered[coverKey{origin, a.FieldIndex}]
		if ok && !b.failed[step] {
			return true
		}
	}
	return false
}

// wire drains the queue, assigning every unset association. Objects added
// by follow-up fetches are queued in turn; each object is queued once, so
// the loop ends after visiting every distinct object.
func (b *batch) wire() {
	for len(b.queue) > 0 {
		q := b.queue[0]
		b.queue = b.queue[1:]
		for i := range q.info.Associations {
			b.wireField(q.info, q.obj, &q.info.Associations[i])
		}
	}
}

func (b *batch) wireField(info *EntityInfo, obj reflect.Value, a *AssociationInfo) {
	field := obj.Elem().Field(a.FieldIndex)
	if !field.IsNil() {
		return
	}
	e, ok, err := b.c.resolveEdge(info, a)
	if err != nil {
		b.fail(lazyOrigin, info.Table, err)
		return
	}
	if !ok {
		return
	}
	keyVal := obj.Elem().Field(e.parentKey.FieldIndex).Interface()
	key, ok := identityKey(keyVal)
	if !ok {
		return
	}

	if e.child.Cached {
		snap := e.child.snapshot.Load()
		if snap == nil && b.opts.LazyLoad {
			snap, err = b.c.loadSnapshot(b.ctx, e.child)
			if err != nil {
				b.fail(lazyOrigin, e.child.Table, err)
				return
			}
		}
		if snap != nil {
			assign(field, a, snap.match(e.childKey, key))
		}
		return
	}

	matches := b.lookup(e.child, e.childKey, key)
	if b.covered(obj, a) || len(matches) > 0 {
		assign(field, a, matches)
		return
	}
	if !b.opts.LazyLoad {
		return
	}

	b.c.logger.Debug("lazy load", "entity", info.Name(), "field", a.FieldName, "key", e.childKey.Name)
	fetched, err := b.c.fetchInto(b, e.child, []Filter{Eq(e.childKey.Name, keyVal)})
	if err != nil {
		b.fail(lazyOrigin, e.child.Table, err)
		return
	}
	assign(field, a, fetched)
}

// assign stores matches in an association field. Collections always
// receive a non-nil slice; single associations take the first match or
// stay unset.
func assign(field reflect.Value, a *AssociationInfo, matches []reflect.Value) {
	if a.Collection {
		slice := reflect.MakeSlice(field.Type(), 0, len(matches))
		for _, m := range matches {
			slice = reflect.Append(slice, m)
		}
		field.Set(slice)
		return
	}
	if len(matches) > 0 {
		field.Set(matches[0])
	}
}

// scanAll reads every remaining row of the current result set into new
// objects of info. Result columns the entity does not map are ignored.
func scanAll(info *EntityInfo, rows *sql.Rows) ([]reflect.Value, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cols := make([]*ColumnInfo, len(names))
	for i, name := range names {
		if col, ok := info.Column(name); ok {
			cols[i] = col
		}
	}

	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var objs []reflect.Value
	for rows.Next() {
		for i := range vals {
			vals[i] = nil
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		obj := info.New()
		if err := hydrateRow(info, obj, cols, vals); err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return objs, nil
}
