package catalog

import (
	"context"
	"fmt"
	"reflect"
)

// Repository provides typed access to one entity type through a Cataloger.
type Repository[T any] struct {
	c    *Cataloger
	info *EntityInfo
	opts FetchOptions
}

// NewRepository creates a Repository for T. It panics if T is not a struct
// or its metadata cannot be derived, as this is a programming error.
func NewRepository[T any](c *Cataloger) *Repository[T] {
	info, err := entityFor[T](c)
	if err != nil {
		panic(fmt.Sprintf("catalog: repository for %s: %v", reflect.TypeFor[T](), err))
	}
	return &Repository[T]{c: c, info: info, opts: c.defaults}
}

// WithOptions returns a copy of the repository using opts for reads.
func (r *Repository[T]) WithOptions(opts FetchOptions) *Repository[T] {
	cp := *r
	cp.opts = opts
	return &cp
}

// Entity returns the metadata of T.
func (r *Repository[T]) Entity() *EntityInfo { return r.info }

// ByID returns the entity with the given identity, or nil.
func (r *Repository[T]) ByID(ctx context.Context, id any) (*T, error) {
	return FindByIDWith[T](ctx, r.c, r.opts, id)
}

// All returns every entity.
func (r *Repository[T]) All(ctx context.Context) ([]*T, error) {
	return FindWith[T](ctx, r.c, r.opts)
}

// Find returns the entities matching filters.
func (r *Repository[T]) Find(ctx context.Context, filters ...Filter) ([]*T, error) {
	return FindWith[T](ctx, r.c, r.opts, filters...)
}

// Save inserts or updates entity.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("save %s: entity must not be nil", r.info.Table)
	}
	return r.c.Save(ctx, entity)
}

// Delete removes entity by identity.
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("delete %s: entity must not be nil", r.info.Table)
	}
	return r.c.Delete(ctx, entity)
}
