// Package readcache puts a sturdyc read-through cache in front of a
// catalog.Cataloger. Cached objects are shared between callers and must be
// treated as read-only; writes go through the cache so that every entry
// that could contain the written table is dropped.
package readcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/viccon/sturdyc"

	"github.com/CaliLuke/go-catalog/catalog"
)

// errPartial marks a fetch whose result must not be cached.
var errPartial = errors.New("readcache: partial result")

// Cache serves ByID and Find from memory, falling back to the Cataloger.
type Cache struct {
	c      *catalog.Cataloger
	client *sturdyc.Client[any]
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(rc *Cache) { rc.logger = l }
}

// New validates cfg and returns a Cache over c.
func New(c *catalog.Cataloger, cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rc := &Cache{
		c:      c,
		client: sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage, cfg.ToSturdycOptions()...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.logger = rc.logger.With("component", "readcache")
	return rc, nil
}

// Cataloger returns the wrapped cataloger.
func (rc *Cache) Cataloger() *catalog.Cataloger { return rc.c }

// Size returns the number of cached entries.
func (rc *Cache) Size() int { return rc.client.Size() }

func tableOf[T any](rc *Cache) (string, error) {
	info, err := rc.c.Registry().MetadataFor(reflect.TypeFor[T]())
	if err != nil {
		return "", err
	}
	return info.Table, nil
}

// ByID returns the T with the given identity, from the cache when present.
// A missing row is remembered when missing-record storage is enabled.
func ByID[T any](ctx context.Context, rc *Cache, id any) (*T, error) {
	table, err := tableOf[T](rc)
	if err != nil {
		return nil, err
	}
	key, err := Key(table, "id", catalog.Filter{Value: id})
	if err != nil {
		return nil, fmt.Errorf("readcache: key: %w", err)
	}

	var direct *T
	var partial error
	// The fetch always returns a typed value: sturdyc asserts the result
	// against the client's value type even when an error is returned.
	v, err := rc.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		obj, err := catalog.FindByID[T](ctx, rc.c, id)
		if err != nil {
			if catalog.IsPartial(err) {
				direct, partial = obj, err
				return (*T)(nil), errPartial
			}
			return (*T)(nil), err
		}
		if obj == nil {
			return (*T)(nil), sturdyc.ErrNotFound
		}
		return obj, nil
	})
	switch {
	case partial != nil:
		return direct, partial
	case errors.Is(err, errPartial):
		return catalog.FindByID[T](ctx, rc.c, id)
	case errors.Is(err, sturdyc.ErrNotFound), errors.Is(err, sturdyc.ErrMissingRecord):
		return nil, nil
	case err != nil:
		return nil, err
	}
	obj, _ := v.(*T)
	return obj, nil
}

// Find returns every T matching filters, from the cache when present.
func Find[T any](ctx context.Context, rc *Cache, filters ...catalog.Filter) ([]*T, error) {
	table, err := tableOf[T](rc)
	if err != nil {
		return nil, err
	}
	key, err := Key(table, "find", filters...)
	if err != nil {
		return nil, fmt.Errorf("readcache: key: %w", err)
	}

	var direct []*T
	var partial error
	v, err := rc.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		objs, err := catalog.Find[T](ctx, rc.c, filters...)
		if err != nil {
			if catalog.IsPartial(err) {
				direct, partial = objs, err
				return []*T(nil), errPartial
			}
			return []*T(nil), err
		}
		return objs, nil
	})
	switch {
	case partial != nil:
		return direct, partial
	case errors.Is(err, errPartial):
		return catalog.Find[T](ctx, rc.c, filters...)
	case errors.Is(err, sturdyc.ErrNotFound), errors.Is(err, sturdyc.ErrMissingRecord):
		return nil, nil
	case err != nil:
		return nil, err
	}
	objs, _ := v.([]*T)
	return objs, nil
}

// Save writes entity through the Cataloger and invalidates every entry
// whose object graph can reach the entity's table.
func (rc *Cache) Save(ctx context.Context, entity any) error {
	if err := rc.c.Save(ctx, entity); err != nil {
		return err
	}
	return rc.invalidateFor(entity)
}

// Delete removes entity through the Cataloger and invalidates like Save.
func (rc *Cache) Delete(ctx context.Context, entity any) error {
	if err := rc.c.Delete(ctx, entity); err != nil {
		return err
	}
	return rc.invalidateFor(entity)
}

func (rc *Cache) invalidateFor(entity any) error {
	info, err := rc.c.Registry().MetadataFor(reflect.TypeOf(entity))
	if err != nil {
		return err
	}
	rc.Invalidate(info.Table)
	return nil
}

// Invalidate drops the entries of every known entity whose associations
// reach table, including table itself, and returns how many were dropped.
func (rc *Cache) Invalidate(table string) int {
	prefixes := []string{tablePrefix(table)}
	for _, info := range rc.c.Registry().Entities() {
		if info.Table != table && reaches(rc.c.Registry(), info, table) {
			prefixes = append(prefixes, tablePrefix(info.Table))
		}
	}

	dropped := 0
	for _, key := range rc.client.ScanKeys() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				rc.client.Delete(key)
				dropped++
				break
			}
		}
	}
	rc.logger.Debug("invalidated", "table", table, "entries", dropped)
	return dropped
}

// reaches reports whether any association path from root leads to table.
func reaches(r *catalog.Registry, root *catalog.EntityInfo, table string) bool {
	seen := map[*catalog.EntityInfo]bool{root: true}
	queue := []*catalog.EntityInfo{root}
	for len(queue) > 0 {
		info := queue[0]
		queue = queue[1:]
		for _, a := range info.Associations {
			target, err := r.MetadataFor(a.Target)
			if err != nil {
				continue
			}
			if target.Table == table {
				return true
			}
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		}
	}
	return false
}
