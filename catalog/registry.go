// Package catalog provides a registry of entity metadata keyed by Go type.
package catalog

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

var defaultRegistry = NewRegistry()

// Registry maps Go struct types to their entity metadata. Metadata is
// computed outside any lock and published once; concurrent first use may
// compute twice, but only one result is ever visible.
type Registry struct {
	entities *xsync.MapOf[reflect.Type, *EntityInfo]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: xsync.NewMapOf[reflect.Type, *EntityInfo]()}
}

// DefaultRegistry returns the process-wide registry used by Register and
// by catalogers created without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds T to the default registry with an optional explicit
// descriptor.
func Register[T any](cfg ...EntityConfig) error {
	return RegisterWith[T](defaultRegistry, cfg...)
}

// MustRegister is a helper that calls Register and panics if an error occurs.
// It is intended for use during application initialization.
func MustRegister[T any](cfg ...EntityConfig) {
	if err := Register[T](cfg...); err != nil {
		panic(err)
	}
}

// RegisterWith adds T to r. Registration replaces metadata derived earlier
// for the same type, so it belongs in program initialization before the
// first fetch.
func RegisterWith[T any](r *Registry, cfg ...EntityConfig) error {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if len(cfg) > 1 {
		return fmt.Errorf("registering %s: at most one EntityConfig", t.Name())
	}
	var c EntityConfig
	if len(cfg) == 1 {
		c = cfg[0]
	}

	info, err := ExtractEntityInfo(t, c)
	if err != nil {
		return fmt.Errorf("registering %s: %w", t.Name(), err)
	}
	if reflect.TypeFor[T]().Kind() == reflect.Struct {
		info.newFn = func() reflect.Value { return reflect.ValueOf(new(T)) }
	}

	r.entities.Store(t, info)
	return nil
}

// MetadataFor returns the metadata of t from the default registry,
// deriving it from conventions and tags on first use.
func MetadataFor(t reflect.Type) (*EntityInfo, error) {
	return defaultRegistry.MetadataFor(t)
}

// MetadataFor returns the metadata of t, deriving it from conventions and
// tags on first use. Pointer types are resolved to their element.
func (r *Registry) MetadataFor(t reflect.Type) (*EntityInfo, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if info, ok := r.entities.Load(t); ok {
		return info, nil
	}
	info, err := ExtractEntityInfo(t, EntityConfig{})
	if err != nil {
		return nil, err
	}
	info, _ = r.entities.LoadOrStore(t, info)
	return info, nil
}

// Lookup returns metadata already known for t without deriving it.
func (r *Registry) Lookup(t reflect.Type) (*EntityInfo, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return r.entities.Load(t)
}

// Entities returns all known metadata sorted by table name.
func (r *Registry) Entities() []*EntityInfo {
	result := make([]*EntityInfo, 0, r.entities.Size())
	r.entities.Range(func(_ reflect.Type, info *EntityInfo) bool {
		result = append(result, info)
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Table < result[j].Table })
	return result
}

// Clear removes all metadata, including cached-table snapshots.
// This is primarily used for testing purposes.
func (r *Registry) Clear() {
	r.entities.Clear()
}
