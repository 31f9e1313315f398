// Package catalog provides classification of Go field types into columns
// and associations.
package catalog

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// FieldKind classifies a declared field type.
type FieldKind int

const (
	// KindUnsupported marks types that are neither scalar nor an association.
	KindUnsupported FieldKind = iota
	// KindScalar is a column-compatible type.
	KindScalar
	// KindSingle is a pointer to another entity struct.
	KindSingle
	// KindCollection is a slice of pointers to another entity struct.
	KindCollection
)

// String returns the name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSingle:
		return "single"
	case KindCollection:
		return "collection"
	default:
		return "unsupported"
	}
}

// TypeDescriptor is the cached classification of one Go type.
type TypeDescriptor struct {
	// Type is the described type.
	Type reflect.Type
	// Kind is the classification.
	Kind FieldKind
	// Nullable is true for pointers to scalars.
	Nullable bool
	// IsList is true for collection associations.
	IsList bool
	// ElemType is the struct type of an association, or the pointed-to
	// type of a nullable scalar.
	ElemType reflect.Type
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	bytesType   = reflect.TypeFor[[]byte]()
	scannerType = reflect.TypeFor[sql.Scanner]()
	valuerType  = reflect.TypeFor[driver.Valuer]()

	descriptors = xsync.NewMapOf[reflect.Type, *TypeDescriptor]()
)

// Describe returns the descriptor for t, computing it on first use.
func Describe(t reflect.Type) *TypeDescriptor {
	if d, ok := descriptors.Load(t); ok {
		return d
	}
	d, _ := descriptors.LoadOrStore(t, describe(t))
	return d
}

func describe(t reflect.Type) *TypeDescriptor {
	d := &TypeDescriptor{Type: t}
	switch {
	case isScalar(t):
		d.Kind = KindScalar
	case t.Kind() == reflect.Pointer && isScalar(t.Elem()):
		d.Kind = KindScalar
		d.Nullable = true
		d.ElemType = t.Elem()
	case t.Kind() == reflect.Pointer && isEntityStruct(t.Elem()):
		d.Kind = KindSingle
		d.ElemType = t.Elem()
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Pointer && isEntityStruct(t.Elem().Elem()):
		d.Kind = KindCollection
		d.IsList = true
		d.ElemType = t.Elem().Elem()
	}
	return d
}

// isScalar reports whether values of t can be bound and scanned directly:
// numbers, booleans, strings, byte slices, time.Time, and any type that is
// both a driver.Valuer and (through its pointer) an sql.Scanner, such as
// decimal.Decimal, uuid.UUID or sql.NullString.
func isScalar(t reflect.Type) bool {
	if t == timeType || t == bytesType {
		return true
	}
	if t.Implements(valuerType) && reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isEntityStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && !isScalar(t)
}
