// Package catalog provides equality filters for fetches.
package catalog

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters is returned by Pairs for an odd argument count or a
// non-string column name.
var ErrInvalidParameters = errors.New("catalog: invalid parameters")

// Filter restricts a fetch to rows whose column equals Value. Column may be
// the SQL column name or the Go field name.
type Filter struct {
	Column string
	Value  any
}

// Eq creates an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Pairs builds filters from alternating column names and values:
//
//	catalog.Pairs("CustomerID", 3, "Status", "open")
func Pairs(kv ...any) ([]Filter, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of arguments (%d)", ErrInvalidParameters, len(kv))
	}
	filters := make([]Filter, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: argument %d must be a column name, got %T", ErrInvalidParameters, i, kv[i])
		}
		filters = append(filters, Eq(name, kv[i+1]))
	}
	return filters, nil
}
