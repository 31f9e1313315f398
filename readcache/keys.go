package readcache

import (
	"bytes"
	"database/sql/driver"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/CaliLuke/go-catalog/catalog"
)

// KeySeparator delimits the segments of a cache key.
const KeySeparator = "::"

// Key builds the cache key of one read: the table, the operation, and a
// hash of the msgpack-encoded filters. Filter values are reduced to their
// driver representation first, so an int and an int64 of the same value,
// or a decimal and its string form, share a key.
func Key(table, op string, filters ...catalog.Filter) (string, error) {
	parts := make([]any, 0, 2*len(filters))
	for _, f := range filters {
		v, err := keyValue(f.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, f.Column, v)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	if err := enc.Encode(parts); err != nil {
		return "", err
	}
	return strings.Join([]string{table, op, strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16)}, KeySeparator), nil
}

func keyValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if valuer, ok := rv.Interface().(driver.Valuer); ok {
		return valuer.Value()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return rv.Interface(), nil
}

func tablePrefix(table string) string {
	return table + KeySeparator
}
