// Package catalog provides mechanisms for hydrating Go structs from
// database rows.
package catalog

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when a driver reports a time as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// hydrateRow populates the columns of obj (a pointer to struct) from one
// scanned row. cols[i] is nil for result columns the entity does not map.
// NULL leaves the field at its zero value.
func hydrateRow(info *EntityInfo, obj reflect.Value, cols []*ColumnInfo, vals []any) error {
	v := obj.Elem()
	for i, col := range cols {
		if col == nil || vals[i] == nil {
			continue
		}
		if err := setColumn(v.Field(col.FieldIndex), col, vals[i]); err != nil {
			return &HydrationError{TypeName: info.Name(), Field: col.FieldName, Cause: err}
		}
	}
	return nil
}

func setColumn(field reflect.Value, col *ColumnInfo, val any) error {
	if val == nil {
		return nil
	}
	target := col.Type
	if col.Nullable {
		target = target.Elem()
	}
	converted, err := coerceValue(val, target)
	if err != nil {
		return err
	}
	if col.Nullable {
		ptr := reflect.New(target)
		ptr.Elem().Set(converted)
		field.Set(ptr)
		return nil
	}
	field.Set(converted)
	return nil
}

// coerceValue converts a driver value into a value assignable to target.
func coerceValue(val any, target reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(target).Implements(scannerType) {
		ptr := reflect.New(target)
		if err := ptr.Interface().(sql.Scanner).Scan(val); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	rv := reflect.ValueOf(val)
	if rv.Type() == target {
		return rv, nil
	}

	out := reflect.New(target).Elem()
	switch {
	case target == timeType:
		t, err := coerceToTime(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Set(reflect.ValueOf(t))
		return out, nil
	case target == bytesType:
		switch v := val.(type) {
		case []byte:
			out.SetBytes(append([]byte(nil), v...))
		case string:
			out.SetBytes([]byte(v))
		default:
			return reflect.Value{}, fmt.Errorf("cannot coerce %T to []byte", val)
		}
		return out, nil
	}

	switch target.Kind() {
	case reflect.String:
		switch v := val.(type) {
		case string:
			out.SetString(v)
		case []byte:
			out.SetString(string(v))
		case int64:
			out.SetString(strconv.FormatInt(v, 10))
		case float64:
			out.SetString(strconv.FormatFloat(v, 'f', -1, 64))
		case time.Time:
			out.SetString(v.Format(time.RFC3339Nano))
		default:
			out.SetString(fmt.Sprintf("%v", val))
		}
	case reflect.Bool:
		b, err := coerceToBool(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := coerceToInt64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, target)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := coerceToInt64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, target)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := coerceToFloat64(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	default:
		if rv.Type().ConvertibleTo(target) {
			return rv.Convert(target), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot coerce %T to %s", val, target)
	}
	return out, nil
}

func coerceToInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to integer", val)
	}
}

func coerceToFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", val)
	}
}

func coerceToBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("expected bool, got %T", val)
	}
}

func coerceToTime(val any) (time.Time, error) {
	var s string
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot coerce %T to time.Time", val)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time string: %q", s)
}

// identityKey normalizes an identity or key value so that the same row
// compares equal whichever driver type or Go field type produced it.
// ok is false for NULL and zero values, which reference nothing.
func identityKey(val any) (key any, ok bool) {
	if val == nil {
		return nil, false
	}
	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.IsZero() {
		return nil, false
	}
	if valuer, isValuer := rv.Interface().(driver.Valuer); isValuer && rv.Type() != timeType {
		dv, err := valuer.Value()
		if err != nil || dv == nil {
			return nil, false
		}
		return identityKey(dv)
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n <= math.MaxInt64 {
			return int64(n), true
		}
		return n, true
	case reflect.String:
		return rv.String(), true
	case reflect.Slice:
		if b, isBytes := rv.Interface().([]byte); isBytes {
			return identityKey(string(b))
		}
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), true
		}
		return f, true
	}
	if rv.Type().Comparable() {
		return rv.Interface(), true
	}
	return fmt.Sprint(rv.Interface()), true
}
