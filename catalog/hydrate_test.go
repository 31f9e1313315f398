package catalog

import (
	"database/sql"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCoerceValue(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		val    any
		target reflect.Type
		want   any
	}{
		{"int64 to int32", int64(12), reflect.TypeFor[int32](), int32(12)},
		{"bytes to int64", []byte("42"), reflect.TypeFor[int64](), int64(42)},
		{"string to uint", "7", reflect.TypeFor[uint](), uint(7)},
		{"int64 to bool", int64(1), reflect.TypeFor[bool](), true},
		{"bytes to bool", []byte("false"), reflect.TypeFor[bool](), false},
		{"bytes to float", []byte("2.5"), reflect.TypeFor[float64](), 2.5},
		{"bytes to string", []byte("hi"), reflect.TypeFor[string](), "hi"},
		{"int64 to string", int64(9), reflect.TypeFor[string](), "9"},
		{"text to time", "2024-03-01 12:30:00", reflect.TypeFor[time.Time](), when},
		{"rfc3339 to time", "2024-03-01T12:30:00Z", reflect.TypeFor[time.Time](), when},
		{"string to decimal", "19.99", reflect.TypeFor[decimal.Decimal](), decimal.RequireFromString("19.99")},
		{"float to decimal", 1.5, reflect.TypeFor[decimal.Decimal](), decimal.RequireFromString("1.5")},
		{"string to null string", "x", reflect.TypeFor[sql.NullString](), sql.NullString{String: "x", Valid: true}},
		{
			"text to uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", reflect.TypeFor[uuid.UUID](),
			uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.val, tt.target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch want := tt.want.(type) {
			case decimal.Decimal:
				if !got.Interface().(decimal.Decimal).Equal(want) {
					t.Errorf("got %v, want %v", got.Interface(), want)
				}
			case time.Time:
				if !got.Interface().(time.Time).Equal(want) {
					t.Errorf("got %v, want %v", got.Interface(), want)
				}
			default:
				if !reflect.DeepEqual(got.Interface(), tt.want) {
					t.Errorf("got %#v, want %#v", got.Interface(), tt.want)
				}
			}
		})
	}
}

func TestCoerceValue_Errors(t *testing.T) {
	tests := []struct {
		name   string
		val    any
		target reflect.Type
	}{
		{"overflow int8", int64(300), reflect.TypeFor[int8]()},
		{"negative uint", int64(-1), reflect.TypeFor[uint32]()},
		{"bad number", "abc", reflect.TypeFor[int]()},
		{"bad time", "yesterday", reflect.TypeFor[time.Time]()},
		{"bool from float", 1.5, reflect.TypeFor[bool]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := coerceValue(tt.val, tt.target); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSetColumn_Nullable(t *testing.T) {
	info, err := ExtractEntityInfo(reflect.TypeFor[Customer](), EntityConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	email, _ := info.Column("Email")

	var c Customer
	field := reflect.ValueOf(&c).Elem().Field(email.FieldIndex)
	if err := setColumn(field, email, []byte("a@b.c")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Email == nil || *c.Email != "a@b.c" {
		t.Errorf("Email = %v", c.Email)
	}
	if err := setColumn(field, email, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Email == nil {
		t.Error("nil value must leave the field untouched")
	}
}

func TestHydrateRow(t *testing.T) {
	info, err := ExtractEntityInfo(reflect.TypeFor[Order](), EntityConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, _ := info.Column("OrderID")
	total, _ := info.Column("Total")
	placed, _ := info.Column("PlacedAt")

	obj := reflect.New(info.GoType)
	cols := []*ColumnInfo{id, nil, total, placed}
	vals := []any{int64(7), "ignored", []byte("12.50"), nil}
	if err := hydrateRow(info, obj, cols, vals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := obj.Interface().(*Order)
	if o.OrderID != 7 || !o.Total.Equal(decimal.RequireFromString("12.5")) || !o.PlacedAt.IsZero() {
		t.Errorf("hydrated %+v", o)
	}

	err = hydrateRow(info, reflect.New(info.GoType), []*ColumnInfo{id}, []any{"seven"})
	var he *HydrationError
	if !errors.As(err, &he) || he.Field != "OrderID" || he.TypeName != "Order" {
		t.Errorf("expected HydrationError for OrderID, got %v", err)
	}
}

func TestIdentityKey(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	seven := int32(7)
	tests := []struct {
		name   string
		val    any
		want   any
		wantOK bool
	}{
		{"nil", nil, nil, false},
		{"zero int", int64(0), nil, false},
		{"empty string", "", nil, false},
		{"nil pointer", (*int)(nil), nil, false},
		{"int", 7, int64(7), true},
		{"int32 pointer", &seven, int64(7), true},
		{"uint16", uint16(7), int64(7), true},
		{"integral float", float64(7), int64(7), true},
		{"fractional float", 7.5, 7.5, true},
		{"string", "007", "007", true},
		{"bytes", []byte("abc"), "abc", true},
		{"uuid", u, u.String(), true},
		{"decimal", decimal.NewFromInt(3), "3", true},
		{"null int valid", sql.NullInt64{Int64: 7, Valid: true}, int64(7), true},
		{"null int invalid", sql.NullInt64{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := identityKey(tt.val)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("key = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBindValue(t *testing.T) {
	name := "x"
	var none *string
	tests := []struct {
		name string
		val  any
		want any
	}{
		{"nil pointer", none, nil},
		{"pointer", &name, "x"},
		{"zero time", time.Time{}, nil},
		{"min int32", int32(math.MinInt32), nil},
		{"min int64", int64(math.MinInt64), nil},
		{"min int", math.MinInt, nil},
		{"int32", int32(5), int32(5)},
		{"zero int", 0, 0},
		{"string", "s", "s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bindValue(tt.val); got != tt.want {
				t.Errorf("bindValue(%v) = %#v, want %#v", tt.val, got, tt.want)
			}
		})
	}
}
