package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CaliLuke/go-catalog/dialect"
	"github.com/CaliLuke/go-catalog/dialect/sqlite"
)

// --- Shop model: orders, customers, lines, and a cached country table ---

type Country struct {
	CountryID int64
	Code      string
}

type Customer struct {
	CustomerID int64
	Name       string
	Email      *string
	CountryID  int64
	Country    *Country
	Orders     []*Order
}

type Order struct {
	OrderID    int64
	CustomerID int64
	Total      decimal.Decimal
	PlacedAt   time.Time
	Note       string `catalog:"-"`
	Customer   *Customer
	Lines      []*OrderLine
}

type OrderLine struct {
	OrderLineID int64
	OrderID     int64
	Sku         string
	Qty         int32
}

// --- Library model: a minimal two-type cycle ---

type Author struct {
	AuthorID int64
	Name     string
	Books    []*Book
}

type Book struct {
	BookID   int64
	AuthorID int64
	Title    string
	Author   *Author
}

// Audit has no identity field.
type Audit struct {
	Message string
}

func newShopRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, err := range []error{
		RegisterWith[Country](r, EntityConfig{Cached: true}),
		RegisterWith[Customer](r),
		RegisterWith[Order](r),
		RegisterWith[OrderLine](r),
		RegisterWith[Author](r),
		RegisterWith[Book](r),
	} {
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return r
}

// newPlanner returns a Cataloger suitable for planning only.
func newPlanner(t *testing.T) *Cataloger {
	t.Helper()
	return New(nil, sqlite.New(dialect.Options{}), WithRegistry(newShopRegistry(t)))
}

func mustInfo[T any](t *testing.T, c *Cataloger) *EntityInfo {
	t.Helper()
	info, err := entityFor[T](c)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	return info
}
