package ast

import (
	"reflect"
	"strings"
	"testing"
)

func TestCompiler_Select(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name     string
		node     QueryNode
		want     string
		wantArgs []any
	}{
		{
			name: "all rows",
			node: Select("Customer", "CustomerID", "Name"),
			want: `SELECT "CustomerID", "Name" FROM "Customer"`,
		},
		{
			name:     "single equality",
			node:     Select("Order", "OrderID").Filter(Eq("OrderID", 7)),
			want:     `SELECT "OrderID" FROM "Order" WHERE "OrderID" = ?`,
			wantArgs: []any{7},
		},
		{
			name:     "conjunction",
			node:     Select("Order", "OrderID").Filter(Eq("CustomerID", 3)).Filter(Eq("Status", "open")),
			want:     `SELECT "OrderID" FROM "Order" WHERE "CustomerID" = ? AND "Status" = ?`,
			wantArgs: []any{3, "open"},
		},
		{
			name: "null equality",
			node: Select("Order", "OrderID").Filter(Eq("ShippedAt", nil)),
			want: `SELECT "OrderID" FROM "Order" WHERE "ShippedAt" IS NULL`,
		},
		{
			name: "nested subquery",
			node: Select("Order", "OrderID", "CustomerID").Filter(
				In("CustomerID", Select("Customer", "CustomerID").Filter(
					In("CustomerID", Select("Order", "CustomerID").Filter(Eq("OrderID", 7)))))),
			want: `SELECT "OrderID", "CustomerID" FROM "Order" WHERE "CustomerID" IN ` +
				`(SELECT "CustomerID" FROM "Customer" WHERE "CustomerID" IN ` +
				`(SELECT "CustomerID" FROM "Order" WHERE "OrderID" = ?))`,
			wantArgs: []any{7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compile(tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.SQL != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got.SQL, tt.want)
			}
			if !reflect.DeepEqual(got.Args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", got.Args, tt.wantArgs)
			}
		})
	}
}

func TestCompiler_Dialects(t *testing.T) {
	pg := &Compiler{Placeholder: Dollar}
	got, err := pg.Compile(Update("Order", Eq("OrderID", 7), Set("Status", "shipped"), Set("Total", 12)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `UPDATE "Order" SET "Status" = $1, "Total" = $2 WHERE "OrderID" = $3`
	if got.SQL != want {
		t.Errorf("got %q, want %q", got.SQL, want)
	}

	my := &Compiler{Quote: Backtick}
	got, err = my.Compile(Delete("Order", Eq("OrderID", 7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "DELETE FROM `Order` WHERE `OrderID` = ?" {
		t.Errorf("got %q", got.SQL)
	}
}

func TestCompiler_Insert(t *testing.T) {
	c := &Compiler{Placeholder: Dollar}

	stmt := Insert("Customer", []string{"Name", "Email"}, []any{"Ada", nil})
	stmt.Returning = "CustomerID"
	got, err := c.Compile(stmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `INSERT INTO "Customer" ("Name", "Email") VALUES ($1, $2) RETURNING "CustomerID"`
	if got.SQL != want {
		t.Errorf("got %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != "Ada" || got.Args[1] != nil {
		t.Errorf("args = %v", got.Args)
	}

	got, err = c.Compile(Insert("Counter", nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != `INSERT INTO "Counter" DEFAULT VALUES` {
		t.Errorf("got %q", got.SQL)
	}

	my := &Compiler{Quote: Backtick, EmptyInsert: "() VALUES ()"}
	got, err = my.Compile(Insert("Counter", nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "INSERT INTO `Counter` () VALUES ()" {
		t.Errorf("got %q", got.SQL)
	}
}

func TestCompiler_Call(t *testing.T) {
	got, err := (&Compiler{Quote: Backtick}).Compile(Call("orders_for", CallProcedure, 3, "open"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "CALL `orders_for`(?, ?)" {
		t.Errorf("got %q", got.SQL)
	}

	got, err = (&Compiler{Placeholder: Dollar}).Compile(Call("orders_for", CallFunction, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != `SELECT * FROM "orders_for"($1)` {
		t.Errorf("got %q", got.SQL)
	}
}

func TestCompiler_Batch(t *testing.T) {
	c := &Compiler{Placeholder: Dollar}
	got, err := c.CompileBatch([]QueryNode{
		Select("Order", "OrderID").Filter(Eq("OrderID", 7)),
		Select("Customer", "CustomerID").Filter(In("CustomerID", Select("Order", "CustomerID").Filter(Eq("OrderID", 7)))),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := strings.Split(got.SQL, ";\n")
	if len(parts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(parts), got.SQL)
	}
	if !strings.HasSuffix(parts[1], `"OrderID" = $2)`) {
		t.Errorf("numbering did not continue across statements: %q", parts[1])
	}
	if len(got.Args) != 2 {
		t.Errorf("args = %v", got.Args)
	}
}

func TestCompiler_Errors(t *testing.T) {
	c := &Compiler{}
	tests := []struct {
		name string
		node QueryNode
		want string
	}{
		{"select without table", SelectStatement{Columns: []string{"a"}}, "table name is required"},
		{"select without columns", Select("t"), "no columns"},
		{"insert mismatch", Insert("t", []string{"a", "b"}, []any{1}), "2 columns but 1 values"},
		{"update without set", Update("t", Eq("id", 1)), "no assignments"},
		{"delete without where", Delete("t", nil), "where clause is required"},
		{"wide subquery", Select("t", "a").Filter(In("a", Select("u", "x", "y"))), "must project one column"},
		{"unknown node", Assignment{}, "unknown node type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.node)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestQuoting(t *testing.T) {
	if got := DoubleQuote(`we"ird`); got != `"we""ird"` {
		t.Errorf("DoubleQuote = %s", got)
	}
	if got := Backtick("we`ird"); got != "`we``ird`" {
		t.Errorf("Backtick = %s", got)
	}
}
