// Package gocatalog is a reflection-driven object catalog for relational
// databases.
//
// Plain Go structs are described once by their fields and `catalog` struct
// tags. A fetch then loads a root entity together with its association
// graph using one IN-subquery statement per association path, and wires
// the results into shared object pointers.
//
// The module is organized into these packages:
//
//   - [github.com/CaliLuke/go-catalog/catalog]: metadata registry, fetch planner, materializer, CRUD
//   - [github.com/CaliLuke/go-catalog/ast]: SQL statement nodes and compiler
//   - [github.com/CaliLuke/go-catalog/dialect]: per-database quoting, placeholders and error classification
//   - [github.com/CaliLuke/go-catalog/readcache]: read-through cache in front of a Cataloger
//   - [github.com/CaliLuke/go-catalog/sqlgen]: code generator: SQL DDL to catalog structs
//
// The catalog package tests run against sqlmock and an embedded SQLite
// database. The PostgreSQL tests start a container and are skipped with
// -short.
package gocatalog
