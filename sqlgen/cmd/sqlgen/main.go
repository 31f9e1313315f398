// sqlgen generates catalog entity structs from SQL DDL files.
//
// Usage:
//
//	sqlgen -schema schema.sql [-out models_gen.go] [-pkg models] [-acronyms]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CaliLuke/go-catalog/sqlgen"
)

const version = "0.1.0"

func main() {
	schemaFile := flag.String("schema", "", "Path to SQL DDL file (required)")
	outFile := flag.String("out", "", "Output Go file (default: stdout)")
	pkg := flag.String("pkg", "models", "Package name for generated code")
	modulePath := flag.String("catalog", "github.com/CaliLuke/go-catalog/catalog", "Import path of the catalog package")
	acronyms := flag.Bool("acronyms", true, "Apply Go naming conventions for acronyms (ID, URL, etc.)")
	assocs := flag.Bool("associations", true, "Generate association fields from foreign keys")
	versionStr := flag.String("schema-version", "", "Schema version string (included in generated header)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("sqlgen %s\n", version)
		os.Exit(0)
	}

	if *schemaFile == "" {
		fmt.Fprintln(os.Stderr, "error: -schema flag is required")
		flag.Usage()
		os.Exit(1)
	}

	schema, err := sqlgen.ParseSchemaFile(*schemaFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var w *os.File
	if *outFile != "" {
		w, err = os.Create(*outFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating output: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = w.Close() }()
	} else {
		w = os.Stdout
	}

	cfg := sqlgen.RenderConfig{
		PackageName:   *pkg,
		ModulePath:    *modulePath,
		UseAcronyms:   *acronyms,
		SchemaVersion: *versionStr,
		Associations:  *assocs,
	}
	if err := sqlgen.Render(w, schema, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error rendering: %v\n", err)
		os.Exit(1)
	}
}
