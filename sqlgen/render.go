package sqlgen

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"sort"
	"strings"
	"text/template"
)

// RenderConfig specifies the settings for generating Go code from a schema.
type RenderConfig struct {
	// PackageName is the name of the Go package for the generated code.
	PackageName string
	// ModulePath is the import path of the catalog package. The package
	// must be named catalog.
	ModulePath string
	// UseAcronyms, if true, applies Go acronym naming conventions (e.g., 'ID' instead of 'Id').
	UseAcronyms bool
	// SchemaVersion is an optional string included in the generated file header.
	SchemaVersion string
	// Associations, if true, adds pointer and slice fields for foreign keys.
	Associations bool
}

// DefaultConfig returns a standard RenderConfig with sensible defaults.
func DefaultConfig() RenderConfig {
	return RenderConfig{
		PackageName:  "models",
		ModulePath:   "github.com/CaliLuke/go-catalog/catalog",
		UseAcronyms:  true,
		Associations: true,
	}
}

// Render writes gofmt-formatted Go source for every table in schema.
func Render(w io.Writer, schema *Schema, cfg RenderConfig) error {
	if cfg.PackageName == "" {
		cfg.PackageName = "models"
	}
	if cfg.ModulePath == "" {
		cfg.ModulePath = "github.com/CaliLuke/go-catalog/catalog"
	}

	data := &renderData{
		PackageName:   cfg.PackageName,
		SchemaVersion: cfg.SchemaVersion,
	}
	imports := map[string]bool{cfg.ModulePath: true}

	names := typeNames(schema, cfg)
	for i := range schema.Tables {
		ent := buildEntityCtx(&schema.Tables[i], names, cfg)
		for _, f := range ent.Fields {
			if f.Import != "" {
				imports[f.Import] = true
			}
		}
		data.Entities = append(data.Entities, ent)
	}
	if cfg.Associations {
		addAssociations(data.Entities, schema, cfg)
	}

	for path := range imports {
		data.Imports = append(data.Imports, path)
	}
	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := renderTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format generated source: %w", err)
	}
	_, err = w.Write(src)
	return err
}

// --- Template context types ---

type renderData struct {
	PackageName   string
	SchemaVersion string
	Imports       []string
	Entities      []*entityCtx
}

type entityCtx struct {
	GoName string
	Table  string
	Cached bool
	spec   *TableSpec
	Fields []fieldCtx
	taken  map[string]bool
}

type fieldCtx struct {
	GoName string
	GoType string
	Tag    string
	Import string
}

// --- Context builders ---

// typeNames maps lower-cased table names to Go type names. A "@type"
// annotation overrides the singularized table name.
func typeNames(schema *Schema, cfg RenderConfig) map[string]string {
	names := make(map[string]string, len(schema.Tables))
	for _, t := range schema.Tables {
		name := goName(Singular(t.Name), cfg)
		if override := t.Annotations["type"]; override != "" {
			name = override
		}
		names[strings.ToLower(t.Name)] = name
	}
	return names
}

func buildEntityCtx(t *TableSpec, names map[string]string, cfg RenderConfig) *entityCtx {
	_, cached := t.Annotations["cached"]
	ctx := &entityCtx{
		GoName: names[strings.ToLower(t.Name)],
		Table:  t.Name,
		Cached: cached,
		spec:   t,
		taken:  make(map[string]bool),
	}
	for i := range t.Columns {
		f := buildFieldCtx(t, &t.Columns[i], cfg)
		ctx.taken[f.GoName] = true
		ctx.Fields = append(ctx.Fields, f)
	}
	return ctx
}

func buildFieldCtx(t *TableSpec, col *ColumnSpec, cfg RenderConfig) fieldCtx {
	goType, imp := sqlTypeToGo(col)
	f := fieldCtx{
		GoName: goName(col.Name, cfg),
		Import: imp,
	}

	tagParts := []string{col.Name}
	if t.Identity() != "" && strings.EqualFold(t.Identity(), col.Name) {
		tagParts = append(tagParts, "id")
	}
	f.Tag = fmt.Sprintf("`catalog:\"%s\"`", strings.Join(tagParts, ","))

	if isNullable(t, col) && goType != "[]byte" {
		f.GoType = "*" + goType
	} else {
		f.GoType = goType
	}
	return f
}

// addAssociations adds a single association to every table holding a
// foreign key onto a single-column primary key, and the matching
// collection to the referenced table.
func addAssociations(entities []*entityCtx, schema *Schema, cfg RenderConfig) {
	byTable := make(map[string]*entityCtx, len(entities))
	for _, e := range entities {
		byTable[strings.ToLower(e.Table)] = e
	}

	type reverse struct {
		child  *entityCtx
		column string
	}
	collections := make(map[*entityCtx][]reverse)

	for _, child := range entities {
		for _, fk := range child.spec.ForeignKeys {
			if len(fk.Columns) != 1 {
				continue
			}
			target, ok := schema.Table(fk.RefTable)
			if !ok || target.Identity() == "" {
				continue
			}
			if len(fk.RefColumns) == 1 && !strings.EqualFold(fk.RefColumns[0], target.Identity()) {
				continue
			}
			parent := byTable[strings.ToLower(target.Name)]
			column := fk.Columns[0]

			base, ok := trimKeySuffix(column)
			name := goName(base, cfg)
			if !ok || child.taken[name] {
				name = parent.GoName
			}
			name = child.reserve(name)
			child.Fields = append(child.Fields, fieldCtx{
				GoName: name,
				GoType: "*" + parent.GoName,
				Tag:    fmt.Sprintf("`catalog:\",fk=%s\"`", column),
			})
			collections[parent] = append(collections[parent], reverse{child: child, column: column})
		}
	}

	for _, parent := range entities {
		refs := collections[parent]
		counts := make(map[*entityCtx]int)
		for _, r := range refs {
			counts[r.child]++
		}
		for _, r := range refs {
			name := goName(Plural(r.child.GoName), cfg)
			if counts[r.child] > 1 {
				if base, ok := trimKeySuffix(r.column); ok {
					name = goName(base, cfg) + name
				}
			}
			name = parent.reserve(name)
			parent.Fields = append(parent.Fields, fieldCtx{
				GoName: name,
				GoType: "[]*" + r.child.GoName,
				Tag:    fmt.Sprintf("`catalog:\",fk=%s\"`", r.column),
			})
		}
	}
}

// reserve returns name, or name with a numeric suffix when the entity
// already has a field called name.
func (e *entityCtx) reserve(name string) string {
	candidate := name
	for i := 2; e.taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s%d", name, i)
	}
	e.taken[candidate] = true
	return candidate
}

// isNullable returns true if the column may hold NULL.
func isNullable(t *TableSpec, col *ColumnSpec) bool {
	return !col.NotNull && !t.IsPrimaryKey(col.Name)
}

func goName(name string, cfg RenderConfig) string {
	if cfg.UseAcronyms {
		return ToPascalCaseAcronyms(name)
	}
	return ToPascalCase(name)
}

// sqlTypeToGo maps a declared column type to a Go type and the import it
// needs, if any. Unknown types map to string.
func sqlTypeToGo(col *ColumnSpec) (goType, importPath string) {
	word := col.Type
	if i := strings.IndexByte(word, ' '); i > 0 {
		word = word[:i]
	}
	switch word {
	case "INTEGER", "INT", "BIGINT", "INT8", "SERIAL", "BIGSERIAL":
		return "int64", ""
	case "SMALLINT", "MEDIUMINT", "INT2", "INT4", "SMALLSERIAL":
		return "int32", ""
	case "TINYINT":
		if len(col.Size) == 1 && col.Size[0] == "1" {
			return "bool", ""
		}
		return "int32", ""
	case "BOOLEAN", "BOOL", "BIT":
		return "bool", ""
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE":
		return "float64", ""
	case "DECIMAL", "NUMERIC", "MONEY":
		return "decimal.Decimal", "github.com/shopspring/decimal"
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME":
		return "time.Time", "time"
	case "BLOB", "BYTEA", "BINARY", "VARBINARY", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB":
		return "[]byte", ""
	case "UUID":
		return "uuid.UUID", "github.com/google/uuid"
	default:
		return "string", ""
	}
}

// --- Go template ---

var renderTemplate = template.Must(template.New("models").Parse(`// Code generated by sqlgen. DO NOT EDIT.
{{- if .SchemaVersion}}
// Schema version: {{.SchemaVersion}}
{{- end}}

package {{.PackageName}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{range .Entities}}
// {{.GoName}} maps table {{printf "%q" .Table}}.
type {{.GoName}} struct {
{{- range .Fields}}
	{{.GoName}} {{.GoType}} {{.Tag}}
{{- end}}
}

// TableName returns the table {{.GoName}} is stored in.
func ({{.GoName}}) TableName() string { return {{printf "%q" .Table}} }
{{end}}
// RegisterAll registers every generated entity with r.
func RegisterAll(r *catalog.Registry) error {
{{- range .Entities}}
	if err := catalog.RegisterWith[{{.GoName}}](r{{if .Cached}}, catalog.EntityConfig{Cached: true}{{end}}); err != nil {
		return err
	}
{{- end}}
	return nil
}
`))
