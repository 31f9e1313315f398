package sqlgen

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// --- Participle grammar structs ---
// These cover the portable subset of CREATE TABLE shared by SQLite,
// PostgreSQL and MySQL.

// DDLFile is the top-level grammar: a sequence of CREATE TABLE statements.
type DDLFile struct {
	Tables []*CreateTable `parser:"( @@ ';'* )*"`
}

// CreateTable parses: CREATE TABLE [IF NOT EXISTS] name ( element [, element]* )
type CreateTable struct {
	IfNotExists bool            `parser:"'CREATE' 'TABLE' @( 'IF' 'NOT' 'EXISTS' )?"`
	Name        string          `parser:"@( Ident | QuotedIdent )"`
	Elements    []*TableElement `parser:"'(' @@ ( ',' @@ )* ')'"`
}

// TableElement is a column definition or a table constraint.
type TableElement struct {
	Constraint string       `parser:"( 'CONSTRAINT' @( Ident | QuotedIdent ) )?"`
	Body       *ElementBody `parser:"@@"`
}

// ElementBody is one of: PRIMARY KEY (...), FOREIGN KEY ..., UNIQUE (...), CHECK (...) or a column.
type ElementBody struct {
	PrimaryKey *NameList      `parser:"  'PRIMARY' 'KEY' @@"`
	ForeignKey *ForeignKeyDef `parser:"| @@"`
	Unique     *NameList      `parser:"| 'UNIQUE' @@"`
	Check      *Parens        `parser:"| 'CHECK' @@"`
	Column     *ColumnDef     `parser:"| @@"`
}

// NameList parses: ( name [, name]* )
type NameList struct {
	Names []string `parser:"'(' @( Ident | QuotedIdent ) ( ',' @( Ident | QuotedIdent ) )* ')'"`
}

// ForeignKeyDef parses: FOREIGN KEY (cols) REFERENCES table [(cols)] [actions]
type ForeignKeyDef struct {
	Columns   *NameList     `parser:"'FOREIGN' 'KEY' @@"`
	Reference *ReferenceDef `parser:"@@"`
}

// ReferenceDef parses: REFERENCES table [(cols)] [ON DELETE|UPDATE action]*
type ReferenceDef struct {
	Table   string       `parser:"'REFERENCES' @( Ident | QuotedIdent )"`
	Columns *NameList    `parser:"@@?"`
	Actions []*RefAction `parser:"@@*"`
}

// RefAction parses: ON DELETE|UPDATE CASCADE | RESTRICT | SET NULL | SET DEFAULT | NO ACTION
type RefAction struct {
	Event  string   `parser:"'ON' @( 'DELETE' | 'UPDATE' )"`
	Action []string `parser:"@Ident ( @Ident | @'NULL' | @'DEFAULT' )?"`
}

// ColumnDef parses: name type [constraint]*
type ColumnDef struct {
	Name        string              `parser:"@( Ident | QuotedIdent )"`
	Type        *TypeName           `parser:"@@"`
	Constraints []*ColumnConstraint `parser:"@@*"`
}

// TypeName parses: word [word]* [( n [, n]* )], e.g. DOUBLE PRECISION or VARCHAR(255).
type TypeName struct {
	Words []string `parser:"@Ident+"`
	Args  []string `parser:"( '(' @Number ( ',' @Number )* ')' )?"`
}

// ColumnConstraint is one inline column constraint.
type ColumnConstraint struct {
	Name          string        `parser:"( 'CONSTRAINT' @( Ident | QuotedIdent ) )?"`
	NotNull       bool          `parser:"(  @( 'NOT' 'NULL' )"`
	Null          bool          `parser:" | @'NULL'"`
	PrimaryKey    bool          `parser:" | @( 'PRIMARY' 'KEY' ) ( 'ASC' | 'DESC' )?"`
	AutoIncrement bool          `parser:" | @( 'AUTOINCREMENT' | 'AUTO_INCREMENT' )"`
	Unique        bool          `parser:" | @'UNIQUE'"`
	Default       *DefaultValue `parser:" | 'DEFAULT' @@"`
	Check         *Parens       `parser:" | 'CHECK' @@"`
	References    *ReferenceDef `parser:" | @@ )"`
}

// DefaultValue parses a literal, an identifier such as CURRENT_TIMESTAMP,
// a call such as now(), or a parenthesized expression.
type DefaultValue struct {
	Expr  *Parens `parser:"  @@"`
	Value string  `parser:"| @( Number | String | Ident | 'NULL' )"`
	Call  *Parens `parser:"  @@?"`
}

// Parens captures a balanced parenthesized token sequence.
type Parens struct {
	Tokens []*ParenTok `parser:"'(' @@* ')'"`
}

// ParenTok is a nested group or any single token other than a parenthesis.
type ParenTok struct {
	Nested *Parens `parser:"  @@"`
	Tok    string  `parser:"| @( Ident | QuotedIdent | Number | String | Keyword | Operator | ',' )"`
}

var ddlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*[\s\S]*?\*/`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)\b(CREATE|TABLE|IF|NOT|EXISTS|PRIMARY|KEY|FOREIGN|REFERENCES|UNIQUE|NULL|DEFAULT|AUTOINCREMENT|AUTO_INCREMENT|CONSTRAINT|CHECK|ON|DELETE|UPDATE|ASC|DESC)\b`},
	{Name: "QuotedIdent", Pattern: "\"[^\"]+\"|`[^`]+`|\\[[^\\]]+\\]"},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Number", Pattern: `[-+]?[0-9]+(?:\.[0-9]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
	{Name: "Operator", Pattern: `<>|!=|>=|<=|\|\||::|[-+*/%<>=.]`},
	{Name: "Punct", Pattern: `[(),;]`},
})

var ddlParser = participle.MustBuild[DDLFile](
	participle.Lexer(ddlLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(3),
)

// --- Entry points ---

// ParseSchema parses DDL text into a Schema. Statements other than
// CREATE TABLE are rejected.
func ParseSchema(input string) (*Schema, error) {
	file, err := ddlParser.ParseString("schema.sql", input)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	schema := convertFile(file)
	annots := ExtractAnnotations(input)
	for i := range schema.Tables {
		if a, ok := annots[strings.ToLower(schema.Tables[i].Name)]; ok {
			schema.Tables[i].Annotations = a
		}
	}
	return schema, nil
}

// ParseSchemaFile reads a DDL file from path and parses it.
func ParseSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(string(data))
}

// --- AST conversion ---

func convertFile(file *DDLFile) *Schema {
	schema := &Schema{}
	for _, ct := range file.Tables {
		schema.Tables = append(schema.Tables, convertTable(ct))
	}
	return schema
}

func convertTable(ct *CreateTable) TableSpec {
	t := TableSpec{Name: unquote(ct.Name)}
	var uniques [][]string

	for _, el := range ct.Elements {
		b := el.Body
		switch {
		case b.PrimaryKey != nil:
			t.PrimaryKey = names(b.PrimaryKey)
		case b.ForeignKey != nil:
			t.ForeignKeys = append(t.ForeignKeys, ForeignKeySpec{
				Columns:    names(b.ForeignKey.Columns),
				RefTable:   unquote(b.ForeignKey.Reference.Table),
				RefColumns: names(b.ForeignKey.Reference.Columns),
			})
		case b.Unique != nil:
			uniques = append(uniques, names(b.Unique))
		case b.Column != nil:
			col, pk, ref := convertColumn(b.Column)
			if pk {
				t.PrimaryKey = []string{col.Name}
			}
			if ref != nil {
				t.ForeignKeys = append(t.ForeignKeys, *ref)
			}
			t.Columns = append(t.Columns, col)
		}
	}

	for i := range t.Columns {
		if t.IsPrimaryKey(t.Columns[i].Name) {
			t.Columns[i].NotNull = true
		}
	}
	for _, u := range uniques {
		if len(u) != 1 {
			continue
		}
		if col, ok := t.Column(u[0]); ok {
			col.Unique = true
		}
	}
	return t
}

func convertColumn(cd *ColumnDef) (ColumnSpec, bool, *ForeignKeySpec) {
	col := ColumnSpec{
		Name: unquote(cd.Name),
		Type: strings.ToUpper(strings.Join(cd.Type.Words, " ")),
		Size: cd.Type.Args,
	}
	var pk bool
	var ref *ForeignKeySpec
	for _, c := range cd.Constraints {
		switch {
		case c.NotNull:
			col.NotNull = true
		case c.PrimaryKey:
			pk = true
		case c.AutoIncrement:
			col.AutoIncrement = true
		case c.Unique:
			col.Unique = true
		case c.Default != nil:
			col.Default = c.Default.String()
		case c.References != nil:
			ref = &ForeignKeySpec{
				Columns:    []string{col.Name},
				RefTable:   unquote(c.References.Table),
				RefColumns: names(c.References.Columns),
			}
		}
	}
	return col, pk, ref
}

// String renders the default expression back to SQL text.
func (d *DefaultValue) String() string {
	switch {
	case d.Expr != nil:
		return d.Expr.String()
	case d.Call != nil:
		return d.Value + d.Call.String()
	default:
		return d.Value
	}
}

// String renders the group back to SQL text with single spaces.
func (p *Parens) String() string {
	parts := make([]string, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		if t.Nested != nil {
			parts = append(parts, t.Nested.String())
			continue
		}
		parts = append(parts, t.Tok)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func names(l *NameList) []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.Names))
	for i, n := range l.Names {
		out[i] = unquote(n)
	}
	return out
}

// unquote removes "", `` or [] identifier quoting.
func unquote(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// --- Annotation extraction ---

var (
	annotRe = regexp.MustCompile(`^--\s*@(\w+)(?:\(([^)]*)\)|\s+(.+))?$`)
	tableRe = regexp.MustCompile("(?i)^create\\s+table\\s+(?:if\\s+not\\s+exists\\s+)?[\"`\\[]?([\\w$]+)")
)

// ExtractAnnotations parses comment annotations of the form "-- @key value"
// directly above a CREATE TABLE statement. It returns a map of lower-cased
// table name to annotations.
//
//	-- @cached
//	-- @type Region
//	CREATE TABLE regions (...);
func ExtractAnnotations(input string) map[string]map[string]string {
	result := make(map[string]map[string]string)
	var pending map[string]string

	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := annotRe.FindStringSubmatch(trimmed); m != nil {
			if pending == nil {
				pending = make(map[string]string)
			}
			val := m[2]
			if val == "" {
				val = m[3]
			}
			pending[m[1]] = strings.TrimSpace(val)
			continue
		}

		if pending != nil {
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			if m := tableRe.FindStringSubmatch(trimmed); m != nil {
				result[strings.ToLower(m[1])] = pending
			}
			pending = nil
		}
	}
	return result
}
