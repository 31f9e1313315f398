package sqlgen

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// splitName splits a SQL identifier into words on underscores, hyphens,
// spaces and camel-case boundaries. "order_lines", "OrderLines" and
// "HTTPLogs" become [order lines], [Order Lines] and [HTTP Logs].
func splitName(name string) []string {
	var words []string
	for _, chunk := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	}) {
		runes := []rune(chunk)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			lowerToUpper := (unicode.IsLower(prev) || unicode.IsDigit(prev)) && unicode.IsUpper(cur)
			acronymEnd := unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(next)
			if lowerToUpper || acronymEnd {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
		words = append(words, string(runes[start:]))
	}
	return words
}

// ToPascalCase transforms a snake_case, kebab-case or camelCase identifier
// into PascalCase.
func ToPascalCase(name string) string {
	var b strings.Builder
	for _, part := range splitName(name) {
		runes := []rune(part)
		b.WriteRune(unicode.ToUpper(runes[0]))
		for _, r := range runes[1:] {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ToSnakeCase transforms an identifier into lower snake_case.
func ToSnakeCase(name string) string {
	parts := splitName(name)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "_")
}

// CommonAcronyms defines a set of common abbreviations that should be fully
// uppercased when generating Go names.
var CommonAcronyms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"uuid": "UUID",
	"api":  "API",
	"http": "HTTP",
	"ip":   "IP",
	"sku":  "SKU",
	"json": "JSON",
	"sql":  "SQL",
}

// ToPascalCaseAcronyms transforms a string into PascalCase while preserving
// the casing of common Go acronyms.
func ToPascalCaseAcronyms(name string) string {
	var b strings.Builder
	for _, part := range splitName(name) {
		lower := strings.ToLower(part)
		if acronym, ok := CommonAcronyms[lower]; ok {
			b.WriteString(acronym)
			continue
		}
		runes := []rune(lower)
		b.WriteRune(unicode.ToUpper(runes[0]))
		for _, r := range runes[1:] {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Singular returns name with its last word lower-cased and singularized:
// "order_lines" becomes "order_line".
func Singular(name string) string {
	return inflectLast(name, inflect.Singularize)
}

// Plural returns name with its last word lower-cased and pluralized.
func Plural(name string) string {
	return inflectLast(name, inflect.Pluralize)
}

func inflectLast(name string, fn func(string) string) string {
	parts := splitName(name)
	if len(parts) == 0 {
		return name
	}
	last := parts[len(parts)-1]
	if _, ok := CommonAcronyms[strings.ToLower(last)]; ok {
		return strings.Join(parts, "_")
	}
	parts[len(parts)-1] = fn(strings.ToLower(last))
	return strings.Join(parts, "_")
}

// trimKeySuffix strips a trailing "id" word from a foreign key column:
// "customer_id" and "CustomerID" both become "customer"/"Customer".
// It reports false when nothing remains or there is no such suffix.
func trimKeySuffix(column string) (string, bool) {
	parts := splitName(column)
	if len(parts) < 2 || !strings.EqualFold(parts[len(parts)-1], "id") {
		return "", false
	}
	return strings.Join(parts[:len(parts)-1], "_"), true
}
