// Package catalog provides parsing of 'catalog' struct tags.
package catalog

import (
	"fmt"
	"strings"
)

// TagName is the struct tag key read by the metadata builder.
const TagName = "catalog"

// FieldTag is the parsed form of a `catalog` struct tag.
//
//	OrderID    int       `catalog:"order_id,id"`
//	Notes      string    `catalog:"-"`
//	Customer   *Customer `catalog:",fk=BuyerID"`
type FieldTag struct {
	// Column renames the column. Empty keeps the field name.
	Column string
	// Identity flags the field as the identity column.
	Identity bool
	// ForeignKey overrides the key column of an association.
	ForeignKey string
	// Skip excludes the field from mapping.
	Skip bool
}

// ParseTag parses the content of a `catalog` struct tag.
func ParseTag(tag string) (FieldTag, error) {
	if tag == "" || tag == "-" {
		return FieldTag{Skip: tag == "-"}, nil
	}

	ft := FieldTag{}
	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "id":
			ft.Identity = true
		case part == "-":
			ft.Skip = true
		case strings.HasPrefix(part, "fk="):
			ft.ForeignKey = strings.TrimPrefix(part, "fk=")
			if ft.ForeignKey == "" {
				return FieldTag{}, fmt.Errorf("empty foreign key in tag %q", tag)
			}
		case i == 0 && !strings.Contains(part, "="):
			ft.Column = part
		default:
			return FieldTag{}, fmt.Errorf("unknown tag option: %q", part)
		}
	}
	return ft, nil
}
