// Package sqlschema provides SQL settings of entity tables.
//
// Annotations are attached to entities and merged in order, later
// annotations overriding earlier ones:
//
//	schema.Entity{
//		Name: "Booking",
//		Annotations: []sqlschema.Annotation{
//			sqlschema.Table("bookings"),
//			sqlschema.Schema("hotel"),
//			sqlschema.Check("positive_nights", "nights > 0"),
//			sqlschema.Exclusion("no_overlap", "EXCLUDE USING gist (room_id WITH =, during WITH &&)"),
//		},
//	}
package sqlschema

import (
	"fmt"
	"maps"
	"strings"
)

// CascadeAction defines the referential action of foreign key constraints.
type CascadeAction string

const (
	Cascade    CascadeAction = "CASCADE"
	SetNull    CascadeAction = "SET NULL"
	Restrict   CascadeAction = "RESTRICT"
	SetDefault CascadeAction = "SET DEFAULT"
	NoAction   CascadeAction = "NO ACTION"
)

// ParseCascadeAction parses a referential action, ignoring case and
// accepting underscores for spaces. The empty string is NoAction.
func ParseCascadeAction(s string) (CascadeAction, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	switch a := CascadeAction(s); a {
	case "":
		return NoAction, nil
	case Cascade, SetNull, Restrict, SetDefault, NoAction:
		return a, nil
	}
	return "", fmt.Errorf("sqlschema: unknown referential action %q", s)
}

// Annotation holds the SQL settings of an entity table.
type Annotation struct {
	// Table overrides the table name of the entity.
	Table string

	// Schema places the table in a schema (scope). Unqualified tables live
	// in the default scope of the connection.
	Schema string

	// Comment of the table.
	Comment string

	// Checks holds CHECK constraints as name-expression pairs.
	Checks map[string]string

	// Exclusions holds PostgreSQL exclusion constraints as name-definition
	// pairs, e.g. "EXCLUDE USING gist (room WITH =, during WITH &&)".
	Exclusions map[string]string

	// View marks entities mapped to views. Views are read by the planners
	// but never created, altered or dropped.
	View bool
}

// Table sets the database table name for an entity.
func Table(name string) Annotation {
	return Annotation{Table: name}
}

// Schema sets the schema of the entity table.
func Schema(name string) Annotation {
	return Annotation{Schema: name}
}

// Comment sets the comment of the entity table.
func Comment(c string) Annotation {
	return Annotation{Comment: c}
}

// Check adds a named CHECK constraint.
func Check(name, expr string) Annotation {
	return Annotation{Checks: map[string]string{name: expr}}
}

// Exclusion adds a named exclusion constraint.
func Exclusion(name, def string) Annotation {
	return Annotation{Exclusions: map[string]string{name: def}}
}

// View marks the entity as mapped to a view.
func View() Annotation {
	return Annotation{View: true}
}

// Merge combines multiple SQL annotations into one.
// Later annotations override earlier ones; constraint maps are unioned.
func Merge(annotations ...Annotation) Annotation {
	result := Annotation{}
	for _, a := range annotations {
		if a.Table != "" {
			result.Table = a.Table
		}
		if a.Schema != "" {
			result.Schema = a.Schema
		}
		if a.Comment != "" {
			result.Comment = a.Comment
		}
		if a.View {
			result.View = true
		}
		if len(a.Checks) > 0 {
			if result.Checks == nil {
				result.Checks = make(map[string]string)
			}
			maps.Copy(result.Checks, a.Checks)
		}
		if len(a.Exclusions) > 0 {
			if result.Exclusions == nil {
				result.Exclusions = make(map[string]string)
			}
			maps.Copy(result.Exclusions, a.Exclusions)
		}
	}
	return result
}
