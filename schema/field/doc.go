// Package field provides fluent builders for describing entity fields and
// the logical column types of the schema model.
//
// Field names are the names used in entity values; the column name defaults
// to the field name and is changed with StorageKey:
//
//	field.Int64("user_id")
//	field.String("email").Unique().MaxLen(255)
//	field.Text("bio").Optional()
//	field.Enum("status").Values("active", "suspended")
//	field.Time("created_at").Default("CURRENT_TIMESTAMP")
//	field.Decimal("price", 10, 2)
//
// # Nullability
//
// Fields are NOT NULL unless marked Optional. Defaults are SQL expressions
// and are compared verbatim (after whitespace normalization) by the schema
// diff.
//
// # Identifiers
//
// A field used as an entity ID decides how new keys are produced: integer
// IDs are auto-incremented by the database, UUID IDs are generated when the
// save plan is built, and IDs marked Assigned are set by the caller.
//
//	field.UUID("id")
//	field.String("code").Assigned()
package field
