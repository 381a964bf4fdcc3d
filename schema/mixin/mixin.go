package mixin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relmap/schema"
	"github.com/syssam/relmap/schema/field"
	"github.com/syssam/relmap/schema/index"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []*field.Descriptor { return nil }

// Indexes returns the indexes of the mixin.
func (Schema) Indexes() []*index.Descriptor { return nil }

// schema mixin must implement `Mixin` interface.
var _ schema.Mixin = (*Schema)(nil)

const now = "CURRENT_TIMESTAMP"

// Time adds created_at and updated_at timestamp fields to a schema.
type Time struct {
	Schema
}

// Fields returns the time tracking fields.
func (Time) Fields() []*field.Descriptor {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// CreateTime adds only created_at timestamp field to a schema.
type CreateTime struct {
	Schema
}

// Fields returns the created_at field.
func (CreateTime) Fields() []*field.Descriptor {
	return []*field.Descriptor{
		field.Time("created_at").
			Default(now).
			Comment("Timestamp when the entity was created").
			Descriptor(),
	}
}

// UpdateTime adds only updated_at timestamp field to a schema.
type UpdateTime struct {
	Schema
}

// Fields returns the updated_at field.
func (UpdateTime) Fields() []*field.Descriptor {
	return []*field.Descriptor{
		field.Time("updated_at").
			Default(now).
			Comment("Timestamp when the entity was last updated").
			Descriptor(),
	}
}

// SoftDelete adds a deleted_at field for soft deletion support.
// When set, the entity is considered deleted but remains in the database.
type SoftDelete struct {
	Schema
}

// Fields returns the soft delete field.
func (SoftDelete) Fields() []*field.Descriptor {
	return []*field.Descriptor{
		field.Time("deleted_at").
			Optional().
			Comment("Timestamp when the entity was soft deleted").
			Descriptor(),
	}
}

// Indexes returns an index on deleted_at.
func (SoftDelete) Indexes() []*index.Descriptor {
	return []*index.Descriptor{index.Fields("deleted_at").Descriptor()}
}

// SoftDeleteField implements schema.SoftDeleter.
func (SoftDelete) SoftDeleteField() string { return "deleted_at" }

// TimeSoftDelete combines Time and SoftDelete mixins.
type TimeSoftDelete struct {
	SoftDelete
}

// Fields returns all timestamp and soft delete fields.
func (TimeSoftDelete) Fields() []*field.Descriptor {
	return append(Time{}.Fields(), SoftDelete{}.Fields()...)
}

var builtin = map[string]schema.Mixin{
	"time":             Time{},
	"create_time":      CreateTime{},
	"update_time":      UpdateTime{},
	"soft_delete":      SoftDelete{},
	"time_soft_delete": TimeSoftDelete{},
}

// Named returns the built-in mixin with the given name, as used in
// metadata files ("time", "soft_delete", ...). Dashes are accepted for
// underscores.
func Named(name string) (schema.Mixin, error) {
	m, ok := builtin[strings.ReplaceAll(strings.ToLower(name), "-", "_")]
	if !ok {
		names := make([]string, 0, len(builtin))
		for n := range builtin {
			names = append(names, n)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("mixin: unknown mixin %q (one of %s)", name, strings.Join(names, ", "))
	}
	return m, nil
}
