package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/syssam/relmap/dialect/sqlschema"
	"github.com/syssam/relmap/schema/edge"
	"github.com/syssam/relmap/schema/field"
	"github.com/syssam/relmap/schema/index"
)

// Mixin is a reusable set of fields and indexes shared by entities.
type Mixin interface {
	Fields() []*field.Descriptor
	Indexes() []*index.Descriptor
}

// SoftDeleter is implemented by mixins whose entities support soft
// deletion. SoftDeleteField returns the field set on soft removal.
type SoftDeleter interface {
	SoftDeleteField() string
}

// Entity describes an entity type and the table it maps to.
type Entity struct {
	Name string
	// ID is the key field of the entity. Defaults to an int64 "id".
	ID      *field.Descriptor
	Fields  []*field.Descriptor
	Edges   []*edge.Descriptor
	Indexes []*index.Descriptor
	Mixins  []Mixin
	// SoftDelete is the field set on soft removal. Mixins implementing
	// SoftDeleter set it when empty.
	SoftDelete  string
	Annotations []sqlschema.Annotation
	Comment     string
}

// Annotation returns the merged SQL annotations of the entity.
func (e *Entity) Annotation() sqlschema.Annotation {
	return sqlschema.Merge(e.Annotations...)
}

// Table returns the table name of the entity: the annotated name, or the
// plural snake case form of the entity name.
func (e *Entity) Table() string {
	if t := e.Annotation().Table; t != "" {
		return t
	}
	return inflect.Pluralize(inflect.Underscore(e.Name))
}

// Key returns the ID field of the entity.
func (e *Entity) Key() *field.Descriptor {
	if e.ID != nil {
		return e.ID
	}
	return field.Int64("id").Descriptor()
}

// AllFields returns the mixin fields followed by the entity fields.
func (e *Entity) AllFields() []*field.Descriptor {
	var fields []*field.Descriptor
	for _, m := range e.Mixins {
		fields = append(fields, m.Fields()...)
	}
	return append(fields, e.Fields...)
}

// AllIndexes returns the mixin indexes followed by the entity indexes.
func (e *Entity) AllIndexes() []*index.Descriptor {
	var indexes []*index.Descriptor
	for _, m := range e.Mixins {
		indexes = append(indexes, m.Indexes()...)
	}
	return append(indexes, e.Indexes...)
}

// SoftDeleteField returns the soft delete field of the entity, or "".
func (e *Entity) SoftDeleteField() string {
	if e.SoftDelete != "" {
		return e.SoftDelete
	}
	for _, m := range e.Mixins {
		if sd, ok := m.(SoftDeleter); ok {
			return sd.SoftDeleteField()
		}
	}
	return ""
}

// Field returns the field with the given name.
func (e *Entity) Field(name string) (*field.Descriptor, bool) {
	for _, f := range e.AllFields() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Edge returns the edge with the given name.
func (e *Entity) Edge(name string) (*edge.Descriptor, bool) {
	for _, ed := range e.Edges {
		if ed.Name == name {
			return ed, true
		}
	}
	return nil, false
}

// Err reports the misconfigurations of the entity and its descriptors.
func (e *Entity) Err() error {
	if e.Name == "" {
		return errors.New("schema: entity without name")
	}
	var errs []error
	wrap := func(err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("schema: entity %s: %w", e.Name, err))
		}
	}
	key := e.Key()
	wrap(key.Err())
	if key.Optional {
		wrap(fmt.Errorf("optional ID field %q", key.Name))
	}
	names := []string{key.Name}
	for _, f := range e.AllFields() {
		wrap(f.Err())
		if slices.Contains(names, f.Name) {
			wrap(fmt.Errorf("duplicate field %q", f.Name))
		}
		names = append(names, f.Name)
	}
	var edges []string
	for _, ed := range e.Edges {
		wrap(ed.Err())
		if slices.Contains(edges, ed.Name) || slices.Contains(names, ed.Name) {
			wrap(fmt.Errorf("edge %q collides with a field or edge of the same name", ed.Name))
		}
		edges = append(edges, ed.Name)
	}
	for _, idx := range e.AllIndexes() {
		wrap(idx.Err())
		for _, f := range idx.Fields {
			if !slices.Contains(names, f) {
				wrap(fmt.Errorf("index on unknown field %q", f))
			}
		}
		for _, ed := range idx.Edges {
			if !slices.Contains(edges, ed) {
				wrap(fmt.Errorf("index on unknown edge %q", ed))
			}
		}
	}
	if sd := e.SoftDeleteField(); sd != "" {
		f, ok := e.Field(sd)
		switch {
		case !ok:
			wrap(fmt.Errorf("soft delete field %q not found", sd))
		case f.Type != field.TypeTime || !f.Optional:
			wrap(fmt.Errorf("soft delete field %q must be an optional time field", sd))
		}
	}
	return errors.Join(errs...)
}
