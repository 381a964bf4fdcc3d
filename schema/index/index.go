// Package index provides fluent builders for describing entity indexes.
//
//	index.Fields("email").Unique()
//	index.Fields("status", "created_at")
//	index.Fields("title").Edges("author").Unique()
//	index.Fields("email").Unique().Where("deleted_at IS NULL")
package index

import (
	"errors"
	"fmt"
)

// A Descriptor for index configuration.
type Descriptor struct {
	Unique     bool     // unique index.
	Edges      []string // edge foreign key columns.
	Fields     []string // field columns.
	StorageKey string   // index name.
	Where      string   // predicate of a partial index.
}

// Err reports the misconfigurations of the index.
func (d *Descriptor) Err() error {
	if len(d.Fields)+len(d.Edges) == 0 {
		return errors.New("index: missing columns")
	}
	seen := make(map[string]bool)
	for _, f := range append(append([]string(nil), d.Fields...), d.Edges...) {
		if seen[f] {
			return fmt.Errorf("index: duplicate column %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Builder for indexes on fields and edges.
type Builder struct {
	desc *Descriptor
}

// Fields creates an index on the given fields.
func Fields(fields ...string) *Builder {
	return &Builder{desc: &Descriptor{Fields: fields}}
}

// Edges creates an index on the foreign key columns of the given edges.
func Edges(edges ...string) *Builder {
	return &Builder{desc: &Descriptor{Edges: edges}}
}

// Fields appends fields to the index.
func (b *Builder) Fields(fields ...string) *Builder {
	b.desc.Fields = append(b.desc.Fields, fields...)
	return b
}

// Edges appends edge columns to the index.
func (b *Builder) Edges(edges ...string) *Builder {
	b.desc.Edges = append(b.desc.Edges, edges...)
	return b
}

// Unique sets the index to be unique.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// StorageKey sets the name of the index.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Where makes the index partial.
func (b *Builder) Where(pred string) *Builder {
	b.desc.Where = pred
	return b
}

// Descriptor returns the descriptor of the index.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
