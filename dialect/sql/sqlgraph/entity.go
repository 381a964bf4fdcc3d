package sqlgraph

import (
	"fmt"
	"maps"
	"slices"
)

// Entity is an entity instance of a graph node. New entities have no row
// yet; loaded entities remember the values and edges they were loaded
// with, so that a save writes only what changed.
type Entity struct {
	Type string
	// ID is the primary key value. It is nil for new entities with a
	// database generated key until they are saved.
	ID any

	values  map[string]any
	dirty   map[string]bool
	edges   map[string][]*Entity
	loaded  map[string][]*Entity
	stored  bool
	removed bool
}

// NewEntity returns a new, unsaved entity of the given type.
func NewEntity(typ string) *Entity {
	return &Entity{
		Type:   typ,
		values: make(map[string]any),
		dirty:  make(map[string]bool),
		edges:  make(map[string][]*Entity),
		loaded: make(map[string][]*Entity),
	}
}

// LoadEntity returns an entity read from the database.
func LoadEntity(typ string, id any, values map[string]any) *Entity {
	e := NewEntity(typ)
	e.ID = id
	e.stored = true
	maps.Copy(e.values, values)
	return e
}

// Stored reports whether the entity has a row.
func (e *Entity) Stored() bool { return e.stored }

// Removed reports whether the row of the entity was deleted.
func (e *Entity) Removed() bool { return e.removed }

// Set sets the value of a field.
func (e *Entity) Set(field string, v any) *Entity {
	e.values[field] = v
	e.dirty[field] = true
	return e
}

// Value returns the value of a field.
func (e *Entity) Value(field string) (any, bool) {
	v, ok := e.values[field]
	return v, ok
}

// Edge returns the current targets of an edge.
func (e *Entity) Edge(name string) []*Entity {
	return e.edges[name]
}

// SetEdge replaces the targets of an edge.
func (e *Entity) SetEdge(name string, targets ...*Entity) *Entity {
	e.edges[name] = slices.Clone(targets)
	return e
}

// AddEdge appends targets to an edge.
func (e *Entity) AddEdge(name string, targets ...*Entity) *Entity {
	for _, t := range targets {
		if !slices.Contains(e.edges[name], t) {
			e.edges[name] = append(e.edges[name], t)
		}
	}
	return e
}

// RemoveEdge removes targets from an edge. Stored targets are matched by
// key.
func (e *Entity) RemoveEdge(name string, targets ...*Entity) *Entity {
	e.edges[name] = slices.DeleteFunc(e.edges[name], func(c *Entity) bool {
		return slices.ContainsFunc(targets, c.same)
	})
	return e
}

// LoadEdge sets the targets of an edge as they are stored in the database.
// Targets missing from the edge at save time are detached.
func (e *Entity) LoadEdge(name string, targets ...*Entity) *Entity {
	e.edges[name] = slices.Clone(targets)
	e.loaded[name] = slices.Clone(targets)
	return e
}

func (e *Entity) String() string {
	if e.ID == nil {
		return fmt.Sprintf("%s(new@%p)", e.Type, e)
	}
	return fmt.Sprintf("%s(%v)", e.Type, e.ID)
}

// same reports whether two entities denote the same row.
func (e *Entity) same(o *Entity) bool {
	if e == o {
		return true
	}
	return e.stored && o.stored && e.Type == o.Type && sameKey(e.ID, o.ID)
}

// sameKey compares two key values across the types drivers scan them
// into. MySQL returns character columns as []byte.
func sameKey(a, b any) bool {
	return a != nil && b != nil && keyString(a) == keyString(b)
}

func keyString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// wasLoaded reports whether t was a target of the edge when e was loaded.
func (e *Entity) wasLoaded(edge string, t *Entity) bool {
	return e.stored && slices.ContainsFunc(e.loaded[edge], t.same)
}

// detached returns the loaded targets that are no longer targets of the
// edge.
func (e *Entity) detached(edge string) []*Entity {
	var out []*Entity
	for _, l := range e.loaded[edge] {
		if !slices.ContainsFunc(e.edges[edge], l.same) {
			out = append(out, l)
		}
	}
	return out
}

// commit marks the entity as persisted in its current state.
func (e *Entity) commit() {
	e.stored = true
	clear(e.dirty)
	clear(e.loaded)
	for name, targets := range e.edges {
		e.loaded[name] = slices.Clone(targets)
	}
}
