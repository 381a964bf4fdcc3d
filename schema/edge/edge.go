package edge

import (
	"errors"
	"fmt"
	"slices"
)

// A Descriptor for edge configuration.
type Descriptor struct {
	Name     string // edge name.
	Type     string // target entity name.
	Inverse  bool   // edge declared with From.
	RefName  string // name of the association edge of an inverse edge.
	Unique   bool
	Required bool

	// Field is the foreign key column of O2M, O2O and M2O edges.
	Field string
	// Through is the join table of M2M edges.
	Through string

	// Cascade lists the operations propagated to the edge target:
	// "insert", "update", "remove", "soft-remove", "recover" or "all".
	Cascade       []string
	OrphanRemoval bool

	OnDelete string // referential action of the foreign key.
	OnUpdate string
	// Deferrable is "immediate" or "deferred" for deferrable foreign keys.
	Deferrable string
	Comment    string
}

// Err reports the misconfigurations of the edge.
func (d *Descriptor) Err() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("edge: missing name"))
	}
	if d.Type == "" {
		errs = append(errs, fmt.Errorf("edge %q: missing target type", d.Name))
	}
	if d.Inverse && d.RefName == "" {
		errs = append(errs, fmt.Errorf("edge %q: inverse edge without Ref", d.Name))
	}
	if !d.Inverse && d.RefName != "" {
		errs = append(errs, fmt.Errorf("edge %q: Ref is only valid on inverse edges", d.Name))
	}
	if d.Inverse && d.OrphanRemoval {
		errs = append(errs, fmt.Errorf("edge %q: orphan removal on inverse edge", d.Name))
	}
	if d.Deferrable != "" && !slices.Contains([]string{"immediate", "deferred"}, d.Deferrable) {
		errs = append(errs, fmt.Errorf("edge %q: unknown deferrable mode %q", d.Name, d.Deferrable))
	}
	return errors.Join(errs...)
}

// Builder is the builder of an edge descriptor.
type Builder struct {
	desc *Descriptor
}

// To defines an association edge to the entity named typ.
//
//	edge.To("posts", "Post")
func To(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: typ}}
}

// From defines an inverse edge, the back-reference of the association
// edge set with Ref.
//
//	edge.From("author", "User").Ref("posts").Unique()
func From(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: typ, Inverse: true}}
}

// Ref sets the association edge of an inverse edge.
func (b *Builder) Ref(name string) *Builder {
	b.desc.RefName = name
	return b
}

// Unique sets the edge type to be unique. Basically, it limits the edge to
// be one of the two: one-to-one or many-to-one.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Required makes the foreign key column NOT NULL.
func (b *Builder) Required() *Builder {
	b.desc.Required = true
	return b
}

// Field sets the foreign key column of the edge.
func (b *Builder) Field(column string) *Builder {
	b.desc.Field = column
	return b
}

// Through sets the join table of an M2M edge.
func (b *Builder) Through(table string) *Builder {
	b.desc.Through = table
	return b
}

// Cascade adds operations propagated from the edge owner to its targets.
func (b *Builder) Cascade(ops ...string) *Builder {
	b.desc.Cascade = append(b.desc.Cascade, ops...)
	return b
}

// OrphanRemoval deletes targets detached from the edge instead of clearing
// their foreign key.
func (b *Builder) OrphanRemoval() *Builder {
	b.desc.OrphanRemoval = true
	return b
}

// OnDelete sets the ON DELETE action of the foreign key.
func (b *Builder) OnDelete(action string) *Builder {
	b.desc.OnDelete = action
	return b
}

// OnUpdate sets the ON UPDATE action of the foreign key.
func (b *Builder) OnUpdate(action string) *Builder {
	b.desc.OnUpdate = action
	return b
}

// Deferrable makes the foreign key deferrable, initially immediate unless
// initiallyDeferred is set.
func (b *Builder) Deferrable(initiallyDeferred bool) *Builder {
	b.desc.Deferrable = "immediate"
	if initiallyDeferred {
		b.desc.Deferrable = "deferred"
	}
	return b
}

// Comment sets the comment of the edge.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the descriptor of the edge.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
