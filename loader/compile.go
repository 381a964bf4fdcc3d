package loader

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/go-openapi/inflect"

	sqlschema "github.com/syssam/relmap/dialect/sql/schema"
	"github.com/syssam/relmap/dialect/sql/sqlgraph"
	annotation "github.com/syssam/relmap/dialect/sqlschema"
	"github.com/syssam/relmap/schema"
	"github.com/syssam/relmap/schema/edge"
	"github.com/syssam/relmap/schema/field"
)

// Result holds the compiled metadata: the table model used by schema
// synchronization and the node graph used by persistence planning.
type Result struct {
	Entities []*schema.Entity
	Model    *sqlschema.Model
	Graph    *sqlgraph.Schema
}

type compiler struct {
	entities map[string]*schema.Entity
	tables   map[string]*sqlschema.Table // by entity name
	nodes    map[string]*sqlgraph.Node   // by entity name
	model    *sqlschema.Model
	graph    *sqlgraph.Schema
	// held maps "Entity.edge" to the foreign key column the edge keeps on
	// the entity table.
	held map[string]string
}

// Compile builds the table model and the node graph of the entities.
func Compile(entities ...*schema.Entity) (*Result, error) {
	c := &compiler{
		entities: make(map[string]*schema.Entity),
		tables:   make(map[string]*sqlschema.Table),
		nodes:    make(map[string]*sqlgraph.Node),
		model:    sqlschema.NewModel(),
		graph:    &sqlgraph.Schema{},
		held:     make(map[string]string),
	}
	var errs []error
	for _, e := range entities {
		if err := e.Err(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.entities[e.Name]; ok {
			errs = append(errs, fmt.Errorf("loader: duplicate entity %q", e.Name))
			continue
		}
		c.entities[e.Name] = e
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, e := range entities {
		if err := c.table(e); err != nil {
			return nil, err
		}
	}
	for _, e := range entities {
		for _, ed := range e.Edges {
			if ed.Inverse {
				if err := c.checkInverse(e, ed); err != nil {
					return nil, err
				}
				continue
			}
			if err := c.relation(e, ed); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range entities {
		if err := c.indexes(e); err != nil {
			return nil, err
		}
	}
	if err := c.uniqueTables(); err != nil {
		return nil, err
	}
	if err := c.graph.Bind(c.model); err != nil {
		return nil, err
	}
	return &Result{Entities: entities, Model: c.model, Graph: c.graph}, nil
}

func (c *compiler) table(e *schema.Entity) error {
	ann := e.Annotation()
	t := sqlschema.NewTable(e.Table()).SetSchema(ann.Schema)
	t.Comment = cmp.Or(ann.Comment, e.Comment)
	t.View = ann.View
	key := e.Key()
	id := column(key)
	switch {
	case key.Assigned:
	case key.Type.Integer():
		id.Generation = sqlschema.GenIncrement
	case key.Type == field.TypeUUID:
		id.Generation = sqlschema.GenUUID
	}
	t.AddPrimary(id)
	n := &sqlgraph.Node{
		Type:       e.Name,
		NodeSpec:   sqlgraph.NodeSpec{Table: t.QualifiedName()},
		Fields:     make(map[string]*sqlgraph.FieldSpec),
		SoftDelete: e.SoftDeleteField(),
	}
	for _, f := range e.AllFields() {
		col := column(f)
		t.AddColumns(col)
		if f.Unique {
			t.AddUnique("", col.Name)
		}
		n.Fields[f.Name] = &sqlgraph.FieldSpec{Column: col.Name, Type: col.Type}
	}
	for _, name := range slices.Sorted(maps.Keys(ann.Checks)) {
		t.AddCheck(name, ann.Checks[name])
	}
	for _, name := range slices.Sorted(maps.Keys(ann.Exclusions)) {
		x, err := sqlschema.ParseExclusion(name, ann.Exclusions[name])
		if err != nil {
			return fmt.Errorf("loader: entity %s: %w", e.Name, err)
		}
		t.Exclusions = append(t.Exclusions, x)
	}
	c.tables[e.Name] = t
	c.nodes[e.Name] = n
	c.model.Tables = append(c.model.Tables, t)
	c.graph.Nodes = append(c.graph.Nodes, n)
	return nil
}

func column(f *field.Descriptor) *sqlschema.Column {
	return &sqlschema.Column{
		Name:       f.Column(),
		Type:       f.Type,
		Size:       f.Size,
		Precision:  f.Precision,
		Scale:      f.Scale,
		Nullable:   f.Optional,
		Default:    f.Default,
		Enums:      slices.Clone(f.Enums),
		Comment:    f.Comment,
		SchemaType: f.SchemaType,
	}
}

// inverseOf returns the back-reference of an association edge.
func (c *compiler) inverseOf(owner *schema.Entity, assoc *edge.Descriptor) (*edge.Descriptor, error) {
	target := c.entities[assoc.Type]
	var inv *edge.Descriptor
	for _, ed := range target.Edges {
		if ed.Inverse && ed.RefName == assoc.Name && ed.Type == owner.Name {
			if inv != nil {
				return nil, fmt.Errorf("loader: edge %s.%s has more than one back-reference", owner.Name, assoc.Name)
			}
			inv = ed
		}
	}
	return inv, nil
}

func (c *compiler) checkInverse(e *schema.Entity, inv *edge.Descriptor) error {
	target, ok := c.entities[inv.Type]
	if !ok {
		return fmt.Errorf("loader: edge %s.%s: unknown type %q", e.Name, inv.Name, inv.Type)
	}
	assoc, ok := target.Edge(inv.RefName)
	if !ok || assoc.Inverse || assoc.Type != e.Name {
		return fmt.Errorf("loader: edge %s.%s: reference %s.%s not found", e.Name, inv.Name, target.Name, inv.RefName)
	}
	return nil
}

// relation compiles an association edge and its optional back-reference
// into a foreign key or a join table, and the edge specs of both sides.
func (c *compiler) relation(owner *schema.Entity, assoc *edge.Descriptor) error {
	target, ok := c.entities[assoc.Type]
	if !ok {
		return fmt.Errorf("loader: edge %s.%s: unknown type %q", owner.Name, assoc.Name, assoc.Type)
	}
	inv, err := c.inverseOf(owner, assoc)
	if err != nil {
		return err
	}
	sides := []*edge.Descriptor{assoc}
	if inv != nil {
		sides = append(sides, inv)
	}
	rel, invRel := sqlgraph.O2M, sqlgraph.M2O
	switch {
	case inv == nil && assoc.Unique, inv != nil && assoc.Unique && inv.Unique:
		rel, invRel = sqlgraph.O2O, sqlgraph.O2O
	case inv != nil && assoc.Unique:
		rel, invRel = sqlgraph.M2O, sqlgraph.O2M
	case inv != nil && !inv.Unique:
		rel, invRel = sqlgraph.M2M, sqlgraph.M2M
	}
	fk := &sqlschema.ForeignKey{}
	for _, side := range sides {
		action, err := annotation.ParseCascadeAction(side.OnDelete)
		if err != nil {
			return fmt.Errorf("loader: edge %s: %w", side.Name, err)
		}
		if side.OnDelete != "" {
			fk.OnDelete = sqlschema.ReferenceOption(action)
		}
		if action, err = annotation.ParseCascadeAction(side.OnUpdate); err != nil {
			return fmt.Errorf("loader: edge %s: %w", side.Name, err)
		}
		if side.OnUpdate != "" {
			fk.OnUpdate = sqlschema.ReferenceOption(action)
		}
		switch side.Deferrable {
		case "immediate":
			fk.Deferrable = max(fk.Deferrable, sqlschema.InitiallyImmediate)
		case "deferred":
			fk.Deferrable = sqlschema.InitiallyDeferred
		}
	}
	var spec sqlgraph.EdgeSpec
	if rel == sqlgraph.M2M {
		spec, err = c.joinTable(owner, target, assoc, inv, fk)
	} else {
		spec, err = c.foreignKey(owner, target, assoc, inv, rel, fk)
	}
	if err != nil {
		return err
	}
	if err := c.addEdge(owner, assoc, rel, false, spec); err != nil {
		return err
	}
	if inv != nil {
		return c.addEdge(target, inv, invRel, true, spec)
	}
	return nil
}

func (c *compiler) addEdge(e *schema.Entity, ed *edge.Descriptor, rel sqlgraph.Rel, inverse bool, spec sqlgraph.EdgeSpec) error {
	spec.Rel, spec.Inverse = rel, inverse
	spec.Columns = slices.Clone(spec.Columns)
	for _, name := range ed.Cascade {
		flag, err := sqlgraph.ParseCascade(name)
		if err != nil {
			return fmt.Errorf("loader: edge %s.%s: %w", e.Name, ed.Name, err)
		}
		spec.Cascade |= flag
	}
	spec.OrphanRemoval = ed.OrphanRemoval
	if spec.OrphanRemoval && rel != sqlgraph.O2M && rel != sqlgraph.O2O {
		return fmt.Errorf("loader: edge %s.%s: orphan removal on %s edge", e.Name, ed.Name, rel)
	}
	return c.graph.AddE(ed.Name, &spec, e.Name, ed.Type)
}

// foreignKey adds the foreign key column of an O2M, O2O or M2O relation to
// the table of the holding entity.
func (c *compiler) foreignKey(owner, target *schema.Entity, assoc, inv *edge.Descriptor, rel sqlgraph.Rel, fk *sqlschema.ForeignKey) (sqlgraph.EdgeSpec, error) {
	// holder keeps the column referencing ref.
	holder, ref := target, owner
	var name string
	switch {
	case rel == sqlgraph.M2O:
		holder, ref = owner, target
		name = cmp.Or(assoc.Field, inv.Field)
		if name == "" {
			name = assoc.Name + "_id"
		}
		c.held[owner.Name+"."+assoc.Name] = name
	case inv != nil:
		name = cmp.Or(inv.Field, assoc.Field)
		if name == "" {
			name = inv.Name + "_id"
		}
		c.held[target.Name+"."+inv.Name] = name
	default:
		name = cmp.Or(assoc.Field, singular(c.tables[owner.Name].Name)+"_"+assoc.Name)
	}
	ht, rt := c.tables[holder.Name], c.tables[ref.Name]
	if _, ok := ht.Column(name); ok {
		return sqlgraph.EdgeSpec{}, fmt.Errorf("loader: edge %s.%s: column %q of %q is already used", owner.Name, assoc.Name, name, ht.QualifiedName())
	}
	col := refColumn(rt, name)
	col.Nullable = !assoc.Required && (inv == nil || !inv.Required)
	ht.AddColumns(col)
	if rel == sqlgraph.O2O {
		ht.AddUnique("", name)
	}
	fk.Columns = []string{name}
	fk.RefTable = rt.QualifiedName()
	fk.RefColumns = slices.Clone(rt.PrimaryKey)
	ht.AddForeignKeys(fk)
	return sqlgraph.EdgeSpec{Table: ht.QualifiedName(), Columns: []string{name}}, nil
}

// joinTable adds the join table of an M2M relation.
func (c *compiler) joinTable(owner, target *schema.Entity, assoc, inv *edge.Descriptor, fk *sqlschema.ForeignKey) (sqlgraph.EdgeSpec, error) {
	ot, tt := c.tables[owner.Name], c.tables[target.Name]
	name := cmp.Or(assoc.Through, inv.Through)
	if name == "" {
		name = singular(ot.Name) + "_" + assoc.Name
	}
	ownerCol, targetCol := singular(ot.Name)+"_id", singular(tt.Name)+"_id"
	if ownerCol == targetCol {
		targetCol = singular(assoc.Name) + "_id"
	}
	jt := sqlschema.NewTable(name).SetSchema(ot.Schema)
	oc, tc := refColumn(ot, ownerCol), refColumn(tt, targetCol)
	jt.AddPrimary(oc).AddPrimary(tc)
	if fk.OnDelete == "" {
		fk.OnDelete = sqlschema.Cascade
	}
	for _, ref := range []struct {
		col string
		t   *sqlschema.Table
	}{{ownerCol, ot}, {targetCol, tt}} {
		rfk := fk.Clone()
		rfk.Columns = []string{ref.col}
		rfk.RefTable = ref.t.QualifiedName()
		rfk.RefColumns = slices.Clone(ref.t.PrimaryKey)
		jt.AddForeignKeys(rfk)
	}
	c.model.Tables = append(c.model.Tables, jt)
	return sqlgraph.EdgeSpec{Table: jt.QualifiedName(), Columns: []string{ownerCol, targetCol}}, nil
}

// refColumn returns a column holding keys of the table t.
func refColumn(t *sqlschema.Table, name string) *sqlschema.Column {
	pk, _ := t.Column(t.PrimaryKey[0])
	return &sqlschema.Column{Name: name, Type: pk.Type, Size: pk.Size}
}

func singular(table string) string {
	return inflect.Singularize(table)
}

func (c *compiler) indexes(e *schema.Entity) error {
	t := c.tables[e.Name]
	for _, idx := range e.AllIndexes() {
		var cols []string
		for _, name := range idx.Fields {
			f, ok := e.Field(name)
			if !ok {
				f = e.Key()
			}
			cols = append(cols, f.Column())
		}
		for _, name := range idx.Edges {
			col, ok := c.held[e.Name+"."+name]
			if !ok {
				return fmt.Errorf("loader: entity %s: index on edge %q that holds no column of %q", e.Name, name, t.Name)
			}
			cols = append(cols, col)
		}
		t.AddIndex(idx.StorageKey, idx.Unique, cols...)
		t.Indexes[len(t.Indexes)-1].Where = idx.Where
	}
	return nil
}

func (c *compiler) uniqueTables() error {
	seen := make(map[string]bool)
	for _, t := range c.model.Tables {
		if seen[t.QualifiedName()] {
			return fmt.Errorf("loader: table %q is defined more than once", t.QualifiedName())
		}
		seen[t.QualifiedName()] = true
	}
	return nil
}
