package sqlgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relmap/dialect/sql/schema"
	"github.com/syssam/relmap/schema/field"
)

// Rel is an edge relation type.
type Rel int

// Relation types.
const (
	Unk Rel = iota // Unknown.
	O2O            // One to one / has one.
	O2M            // One to many / has many.
	M2O            // Many to one (inverse perspective for O2M).
	M2M            // Many to many.
)

// String returns the relation name.
func (r Rel) String() string {
	s := "Unknown"
	switch r {
	case O2O:
		s = "O2O"
	case O2M:
		s = "O2M"
	case M2O:
		s = "M2O"
	case M2M:
		s = "M2M"
	}
	return s
}

// Cascade is the set of operations propagated along an edge.
type Cascade uint8

// Cascade flags.
const (
	CascadeInsert Cascade = 1 << iota
	CascadeUpdate
	CascadeRemove
	CascadeSoftRemove
	CascadeRecover

	CascadeAll = CascadeInsert | CascadeUpdate | CascadeRemove | CascadeSoftRemove | CascadeRecover
)

// Has reports whether all flags of f are set.
func (c Cascade) Has(f Cascade) bool { return c&f == f }

var cascadeNames = []string{"insert", "update", "remove", "soft-remove", "recover"}

// String returns the flags joined with "|".
func (c Cascade) String() string {
	var names []string
	for i, n := range cascadeNames {
		if c&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseCascade parses a cascade flag name. "all" sets every flag.
func ParseCascade(s string) (Cascade, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "all" {
		return CascadeAll, nil
	}
	if i := slices.Index(cascadeNames, s); i >= 0 {
		return 1 << i, nil
	}
	return 0, fmt.Errorf("sqlgraph: unknown cascade %q", s)
}

type (
	// FieldSpec holds the information for updating a field column in the database.
	FieldSpec struct {
		Column string
		Type   field.Type
		// Generation of the column value. Only meaningful for ID fields.
		Generation schema.Generation
	}

	// NodeSpec defines the information for querying and decoding nodes in
	// the graph.
	NodeSpec struct {
		Table string // qualified table name
		ID    *FieldSpec
	}

	// EdgeSpec holds the information for updating a field column in the
	// database. Table is the table holding the foreign key column: the
	// target table for O2M and O2O edges, the source table for M2O and
	// inverse O2O edges and the join table for M2M edges, where Columns
	// holds the two join columns in the order of the non-inverse edge.
	EdgeSpec struct {
		Rel     Rel
		Inverse bool
		Table   string
		Columns []string

		Cascade Cascade
		// OrphanRemoval deletes rows detached from an O2M or O2O edge
		// instead of clearing their foreign key.
		OrphanRemoval bool
		// Nullable and Deferrable describe the foreign key constraint.
		// They are filled from the schema model by Schema.Bind.
		Nullable   bool
		Deferrable bool
	}

	// Edge is an edge of a node.
	Edge struct {
		Name string
		To   *Node
		Spec *EdgeSpec
	}

	// Node in the graph is an entity type.
	Node struct {
		NodeSpec

		// Type holds the node type (schema name).
		Type string

		// Fields maps from field names to their spec.
		Fields map[string]*FieldSpec

		// Edges maps from edge names to their spec.
		Edges map[string]*Edge

		// SoftDelete is the field set on soft removal and cleared on
		// recovery. Empty if the type does not support soft deletion.
		SoftDelete string
	}

	// Schema represents a schema graph.
	Schema struct {
		Nodes []*Node
	}
)

// fkOnSource reports whether the foreign key column of the edge lives on the
// row of the edge owner.
func (e *EdgeSpec) fkOnSource() bool {
	return e.Rel == M2O || (e.Rel == O2O && e.Inverse)
}

// joinColumns returns the join table columns referencing the owner and the
// target of an M2M edge.
func (e *EdgeSpec) joinColumns() (owner, target string) {
	if e.Inverse {
		return e.Columns[1], e.Columns[0]
	}
	return e.Columns[0], e.Columns[1]
}

// Node returns the node of the given type.
func (g *Schema) Node(typ string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Type == typ {
			return n, true
		}
	}
	return nil, false
}

// AddE adds an edge to the graph. It fails if one of the node types is
// missing.
func (g *Schema) AddE(name string, spec *EdgeSpec, from, to string) error {
	fromN, ok := g.Node(from)
	if !ok {
		return fmt.Errorf("sqlgraph: from node %q not found", from)
	}
	toN, ok := g.Node(to)
	if !ok {
		return fmt.Errorf("sqlgraph: to node %q not found", to)
	}
	want := 1
	if spec.Rel == M2M {
		want = 2
	}
	if len(spec.Columns) != want {
		return fmt.Errorf("sqlgraph: edge %s.%s: %s edge expects %d columns, got %d", from, name, spec.Rel, want, len(spec.Columns))
	}
	if fromN.Edges == nil {
		fromN.Edges = make(map[string]*Edge)
	}
	fromN.Edges[name] = &Edge{Name: name, To: toN, Spec: spec}
	return nil
}

// column returns the column of the named field.
func (n *Node) column(name string) (string, error) {
	f, ok := n.Fields[name]
	if !ok {
		return "", fmt.Errorf("sqlgraph: unknown field %q of %s", name, n.Type)
	}
	return f.Column, nil
}

// edgeNames returns the edge names in lexical order.
func (n *Node) edgeNames() []string {
	names := make([]string, 0, len(n.Edges))
	for name := range n.Edges {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bind validates the graph against the schema model and copies the
// nullability and deferral of every edge foreign key from it.
func (g *Schema) Bind(m *schema.Model) error {
	for _, n := range g.Nodes {
		t, ok := m.Table(n.Table)
		if !ok {
			return fmt.Errorf("sqlgraph: table %q of %s not found", n.Table, n.Type)
		}
		if n.ID == nil {
			if len(t.PrimaryKey) != 1 {
				return fmt.Errorf("sqlgraph: %s: table %q needs a single column primary key", n.Type, n.Table)
			}
			c, _ := t.Column(t.PrimaryKey[0])
			n.ID = &FieldSpec{Column: c.Name, Type: c.Type, Generation: c.Generation}
		}
		for name, f := range n.Fields {
			if _, ok := t.Column(f.Column); !ok {
				return fmt.Errorf("sqlgraph: field %s.%s: column %q not found", n.Type, name, f.Column)
			}
		}
		if n.SoftDelete != "" {
			if _, err := n.column(n.SoftDelete); err != nil {
				return err
			}
		}
		for _, name := range n.edgeNames() {
			if err := bindEdge(m, n, n.Edges[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindEdge(m *schema.Model, n *Node, e *Edge) error {
	holder, ok := m.Table(e.Spec.Table)
	if !ok {
		return fmt.Errorf("sqlgraph: edge %s.%s: table %q not found", n.Type, e.Name, e.Spec.Table)
	}
	refs := map[string]string{}
	switch {
	case e.Spec.Rel == M2M:
		owner, target := e.Spec.joinColumns()
		refs[owner], refs[target] = n.Table, e.To.Table
	case e.Spec.fkOnSource():
		refs[e.Spec.Columns[0]] = e.To.Table
	default:
		refs[e.Spec.Columns[0]] = n.Table
	}
	for col, ref := range refs {
		c, ok := holder.Column(col)
		if !ok {
			return fmt.Errorf("sqlgraph: edge %s.%s: column %q not found in %q", n.Type, e.Name, col, holder.QualifiedName())
		}
		if e.Spec.Rel != M2M {
			e.Spec.Nullable = c.Nullable
		}
		for _, fk := range holder.ForeignKeys {
			if slices.Equal(fk.Columns, []string{col}) && fk.RefTable == ref {
				e.Spec.Deferrable = e.Spec.Deferrable || fk.Deferrable != schema.NotDeferrable
			}
		}
	}
	return nil
}
