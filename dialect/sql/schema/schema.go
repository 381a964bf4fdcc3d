package schema

import (
	"slices"
	"strings"

	"github.com/syssam/relmap/schema/field"
)

// Model is a dialect-neutral description of a database schema. A Model is
// built once per planning call and never mutated by the planner; Apply
// returns a modified copy.
type Model struct {
	Tables []*Table
}

// NewModel returns a model holding the given tables.
func NewModel(tables ...*Table) *Model {
	return &Model{Tables: tables}
}

// Table returns the table with the given qualified name.
func (m *Model) Table(qname string) (*Table, bool) {
	for _, t := range m.Tables {
		if t.QualifiedName() == qname {
			return t, true
		}
	}
	return nil, false
}

// Scopes returns the distinct schema qualifiers of the model tables in
// ascending order. Unqualified tables belong to the "" scope.
func (m *Model) Scopes() []string {
	var scopes []string
	for _, t := range m.Tables {
		if !slices.Contains(scopes, t.Schema) {
			scopes = append(scopes, t.Schema)
		}
	}
	slices.Sort(scopes)
	return scopes
}

// Scope returns a model holding only the tables of the given scope.
func (m *Model) Scope(name string) *Model {
	s := &Model{}
	for _, t := range m.Tables {
		if t.Schema == name {
			s.Tables = append(s.Tables, t)
		}
	}
	return s
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	c := &Model{Tables: make([]*Table, len(m.Tables))}
	for i, t := range m.Tables {
		c.Tables[i] = t.Clone()
	}
	return c
}

func (m *Model) sorted() []*Table {
	tables := slices.Clone(m.Tables)
	slices.SortFunc(tables, func(a, b *Table) int { return strings.Compare(a.QualifiedName(), b.QualifiedName()) })
	return tables
}

// Table describes a table or a view.
type Table struct {
	Name       string
	Schema     string
	Columns    []*Column
	PrimaryKey []string
	// PrimaryKeyName is the inspected name of the primary key constraint.
	// Empty when unknown or when the dialect does not name it.
	PrimaryKeyName string
	Indexes        []*Index
	Uniques        []*Unique
	Checks         []*Check
	Exclusions     []*Exclusion
	ForeignKeys    []*ForeignKey
	Comment        string
	// View tables are never created, altered or dropped.
	View bool
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// SetSchema sets the schema qualifier of the table.
func (t *Table) SetSchema(s string) *Table {
	t.Schema = s
	return t
}

// AddColumns appends columns to the table.
func (t *Table) AddColumns(cs ...*Column) *Table {
	t.Columns = append(t.Columns, cs...)
	return t
}

// AddPrimary appends the column to the table and to its primary key.
func (t *Table) AddPrimary(c *Column) *Table {
	t.Columns = append(t.Columns, c)
	t.PrimaryKey = append(t.PrimaryKey, c.Name)
	return t
}

// AddIndex appends an index on the given columns.
func (t *Table) AddIndex(name string, unique bool, columns ...string) *Table {
	idx := &Index{Name: name, Unique: unique}
	for _, c := range columns {
		idx.Parts = append(idx.Parts, IndexPart{Column: c})
	}
	t.Indexes = append(t.Indexes, idx)
	return t
}

// AddUnique appends a unique constraint on the given columns.
func (t *Table) AddUnique(name string, columns ...string) *Table {
	t.Uniques = append(t.Uniques, &Unique{Name: name, Columns: columns})
	return t
}

// AddCheck appends a check constraint.
func (t *Table) AddCheck(name, expr string) *Table {
	t.Checks = append(t.Checks, &Check{Name: name, Expr: expr})
	return t
}

// AddForeignKeys appends foreign keys to the table.
func (t *Table) AddForeignKeys(fks ...*ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fks...)
	return t
}

// QualifiedName returns "schema.name", or "name" when unqualified.
func (t *Table) QualifiedName() string {
	return QualifiedName(t.Schema, t.Name)
}

// QualifiedName joins a schema qualifier and a table name.
func QualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	return slices.Contains(t.PrimaryKey, column)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := *t
	c.Columns = cloneAll(t.Columns, (*Column).Clone)
	c.PrimaryKey = slices.Clone(t.PrimaryKey)
	c.Indexes = cloneAll(t.Indexes, (*Index).Clone)
	c.Uniques = cloneAll(t.Uniques, (*Unique).Clone)
	c.Checks = cloneAll(t.Checks, func(ch *Check) *Check { cp := *ch; return &cp })
	c.Exclusions = cloneAll(t.Exclusions, (*Exclusion).Clone)
	c.ForeignKeys = cloneAll(t.ForeignKeys, (*ForeignKey).Clone)
	return &c
}

func cloneAll[T any](s []*T, f func(*T) *T) []*T {
	if s == nil {
		return nil
	}
	out := make([]*T, len(s))
	for i, v := range s {
		out[i] = f(v)
	}
	return out
}

// Generation describes how a column value is produced when not supplied.
type Generation uint8

// Column generation strategies.
const (
	GenNone Generation = iota
	// GenIncrement is an auto-increment or identity column.
	GenIncrement
	// GenUUID is a UUID assigned by the client before insert.
	GenUUID
	// GenRowID is the implicit row identifier (SQLite INTEGER PRIMARY KEY).
	GenRowID
)

// String returns the generation name.
func (g Generation) String() string {
	switch g {
	case GenIncrement:
		return "increment"
	case GenUUID:
		return "uuid"
	case GenRowID:
		return "rowid"
	default:
		return "none"
	}
}

// Column describes a table column.
type Column struct {
	Name      string
	Type      field.Type
	Size      int64 // varchar length or vector dimension
	Precision int
	Scale     int
	Nullable  bool
	// Default is the default expression. Nil means no default.
	Default    *string
	Generation Generation
	Enums      []string // values of enum columns
	Comment    string
	// SchemaType overrides the rendered native type per dialect.
	SchemaType map[string]string
}

// Clone returns a copy of the column.
func (c *Column) Clone() *Column {
	cp := *c
	if c.Default != nil {
		d := *c.Default
		cp.Default = &d
	}
	cp.Enums = slices.Clone(c.Enums)
	if c.SchemaType != nil {
		cp.SchemaType = make(map[string]string, len(c.SchemaType))
		for k, v := range c.SchemaType {
			cp.SchemaType[k] = v
		}
	}
	return &cp
}

// Expr returns a pointer to the given default expression.
func Expr(s string) *string { return &s }

// IndexPart is a column or an expression of an index.
type IndexPart struct {
	Column string
	Expr   string
	Desc   bool
}

// Index describes a table index.
type Index struct {
	Name   string
	Unique bool
	Parts  []IndexPart
	// Where is the predicate of a partial index.
	Where string
	// Method is the index access method (btree, hash, gin, ...).
	Method string
}

// Clone returns a copy of the index.
func (i *Index) Clone() *Index {
	cp := *i
	cp.Parts = slices.Clone(i.Parts)
	return &cp
}

// Columns returns the column names of the index parts that are columns.
func (i *Index) Columns() []string {
	var cols []string
	for _, p := range i.Parts {
		if p.Column != "" {
			cols = append(cols, p.Column)
		}
	}
	return cols
}

// Unique describes a unique constraint.
type Unique struct {
	Name    string
	Columns []string
}

// Clone returns a copy of the constraint.
func (u *Unique) Clone() *Unique {
	return &Unique{Name: u.Name, Columns: slices.Clone(u.Columns)}
}

// Check describes a check constraint.
type Check struct {
	Name string
	Expr string
}

// ExclusionElement is one "<expr> WITH <operator>" element of an exclusion
// constraint.
type ExclusionElement struct {
	Expr     string
	Operator string
}

// Exclusion describes an exclusion constraint (PostgreSQL).
type Exclusion struct {
	Name     string
	Method   string // defaults to gist
	Elements []ExclusionElement
	Where    string
}

// Clone returns a copy of the constraint.
func (e *Exclusion) Clone() *Exclusion {
	cp := *e
	cp.Elements = slices.Clone(e.Elements)
	return &cp
}

// ReferenceOption for actions on foreign key updates and deletes.
type ReferenceOption string

// Reference options.
const (
	NoAction   ReferenceOption = "NO ACTION"
	Restrict   ReferenceOption = "RESTRICT"
	Cascade    ReferenceOption = "CASCADE"
	SetNull    ReferenceOption = "SET NULL"
	SetDefault ReferenceOption = "SET DEFAULT"
)

// ConstName returns the normalized option. The empty option is NO ACTION.
func (r ReferenceOption) ConstName() ReferenceOption {
	if r == "" {
		return NoAction
	}
	return ReferenceOption(strings.ToUpper(string(r)))
}

// Deferrable describes the deferral mode of a foreign key.
type Deferrable uint8

// Deferral modes.
const (
	NotDeferrable Deferrable = iota
	InitiallyImmediate
	InitiallyDeferred
)

// String returns the SQL clause of the mode.
func (d Deferrable) String() string {
	switch d {
	case InitiallyImmediate:
		return "DEFERRABLE INITIALLY IMMEDIATE"
	case InitiallyDeferred:
		return "DEFERRABLE INITIALLY DEFERRED"
	default:
		return "NOT DEFERRABLE"
	}
}

// ForeignKey describes a foreign key constraint. Columns are local to the
// owning table; RefTable is the qualified name of the referenced table.
type ForeignKey struct {
	Symbol     string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   ReferenceOption
	OnUpdate   ReferenceOption
	Deferrable Deferrable
}

// Clone returns a copy of the foreign key.
func (fk *ForeignKey) Clone() *ForeignKey {
	cp := *fk
	cp.Columns = slices.Clone(fk.Columns)
	cp.RefColumns = slices.Clone(fk.RefColumns)
	return &cp
}
