package schema

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/schema/field"
)

// Inspector reads the live schema of one scope.
type Inspector interface {
	Inspect(ctx context.Context, scope string) (*Model, error)
}

// InspectFunc adapts an ordinary function to the Inspector interface.
type InspectFunc func(ctx context.Context, scope string) (*Model, error)

// Inspect calls f(ctx, scope).
func (f InspectFunc) Inspect(ctx context.Context, scope string) (*Model, error) {
	return f(ctx, scope)
}

type schemaInspector interface {
	InspectSchema(ctx context.Context, name string, opts *atlasschema.InspectOptions) (*atlasschema.Schema, error)
}

// AtlasInspector inspects live databases with the Atlas drivers.
type AtlasInspector struct {
	caps dialect.Capabilities
	db   *stdsql.DB
}

// NewAtlasInspector returns an inspector for the given dialect and database.
func NewAtlasInspector(dialectName string, db *stdsql.DB) (*AtlasInspector, error) {
	caps, err := dialect.CapabilitiesOf(dialectName)
	if err != nil {
		return nil, err
	}
	return &AtlasInspector{caps: caps, db: db}, nil
}

func (i *AtlasInspector) driver() (schemaInspector, error) {
	switch i.caps.Name {
	case dialect.Postgres:
		return postgres.Open(i.db)
	case dialect.MySQL:
		return mysql.Open(i.db)
	default:
		return sqlite.Open(i.db)
	}
}

// Inspect returns the live model of the scope. A missing schema yields an
// empty model.
func (i *AtlasInspector) Inspect(ctx context.Context, scope string) (*Model, error) {
	drv, err := i.driver()
	if err != nil {
		return nil, fmt.Errorf("schema: open inspector: %w", err)
	}
	name := scope
	if name == "" && i.caps.Name == dialect.SQLite {
		name = "main"
	}
	s, err := drv.InspectSchema(ctx, name, nil)
	if atlasschema.IsNotExistError(err) {
		return NewModel(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %q: %w", scope, err)
	}
	m := FromAtlas(i.caps.Name, s, scope)
	if i.caps.Name == dialect.Postgres {
		if err := i.constraints(ctx, m, scope); err != nil {
			return nil, err
		}
	}
	return m, nil
}

const pgConstraintsQuery = `SELECT t.relname, c.conname, c.contype, c.condeferrable, c.condeferred, pg_get_constraintdef(c.oid)
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema()) AND c.contype IN ('f', 'x')
ORDER BY t.relname, c.conname`

// constraints reads the foreign key deferral modes and the exclusion
// constraints that the Atlas driver does not report.
func (i *AtlasInspector) constraints(ctx context.Context, m *Model, scope string) error {
	rows, err := i.db.QueryContext(ctx, pgConstraintsQuery, scope)
	if err != nil {
		return fmt.Errorf("schema: inspect constraints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table, name, kind   string
			deferrable, initDef bool
			def                 string
		)
		if err := rows.Scan(&table, &name, &kind, &deferrable, &initDef, &def); err != nil {
			return err
		}
		t, ok := m.Table(QualifiedName(scope, table))
		if !ok {
			continue
		}
		switch kind {
		case "f":
			for _, fk := range t.ForeignKeys {
				if fk.Symbol == name && deferrable {
					fk.Deferrable = InitiallyImmediate
					if initDef {
						fk.Deferrable = InitiallyDeferred
					}
				}
			}
		case "x":
			e, err := ParseExclusion(name, def)
			if err != nil {
				return err
			}
			t.Exclusions = append(t.Exclusions, e)
			// The backing index of the constraint is not a separate object.
			kept := t.Indexes[:0]
			for _, idx := range t.Indexes {
				if idx.Name != name {
					kept = append(kept, idx)
				}
			}
			t.Indexes = kept
		}
	}
	return rows.Err()
}

var exclusionRe = regexp.MustCompile(`(?is)^EXCLUDE\s+USING\s+(\w+)\s*\((.*)\)$`)

// ParseExclusion parses a PostgreSQL exclusion constraint definition as
// returned by pg_get_constraintdef, e.g.
// "EXCLUDE USING gist (room WITH =, during WITH &&)".
func ParseExclusion(name, def string) (*Exclusion, error) {
	def = strings.TrimSpace(def)
	body, where := def, ""
	// The WHERE clause follows the parenthesized element list.
	if end := closingParen(def); end > 0 {
		body = def[:end+1]
		rest := strings.TrimSpace(def[end+1:])
		if len(rest) >= 5 && strings.EqualFold(rest[:5], "WHERE") {
			where = strings.TrimSpace(rest[5:])
		}
	}
	sm := exclusionRe.FindStringSubmatch(body)
	if sm == nil {
		return nil, fmt.Errorf("schema: unexpected exclusion constraint %q", def)
	}
	e := &Exclusion{Name: name, Method: strings.ToLower(sm[1]), Where: normalizeExpr(where)}
	for _, part := range splitTopLevel(sm[2]) {
		i := strings.LastIndex(strings.ToUpper(part), " WITH ")
		if i < 0 {
			return nil, fmt.Errorf("schema: unexpected exclusion element %q", part)
		}
		e.Elements = append(e.Elements, ExclusionElement{
			Expr:     strings.TrimSpace(part[:i]),
			Operator: strings.TrimSpace(part[i+len(" WITH "):]),
		})
	}
	return e, nil
}

// closingParen returns the index of the parenthesis closing the first
// opening one in s, or -1.
func closingParen(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// FromAtlas converts an inspected Atlas schema to a model whose tables
// belong to the given scope. Internal tables of the database are skipped.
func FromAtlas(dialectName string, s *atlasschema.Schema, scope string) *Model {
	m := NewModel()
	for _, at := range s.Tables {
		if dialectName == dialect.SQLite && strings.HasPrefix(at.Name, "sqlite_") {
			continue
		}
		m.Tables = append(m.Tables, fromAtlasTable(dialectName, s.Name, at, scope))
	}
	return m
}

func fromAtlasTable(dialectName, schemaName string, at *atlasschema.Table, scope string) *Table {
	t := &Table{Name: at.Name, Schema: scope}
	for _, ac := range at.Columns {
		t.Columns = append(t.Columns, fromAtlasColumn(dialectName, ac))
	}
	if at.PrimaryKey != nil {
		t.PrimaryKeyName = at.PrimaryKey.Name
		for _, p := range at.PrimaryKey.Parts {
			if p.C != nil {
				t.PrimaryKey = append(t.PrimaryKey, p.C.Name)
			}
		}
	}
	if dialectName == dialect.SQLite {
		markRowID(t)
	}
	fkNames := make(map[string]bool)
	for _, afk := range at.ForeignKeys {
		fk := &ForeignKey{
			Symbol:   afk.Symbol,
			OnDelete: ReferenceOption(afk.OnDelete).ConstName(),
			OnUpdate: ReferenceOption(afk.OnUpdate).ConstName(),
		}
		for _, c := range afk.Columns {
			fk.Columns = append(fk.Columns, c.Name)
		}
		for _, c := range afk.RefColumns {
			fk.RefColumns = append(fk.RefColumns, c.Name)
		}
		fk.RefTable = QualifiedName(scope, afk.RefTable.Name)
		if rs := afk.RefTable.Schema; rs != nil && rs.Name != schemaName {
			fk.RefTable = QualifiedName(rs.Name, afk.RefTable.Name)
		}
		fkNames[fk.Symbol] = true
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	for _, ai := range at.Indexes {
		// MySQL backs every foreign key by an index of the same name.
		if dialectName == dialect.MySQL && !ai.Unique && fkNames[ai.Name] {
			continue
		}
		t.Indexes = append(t.Indexes, fromAtlasIndex(ai))
	}
	for _, a := range at.Attrs {
		switch a := a.(type) {
		case *atlasschema.Comment:
			t.Comment = a.Text
		case *atlasschema.Check:
			t.Checks = append(t.Checks, &Check{Name: a.Name, Expr: a.Expr})
		case *sqlite.AutoIncrement:
			for _, c := range t.Columns {
				if c.Generation == GenRowID {
					c.Generation = GenIncrement
				}
			}
		}
	}
	return t
}

func fromAtlasIndex(ai *atlasschema.Index) *Index {
	idx := &Index{Name: ai.Name, Unique: ai.Unique}
	for _, p := range ai.Parts {
		part := IndexPart{Desc: p.Desc}
		switch {
		case p.C != nil:
			part.Column = p.C.Name
		case p.X != nil:
			part.Expr = exprString(p.X)
		}
		idx.Parts = append(idx.Parts, part)
	}
	for _, a := range ai.Attrs {
		switch a := a.(type) {
		case *postgres.IndexPredicate:
			idx.Where = a.P
		case *sqlite.IndexPredicate:
			idx.Where = a.P
		case *postgres.IndexType:
			idx.Method = strings.ToLower(a.T)
		case *mysql.IndexType:
			idx.Method = strings.ToLower(a.T)
		}
	}
	if idx.Method == "btree" {
		idx.Method = ""
	}
	return idx
}

func exprString(x atlasschema.Expr) string {
	switch x := x.(type) {
	case *atlasschema.RawExpr:
		return x.X
	case *atlasschema.Literal:
		return x.V
	}
	return ""
}

func fromAtlasColumn(dialectName string, ac *atlasschema.Column) *Column {
	c := &Column{Name: ac.Name, Type: field.TypeOther}
	if ac.Type != nil {
		c.Nullable = ac.Type.Null
		fromAtlasType(dialectName, ac.Type, c)
	}
	if ac.Default != nil {
		if d := exprString(ac.Default); d != "" {
			c.Default = &d
		}
	}
	for _, a := range ac.Attrs {
		switch a := a.(type) {
		case *atlasschema.Comment:
			c.Comment = a.Text
		case *postgres.Identity, *mysql.AutoIncrement, *sqlite.AutoIncrement:
			c.Generation = GenIncrement
		}
	}
	return c
}

var sizedRe = regexp.MustCompile(`^(\w+)\s*\((\d+)\)$`)

func fromAtlasType(dialectName string, ct *atlasschema.ColumnType, c *Column) {
	switch t := ct.Type.(type) {
	case *atlasschema.BoolType:
		c.Type = field.TypeBool
	case *atlasschema.IntegerType:
		c.Type = integerType(dialectName, strings.ToLower(t.T), t.Unsigned)
	case *atlasschema.FloatType:
		c.Type = field.TypeFloat64
		if ft := strings.ToLower(t.T); ft == "real" || ft == "float" || ft == "float4" {
			c.Type = field.TypeFloat32
		}
	case *atlasschema.DecimalType:
		c.Type, c.Precision, c.Scale = field.TypeDecimal, t.Precision, t.Scale
	case *atlasschema.StringType:
		switch st := strings.ToLower(t.T); {
		case strings.HasSuffix(st, "text"):
			c.Type = field.TypeText
		case dialectName == dialect.MySQL && st == "char" && t.Size == 36:
			c.Type = field.TypeUUID
		default:
			c.Type, c.Size = field.TypeString, int64(t.Size)
		}
	case *atlasschema.BinaryType:
		c.Type = field.TypeBytes
	case *atlasschema.TimeType:
		c.Type = field.TypeTime
	case *atlasschema.JSONType:
		c.Type = field.TypeJSON
	case *atlasschema.UUIDType:
		c.Type = field.TypeUUID
	case *atlasschema.EnumType:
		c.Type, c.Enums = field.TypeEnum, t.Values
	default:
		raw := strings.ToLower(ct.Raw)
		if sm := sizedRe.FindStringSubmatch(raw); sm != nil {
			if ft, err := field.ParseType(sm[1]); err == nil {
				c.Type = ft
				c.Size, _ = strconv.ParseInt(sm[2], 10, 64)
				return
			}
		}
		if ft, err := field.ParseType(raw); err == nil {
			c.Type = ft
			return
		}
		c.SchemaType = map[string]string{dialectName: raw}
	}
}

func integerType(dialectName, t string, unsigned bool) field.Type {
	var signed, uns field.Type
	switch t {
	case "tinyint":
		signed, uns = field.TypeInt8, field.TypeUint8
	case "smallint", "int2":
		signed, uns = field.TypeInt16, field.TypeUint16
	case "int", "int4", "mediumint":
		signed, uns = field.TypeInt32, field.TypeUint32
	case "integer":
		// SQLite integers are 64 bit.
		signed, uns = field.TypeInt32, field.TypeUint32
		if dialectName == dialect.SQLite {
			signed, uns = field.TypeInt64, field.TypeUint64
		}
	default:
		signed, uns = field.TypeInt64, field.TypeUint64
	}
	if unsigned {
		return uns
	}
	return signed
}
