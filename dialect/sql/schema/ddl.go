package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/schema/field"
)

// nativeType returns the column type as rendered for the dialect.
func nativeType(caps dialect.Capabilities, c *Column) string {
	if t, ok := c.SchemaType[caps.Name]; ok && t != "" {
		return strings.ToLower(t)
	}
	switch caps.Name {
	case dialect.MySQL:
		return mysqlType(c)
	case dialect.SQLite:
		return sqliteType(c)
	default:
		return postgresType(c)
	}
}

func postgresType(c *Column) string {
	switch c.Type {
	case field.TypeBool:
		return "boolean"
	case field.TypeInt8, field.TypeInt16, field.TypeUint8:
		return "smallint"
	case field.TypeInt32, field.TypeUint16:
		return "integer"
	case field.TypeInt, field.TypeInt64, field.TypeUint32, field.TypeUint, field.TypeUint64:
		return "bigint"
	case field.TypeFloat32:
		return "real"
	case field.TypeFloat64:
		return "double precision"
	case field.TypeDecimal:
		return decimalType("numeric", c)
	case field.TypeString, field.TypeEnum:
		if c.Size > 0 {
			return "character varying(" + strconv.FormatInt(c.Size, 10) + ")"
		}
		return "character varying"
	case field.TypeBytes:
		return "bytea"
	case field.TypeTime:
		return "timestamp with time zone"
	case field.TypeJSON:
		return "jsonb"
	case field.TypeUUID:
		return "uuid"
	case field.TypeVector:
		return "vector(" + strconv.FormatInt(c.Size, 10) + ")"
	default:
		return "text"
	}
}

func mysqlType(c *Column) string {
	switch c.Type {
	case field.TypeBool:
		return "bool"
	case field.TypeInt8:
		return "tinyint"
	case field.TypeInt16:
		return "smallint"
	case field.TypeInt32:
		return "int"
	case field.TypeInt, field.TypeInt64:
		return "bigint"
	case field.TypeUint8:
		return "tinyint unsigned"
	case field.TypeUint16:
		return "smallint unsigned"
	case field.TypeUint32:
		return "int unsigned"
	case field.TypeUint, field.TypeUint64:
		return "bigint unsigned"
	case field.TypeFloat32:
		return "float"
	case field.TypeFloat64:
		return "double"
	case field.TypeDecimal:
		return decimalType("decimal", c)
	case field.TypeString:
		size := c.Size
		if size <= 0 {
			size = 255
		}
		return "varchar(" + strconv.FormatInt(size, 10) + ")"
	case field.TypeBytes:
		return "longblob"
	case field.TypeTime:
		return "timestamp"
	case field.TypeJSON:
		return "json"
	case field.TypeUUID:
		return "char(36)"
	case field.TypeEnum:
		values := make([]string, len(c.Enums))
		for i, v := range c.Enums {
			values[i] = quoteString(v)
		}
		return "enum(" + strings.Join(values, ",") + ")"
	default:
		return "longtext"
	}
}

func sqliteType(c *Column) string {
	switch {
	case c.Type == field.TypeBool:
		return "bool"
	case c.Type.Integer():
		return "integer"
	case c.Type.Float():
		return "real"
	case c.Type == field.TypeDecimal:
		return "decimal"
	case c.Type == field.TypeString && c.Size > 0:
		return "varchar(" + strconv.FormatInt(c.Size, 10) + ")"
	case c.Type == field.TypeBytes, c.Type == field.TypeVector:
		return "blob"
	case c.Type == field.TypeTime:
		return "datetime"
	case c.Type == field.TypeJSON:
		return "json"
	case c.Type == field.TypeUUID:
		return "uuid"
	default:
		return "text"
	}
}

func decimalType(name string, c *Column) string {
	if c.Precision == 0 {
		return name
	}
	return fmt.Sprintf("%s(%d,%d)", name, c.Precision, c.Scale)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// builder renders changes to DDL statements of one dialect.
type builder struct {
	caps dialect.Capabilities
}

func (b builder) q(ident string) string { return b.caps.Quote(ident) }

func (b builder) table(t *Table) string { return b.caps.QuoteTable(t.Schema, t.Name) }

// ref quotes a qualified table name.
func (b builder) ref(qname string) string {
	if s, n, ok := strings.Cut(qname, "."); ok {
		return b.caps.QuoteTable(s, n)
	}
	return b.q(qname)
}

func (b builder) columns(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = b.q(c)
	}
	return strings.Join(q, ", ")
}

// inlinePK reports whether the primary key of t is rendered inline on its
// single integer column (SQLite auto-increment and rowid keys).
func (b builder) inlinePK(t *Table, c *Column) bool {
	return b.caps.Name == dialect.SQLite && len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == c.Name &&
		(c.Generation == GenIncrement || c.Generation == GenRowID)
}

func (b builder) column(t *Table, c *Column) string {
	var sb strings.Builder
	sb.WriteString(b.q(c.Name) + " " + nativeType(b.caps, c))
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT " + *c.Default)
	}
	if c.Generation == GenIncrement || c.Generation == GenRowID {
		switch {
		case b.inlinePK(t, c):
			sb.WriteString(" PRIMARY KEY")
			if c.Generation == GenIncrement {
				sb.WriteString(" AUTOINCREMENT")
			}
		case b.caps.Name == dialect.Postgres:
			sb.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
		case b.caps.Name == dialect.MySQL:
			sb.WriteString(" AUTO_INCREMENT")
		}
	}
	if b.caps.Name == dialect.MySQL && c.Comment != "" {
		sb.WriteString(" COMMENT " + quoteString(c.Comment))
	}
	return sb.String()
}

func (b builder) fkClause(fk *ForeignKey) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		b.q(fk.Symbol), b.columns(fk.Columns), b.ref(fk.RefTable), b.columns(fk.RefColumns))
	if fk.OnDelete != "" {
		sb.WriteString(" ON DELETE " + string(fk.OnDelete.ConstName()))
	}
	if fk.OnUpdate != "" {
		sb.WriteString(" ON UPDATE " + string(fk.OnUpdate.ConstName()))
	}
	if fk.Deferrable != NotDeferrable {
		sb.WriteString(" " + fk.Deferrable.String())
	}
	return sb.String()
}

func (b builder) exclusionClause(e *Exclusion) string {
	method := e.Method
	if method == "" {
		method = "gist"
	}
	elems := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		elems[i] = el.Expr + " WITH " + el.Operator
	}
	s := fmt.Sprintf("CONSTRAINT %s EXCLUDE USING %s (%s)", b.q(e.Name), method, strings.Join(elems, ", "))
	if e.Where != "" {
		s += " WHERE (" + e.Where + ")"
	}
	return s
}

func (b builder) createIndex(t *Table, idx *Index) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if idx.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX " + b.q(idx.Name) + " ON " + b.table(t))
	if idx.Method != "" && b.caps.Name == dialect.Postgres {
		sb.WriteString(" USING " + idx.Method)
	}
	parts := make([]string, len(idx.Parts))
	for i, p := range idx.Parts {
		if p.Column != "" {
			parts[i] = b.q(p.Column)
		} else {
			parts[i] = "(" + p.Expr + ")"
		}
		if p.Desc {
			parts[i] += " DESC"
		}
	}
	sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
	if idx.Method != "" && b.caps.Name == dialect.MySQL {
		sb.WriteString(" USING " + strings.ToUpper(idx.Method))
	}
	if idx.Where != "" {
		sb.WriteString(" WHERE " + idx.Where)
	}
	return sb.String()
}

func (b builder) dropIndex(t *Table, name string) string {
	switch b.caps.Name {
	case dialect.MySQL:
		return "DROP INDEX " + b.q(name) + " ON " + b.table(t)
	case dialect.Postgres:
		return "DROP INDEX " + b.caps.QuoteTable(t.Schema, name)
	default:
		return "DROP INDEX " + b.q(name)
	}
}

func (b builder) createTable(t *Table) []string {
	var defs []string
	inline := false
	for _, c := range t.Columns {
		defs = append(defs, b.column(t, c))
		inline = inline || b.inlinePK(t, c)
	}
	if len(t.PrimaryKey) > 0 && !inline {
		defs = append(defs, "PRIMARY KEY ("+b.columns(t.PrimaryKey)+")")
	}
	for _, u := range t.Uniques {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", b.q(u.Name), b.columns(u.Columns)))
	}
	for _, c := range t.Checks {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", b.q(c.Name), c.Expr))
	}
	for _, e := range t.Exclusions {
		defs = append(defs, b.exclusionClause(e))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, b.fkClause(fk))
	}
	stmt := "CREATE TABLE " + b.table(t) + " (" + strings.Join(defs, ", ") + ")"
	if b.caps.Name == dialect.MySQL && t.Comment != "" {
		stmt += " COMMENT " + quoteString(t.Comment)
	}
	stmts := []string{stmt}
	for _, idx := range t.Indexes {
		stmts = append(stmts, b.createIndex(t, idx))
	}
	if b.caps.Name == dialect.Postgres {
		if t.Comment != "" {
			stmts = append(stmts, b.tableComment(t, t.Comment))
		}
		for _, c := range t.Columns {
			if c.Comment != "" {
				stmts = append(stmts, b.columnComment(t, c, c.Comment))
			}
		}
	}
	return stmts
}

func (b builder) tableComment(t *Table, comment string) string {
	if b.caps.Name == dialect.MySQL {
		return "ALTER TABLE " + b.table(t) + " COMMENT " + quoteString(comment)
	}
	return "COMMENT ON TABLE " + b.table(t) + " IS " + commentValue(comment)
}

func (b builder) columnComment(t *Table, c *Column, comment string) string {
	if b.caps.Name == dialect.MySQL {
		cc := c.Clone()
		cc.Comment = comment
		return "ALTER TABLE " + b.table(t) + " MODIFY COLUMN " + b.column(t, cc)
	}
	return "COMMENT ON COLUMN " + b.table(t) + "." + b.q(c.Name) + " IS " + commentValue(comment)
}

func commentValue(s string) string {
	if s == "" {
		return "NULL"
	}
	return quoteString(s)
}

func (b builder) alter(t *Table, clauses ...string) []string {
	if len(clauses) == 0 {
		return nil
	}
	return []string{"ALTER TABLE " + b.table(t) + " " + strings.Join(clauses, ", ")}
}

// Statements renders the statements of a single change.
func (b builder) Statements(c Change) ([]string, error) {
	t := c.Table
	switch c.Kind {
	case CreateTable:
		return b.createTable(t), nil
	case DropTable:
		return []string{"DROP TABLE " + b.table(t)}, nil
	case AddColumn:
		stmts := b.alter(t, "ADD COLUMN "+b.column(t, c.Column))
		if b.caps.Name == dialect.Postgres && c.Column.Comment != "" {
			stmts = append(stmts, b.columnComment(t, c.Column, c.Column.Comment))
		}
		return stmts, nil
	case DropColumn:
		return b.alter(t, "DROP COLUMN "+b.q(c.Column.Name)), nil
	case ChangeColumn:
		return b.changeColumn(t, c.From, c.Column), nil
	case AddIndex:
		return []string{b.createIndex(t, c.Index)}, nil
	case DropIndex:
		return []string{b.dropIndex(t, c.Index.Name)}, nil
	case AddUnique:
		if b.caps.Name == dialect.SQLite {
			return []string{b.createIndex(t, &Index{Name: c.Unique.Name, Unique: true, Parts: partsOf(c.Unique.Columns)})}, nil
		}
		return b.alter(t, fmt.Sprintf("ADD CONSTRAINT %s UNIQUE (%s)", b.q(c.Unique.Name), b.columns(c.Unique.Columns))), nil
	case DropUnique:
		switch b.caps.Name {
		case dialect.SQLite:
			return []string{b.dropIndex(t, c.Unique.Name)}, nil
		case dialect.MySQL:
			return b.alter(t, "DROP INDEX "+b.q(c.Unique.Name)), nil
		}
		return b.alter(t, "DROP CONSTRAINT "+b.q(c.Unique.Name)), nil
	case AddCheck:
		return b.alter(t, fmt.Sprintf("ADD CONSTRAINT %s CHECK (%s)", b.q(c.Check.Name), c.Check.Expr)), nil
	case DropCheck:
		if b.caps.Name == dialect.MySQL {
			return b.alter(t, "DROP CHECK "+b.q(c.Check.Name)), nil
		}
		return b.alter(t, "DROP CONSTRAINT "+b.q(c.Check.Name)), nil
	case AddExclusion:
		return b.alter(t, "ADD "+b.exclusionClause(c.Exclusion)), nil
	case DropExclusion:
		return b.alter(t, "DROP CONSTRAINT "+b.q(c.Exclusion.Name)), nil
	case AddForeignKey:
		return b.alter(t, "ADD "+b.fkClause(c.ForeignKey)), nil
	case DropForeignKey:
		if b.caps.Name == dialect.MySQL {
			return b.alter(t, "DROP FOREIGN KEY "+b.q(c.ForeignKey.Symbol)), nil
		}
		return b.alter(t, "DROP CONSTRAINT "+b.q(c.ForeignKey.Symbol)), nil
	case RenameTable:
		old := &Table{Name: c.OldName, Schema: t.Schema}
		return b.alter(old, "RENAME TO "+b.q(c.NewName)), nil
	case RenameColumn:
		return b.alter(t, "RENAME COLUMN "+b.q(c.OldName)+" TO "+b.q(c.NewName)), nil
	case ChangeComment:
		if c.Column == nil {
			return []string{b.tableComment(t, c.Comment)}, nil
		}
		return []string{b.columnComment(t, c.Column, c.Comment)}, nil
	case ChangePrimaryKey:
		var clauses []string
		if len(c.FromPrimaryKey) > 0 {
			if b.caps.Name == dialect.MySQL {
				clauses = append(clauses, "DROP PRIMARY KEY")
			} else {
				name := c.FromPrimaryKeyName
				if name == "" {
					name = Truncate(t.Name+"_pkey", b.caps.MaxIdentifier)
				}
				clauses = append(clauses, "DROP CONSTRAINT "+b.q(name))
			}
		}
		if len(c.PrimaryKey) > 0 {
			clauses = append(clauses, "ADD PRIMARY KEY ("+b.columns(c.PrimaryKey)+")")
		}
		return b.alter(t, clauses...), nil
	}
	return nil, fmt.Errorf("schema: unexpected change kind %s", c.Kind)
}

func partsOf(cols []string) []IndexPart {
	parts := make([]IndexPart, len(cols))
	for i, c := range cols {
		parts[i] = IndexPart{Column: c}
	}
	return parts
}

func (b builder) changeColumn(t *Table, from, to *Column) []string {
	if b.caps.Name == dialect.MySQL {
		return b.alter(t, "MODIFY COLUMN "+b.column(t, to))
	}
	var clauses []string
	col := "ALTER COLUMN " + b.q(to.Name)
	if nativeType(b.caps, from) != nativeType(b.caps, to) {
		clauses = append(clauses, col+" TYPE "+nativeType(b.caps, to))
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			clauses = append(clauses, col+" DROP NOT NULL")
		} else {
			clauses = append(clauses, col+" SET NOT NULL")
		}
	}
	if !sameDefault(from.Default, to.Default) {
		if to.Default == nil {
			clauses = append(clauses, col+" DROP DEFAULT")
		} else {
			clauses = append(clauses, col+" SET DEFAULT "+*to.Default)
		}
	}
	if !sameGeneration(from.Generation, to.Generation) {
		if to.Generation == GenIncrement || to.Generation == GenRowID {
			clauses = append(clauses, col+" ADD GENERATED BY DEFAULT AS IDENTITY")
		} else {
			clauses = append(clauses, col+" DROP IDENTITY IF EXISTS")
		}
	}
	return b.alter(t, clauses...)
}

// unsupported reports changes the dialect cannot run against an existing
// table.
func (b builder) unsupported(c Change) error {
	name := c.Table.QualifiedName()
	if !b.caps.AlterForeignKeys && slices.Contains([]ChangeKind{AddForeignKey, DropForeignKey}, c.Kind) {
		return relmap.NewCapabilityError(b.caps.Name, name, "foreign key change on existing table", c.ForeignKey.Symbol)
	}
	if !b.caps.AlterColumns {
		switch c.Kind {
		case ChangeColumn:
			return relmap.NewCapabilityError(b.caps.Name, name, "column change", c.Column.Name)
		case ChangePrimaryKey:
			return relmap.NewCapabilityError(b.caps.Name, name, "primary key change", "")
		case AddCheck, DropCheck:
			return relmap.NewCapabilityError(b.caps.Name, name, "check constraint change on existing table", c.Check.Name)
		case AddExclusion, DropExclusion:
			return relmap.NewCapabilityError(b.caps.Name, name, "exclusion constraint change on existing table", c.Exclusion.Name)
		}
	}
	return nil
}
