package schema

import (
	"fmt"
	"slices"
)

// Apply returns a copy of m with the changes applied in order. It is used to
// preview the schema a plan produces; the input model is not modified.
func Apply(m *Model, changes []Change) (*Model, error) {
	m = m.Clone()
	for _, c := range changes {
		if err := apply(m, c); err != nil {
			return nil, fmt.Errorf("schema: apply %s: %w", c, err)
		}
	}
	return m, nil
}

func apply(m *Model, c Change) error {
	if c.Kind == CreateTable {
		if _, ok := m.Table(c.Table.QualifiedName()); ok {
			return fmt.Errorf("table already exists")
		}
		m.Tables = append(m.Tables, c.Table.Clone())
		return nil
	}
	if c.Kind == RenameTable {
		t, ok := m.Table(QualifiedName(c.Table.Schema, c.OldName))
		if !ok {
			return fmt.Errorf("table %q not found", c.OldName)
		}
		t.Name = c.NewName
		oldQ, newQ := QualifiedName(c.Table.Schema, c.OldName), t.QualifiedName()
		for _, other := range m.Tables {
			for _, fk := range other.ForeignKeys {
				if fk.RefTable == oldQ {
					fk.RefTable = newQ
				}
			}
		}
		return nil
	}
	t, ok := m.Table(c.Table.QualifiedName())
	if !ok {
		return fmt.Errorf("table not found")
	}
	switch c.Kind {
	case DropTable:
		m.Tables = slices.DeleteFunc(m.Tables, func(x *Table) bool { return x == t })
	case AddColumn:
		if _, exists := t.Column(c.Column.Name); exists {
			return fmt.Errorf("column already exists")
		}
		t.Columns = append(t.Columns, c.Column.Clone())
	case DropColumn:
		t.Columns = slices.DeleteFunc(t.Columns, func(x *Column) bool { return x.Name == c.Column.Name })
	case ChangeColumn:
		i := slices.IndexFunc(t.Columns, func(x *Column) bool { return x.Name == c.Column.Name })
		if i < 0 {
			return fmt.Errorf("column not found")
		}
		col := c.Column.Clone()
		col.Comment = t.Columns[i].Comment
		t.Columns[i] = col
	case RenameColumn:
		col, ok := t.Column(c.OldName)
		if !ok {
			return fmt.Errorf("column %q not found", c.OldName)
		}
		col.Name = c.NewName
		renameIn := func(cols []string) {
			for i := range cols {
				if cols[i] == c.OldName {
					cols[i] = c.NewName
				}
			}
		}
		renameIn(t.PrimaryKey)
		for _, idx := range t.Indexes {
			for i := range idx.Parts {
				if idx.Parts[i].Column == c.OldName {
					idx.Parts[i].Column = c.NewName
				}
			}
		}
		for _, u := range t.Uniques {
			renameIn(u.Columns)
		}
		for _, fk := range t.ForeignKeys {
			renameIn(fk.Columns)
		}
		for _, other := range m.Tables {
			for _, fk := range other.ForeignKeys {
				if fk.RefTable == t.QualifiedName() {
					renameIn(fk.RefColumns)
				}
			}
		}
	case AddIndex:
		t.Indexes = append(t.Indexes, c.Index.Clone())
	case DropIndex:
		t.Indexes = slices.DeleteFunc(t.Indexes, func(x *Index) bool { return x.Name == c.Index.Name })
	case AddUnique:
		t.Uniques = append(t.Uniques, c.Unique.Clone())
	case DropUnique:
		t.Uniques = slices.DeleteFunc(t.Uniques, func(x *Unique) bool { return x.Name == c.Unique.Name })
	case AddCheck:
		t.Checks = append(t.Checks, &Check{Name: c.Check.Name, Expr: c.Check.Expr})
	case DropCheck:
		t.Checks = slices.DeleteFunc(t.Checks, func(x *Check) bool { return x.Name == c.Check.Name })
	case AddExclusion:
		t.Exclusions = append(t.Exclusions, c.Exclusion.Clone())
	case DropExclusion:
		t.Exclusions = slices.DeleteFunc(t.Exclusions, func(x *Exclusion) bool { return x.Name == c.Exclusion.Name })
	case AddForeignKey:
		t.ForeignKeys = append(t.ForeignKeys, c.ForeignKey.Clone())
	case DropForeignKey:
		t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(x *ForeignKey) bool { return x.Symbol == c.ForeignKey.Symbol })
	case ChangeComment:
		if c.Column == nil {
			t.Comment = c.Comment
			break
		}
		col, ok := t.Column(c.Column.Name)
		if !ok {
			return fmt.Errorf("column not found")
		}
		col.Comment = c.Comment
	case ChangePrimaryKey:
		t.PrimaryKey = slices.Clone(c.PrimaryKey)
		t.PrimaryKeyName = ""
	default:
		return fmt.Errorf("unknown change kind %d", c.Kind)
	}
	return nil
}
