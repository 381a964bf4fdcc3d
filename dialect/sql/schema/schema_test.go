package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/schema/field"
)

func idColumn() *Column {
	return &Column{Name: "id", Type: field.TypeInt64, Generation: GenIncrement}
}

// parentChild returns the model used throughout the tests: children
// reference parents through a nullable key.
func parentChild() *Model {
	parents := NewTable("parents").
		AddPrimary(idColumn()).
		AddColumns(&Column{Name: "name", Type: field.TypeString, Size: 255})
	children := NewTable("children").
		AddPrimary(idColumn()).
		AddColumns(&Column{Name: "parent_id", Type: field.TypeInt64, Nullable: true}).
		AddForeignKeys(&ForeignKey{
			Columns:    []string{"parent_id"},
			RefTable:   "parents",
			RefColumns: []string{"id"},
			OnDelete:   Cascade,
		})
	return NewModel(parents, children)
}

func TestModel(t *testing.T) {
	m := parentChild()
	m.Tables = append(m.Tables, NewTable("logs").SetSchema("audit").AddPrimary(idColumn()))
	require.Equal(t, []string{"", "audit"}, m.Scopes())
	require.Len(t, m.Scope("").Tables, 2)

	logs, ok := m.Table("audit.logs")
	require.True(t, ok)
	require.Equal(t, "audit.logs", logs.QualifiedName())
	_, ok = m.Table("logs")
	require.False(t, ok)

	clone := m.Clone()
	clone.Tables[0].Columns[0].Name = "changed"
	clone.Tables[1].ForeignKeys[0].RefColumns[0] = "changed"
	require.Equal(t, "id", m.Tables[0].Columns[0].Name)
	require.Equal(t, "id", m.Tables[1].ForeignKeys[0].RefColumns[0])
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 63))
	require.Equal(t, "unlimited_identifier", Truncate("unlimited_identifier", 0))

	long := "a_very_long_table_name_with_a_very_long_column_name_and_suffix_fkey"
	got := Truncate(long, 63)
	require.Len(t, got, 63)
	require.Equal(t, long[:46], got[:46])
	require.Equal(t, got, Truncate(long, 63), "deterministic")
	require.NotEqual(t, got, Truncate(long+"2", 63))
}

func TestNormalizeNames(t *testing.T) {
	tbl := NewTable("users").AddPrimary(idColumn()).
		AddColumns(
			&Column{Name: "email", Type: field.TypeString},
			&Column{Name: "org_id", Type: field.TypeInt64},
		).
		AddIndex("", false, "email").
		AddUnique("", "org_id", "email").
		AddCheck("", "id > 0").
		AddCheck("", "org_id > 0").
		AddForeignKeys(&ForeignKey{Columns: []string{"org_id"}, RefTable: "orgs", RefColumns: []string{"id"}})
	tbl.Indexes = append(tbl.Indexes, &Index{Parts: []IndexPart{{Expr: "lower(email)"}}})
	m := normalizeNames(NewModel(tbl), 63)
	got := m.Tables[0]
	require.Equal(t, "users_email_idx", got.Indexes[0].Name)
	require.Equal(t, "users_expr1_idx", got.Indexes[1].Name)
	require.Equal(t, "users_org_id_email_key", got.Uniques[0].Name)
	require.Equal(t, "users_check", got.Checks[0].Name)
	require.Equal(t, "users_check1", got.Checks[1].Name)
	require.Equal(t, "users_org_id_fkey", got.ForeignKeys[0].Symbol)
	require.Empty(t, tbl.Indexes[0].Name, "input model is not modified")
}

func TestChangeReverse(t *testing.T) {
	m := parentChild()
	parents := m.Tables[0]
	tests := []struct {
		name   string
		change Change
		want   ChangeKind
	}{
		{"CreateTable", Change{Kind: CreateTable, Table: parents}, DropTable},
		{"DropColumn", Change{Kind: DropColumn, Table: parents, Column: parents.Columns[1]}, AddColumn},
		{"AddIndex", Change{Kind: AddIndex, Table: parents, Index: &Index{Name: "i"}}, DropIndex},
		{"DropForeignKey", Change{Kind: DropForeignKey, Table: parents, ForeignKey: &ForeignKey{Symbol: "fk"}}, AddForeignKey},
		{"AddExclusion", Change{Kind: AddExclusion, Table: parents, Exclusion: &Exclusion{Name: "x"}}, DropExclusion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.change.Reverse()
			require.Equal(t, tt.want, r.Kind)
			require.Equal(t, tt.change.Kind, r.Reverse().Kind)
		})
	}

	rename := Change{Kind: RenameTable, Table: NewTable("accounts"), OldName: "users", NewName: "accounts"}
	r := rename.Reverse()
	require.Equal(t, "accounts", r.OldName)
	require.Equal(t, "users", r.NewName)
	require.Equal(t, "users", r.Table.Name)

	from := &Column{Name: "a", Type: field.TypeInt32}
	to := &Column{Name: "a", Type: field.TypeInt64}
	r = Change{Kind: ChangeColumn, Table: parents, From: from, Column: to}.Reverse()
	require.Same(t, from, r.Column)
	require.Same(t, to, r.From)

	changes := []Change{{Kind: CreateTable, Table: parents}, {Kind: AddColumn, Table: parents, Column: from}}
	reversed := Reverse(changes)
	require.Equal(t, DropColumn, reversed[0].Kind)
	require.Equal(t, DropTable, reversed[1].Kind)
}

func TestChangeString(t *testing.T) {
	m := parentChild()
	children := m.Tables[1]
	require.Equal(t, "CreateTable children", Change{Kind: CreateTable, Table: children}.String())
	require.Equal(t, "AddForeignKey children(parent_id)", Change{Kind: AddForeignKey, Table: children, ForeignKey: children.ForeignKeys[0]}.String())
	require.Equal(t, "AddColumn children.parent_id", Change{Kind: AddColumn, Table: children, Column: children.Columns[1]}.String())
	require.Equal(t, "RenameColumn children.a -> b", Change{Kind: RenameColumn, Table: children, OldName: "a", NewName: "b"}.String())
}
