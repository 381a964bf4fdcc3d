package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/schema/field"
)

func TestValidateDiff(t *testing.T) {
	m := parentChild()
	parents, children := m.Tables[0], m.Tables[1]
	changes := []Change{
		{Kind: DropTable, Table: children},
		{Kind: DropColumn, Table: parents, Column: parents.Columns[1]},
		{Kind: AddColumn, Table: parents, Column: &Column{Name: "code", Type: field.TypeString}},
		{Kind: ChangeColumn, Table: parents,
			From:   &Column{Name: "title", Type: field.TypeString, Size: 255, Nullable: true},
			Column: &Column{Name: "title", Type: field.TypeText, Size: 100}},
		{Kind: AddUnique, Table: parents, Unique: &Unique{Name: "parents_code_key", Columns: []string{"code"}}},
	}

	result := ValidateDiff(changes)
	require.True(t, result.HasErrors())
	require.True(t, result.HasBreakingChanges())
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "children: table will be dropped", result.Errors[0].Error())
	assert.Equal(t, "parents.name: column will be dropped", result.Errors[1].Error())
	assert.Equal(t, "parents.title", result.Errors[2].Table+"."+result.Errors[2].Column)
	require.Len(t, result.Warnings, 4)
	require.Error(t, result.Err())
	require.Contains(t, result.String(), "[BREAKING]")

	result = ValidateDiff(changes, AllowDropTable(), AllowDropColumn(), AllowNullToNotNull())
	require.False(t, result.HasErrors())
	require.NoError(t, result.Err())
	require.Len(t, result.Warnings, 7)
	require.True(t, result.HasBreakingChanges())

	require.Equal(t, "No issues found", ValidateDiff(nil).String())
}

func TestValidateTable(t *testing.T) {
	caps := dialect.MustCapabilities(dialect.MySQL)
	tbl := NewTable("t").AddColumns(
		&Column{Name: "a", Type: field.TypeString},
		&Column{Name: "a", Type: field.TypeString},
		&Column{Name: "b", Type: field.TypeInvalid},
		&Column{Name: "c", Type: field.TypeString, Generation: GenIncrement},
	).AddIndex("t_x_idx", false, "x")
	tbl.AddForeignKeys(&ForeignKey{Symbol: "t_fk", Columns: []string{"a"}, RefTable: "u"})

	var msgs []string
	for _, e := range ValidateTable(tbl, caps).Errors {
		msgs = append(msgs, e.Error())
	}
	require.Equal(t, []string{
		"t: table has no primary key",
		"t.a: duplicate column name",
		"t.b: invalid column type",
		"t.c: increment column must be an integer",
		"t.c: increment column outside the primary key is not supported by mysql",
		`t: index "t_x_idx" references non-existent column "x"`,
		`t: foreign key "t_fk" has 1 columns and 0 referenced columns`,
	}, msgs)

	require.False(t, ValidateTable(parentChild().Tables[0], caps).HasErrors())
}

func TestValidateSchema(t *testing.T) {
	caps := dialect.MustCapabilities(dialect.Postgres)
	require.False(t, ValidateSchema(parentChild(), caps).HasErrors())

	m := parentChild()
	m.Tables[1].ForeignKeys[0].RefTable = "missing"
	m.Tables = append(m.Tables, m.Tables[0].Clone())
	result := ValidateSchema(m, caps)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0].Message, "duplicate table name")
	require.Contains(t, result.Errors[1].Message, `non-existent table "missing"`)

	// A full unique index can back a reference.
	m = parentChild()
	m.Tables[0].AddIndex("parents_name_idx", true, "name")
	m.Tables[1].ForeignKeys[0].RefColumns = []string{"name"}
	require.False(t, ValidateSchema(m, caps).HasErrors())
	m.Tables[0].Indexes[0].Where = "name IS NOT NULL"
	require.True(t, ValidateSchema(m, caps).HasErrors())
}
