package sqlschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	a := Merge(
		Table("users"),
		Schema("auth"),
		Check("name_len", "length(name) > 0"),
		Table("accounts"),
		Check("age", "age >= 0"),
		Exclusion("no_overlap", "EXCLUDE USING gist (during WITH &&)"),
		Comment("people"),
	)
	assert.Equal(t, "accounts", a.Table)
	assert.Equal(t, "auth", a.Schema)
	assert.Equal(t, "people", a.Comment)
	assert.False(t, a.View)
	assert.Equal(t, map[string]string{"name_len": "length(name) > 0", "age": "age >= 0"}, a.Checks)
	assert.Len(t, a.Exclusions, 1)
	assert.True(t, Merge(View(), Table("v")).View)
	assert.Equal(t, Annotation{}, Merge())
}

func TestParseCascadeAction(t *testing.T) {
	tests := []struct {
		in   string
		want CascadeAction
	}{
		{"", NoAction},
		{"cascade", Cascade},
		{"set_null", SetNull},
		{" Set Default ", SetDefault},
		{"RESTRICT", Restrict},
		{"no action", NoAction},
	}
	for _, tt := range tests {
		got, err := ParseCascadeAction(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseCascadeAction("delete")
	require.EqualError(t, err, `sqlschema: unknown referential action "DELETE"`)
}
