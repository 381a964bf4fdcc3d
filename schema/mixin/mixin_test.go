package mixin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/schema"
	"github.com/syssam/relmap/schema/field"
	"github.com/syssam/relmap/schema/mixin"
)

func names(fields []*field.Descriptor) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func TestBuiltin(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		indexes int
		soft    bool
	}{
		{"time", []string{"created_at", "updated_at"}, 0, false},
		{"create-time", []string{"created_at"}, 0, false},
		{"update_time", []string{"updated_at"}, 0, false},
		{"soft_delete", []string{"deleted_at"}, 1, true},
		{"TIME_SOFT_DELETE", []string{"created_at", "updated_at", "deleted_at"}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := mixin.Named(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, names(m.Fields()))
			assert.Len(t, m.Indexes(), tt.indexes)
			sd, ok := m.(schema.SoftDeleter)
			assert.Equal(t, tt.soft, ok)
			if ok {
				assert.Equal(t, "deleted_at", sd.SoftDeleteField())
			}
		})
	}
	_, err := mixin.Named("audit")
	require.ErrorContains(t, err, `unknown mixin "audit"`)
}

func TestSoftDelete(t *testing.T) {
	f := mixin.SoftDelete{}.Fields()[0]
	assert.Equal(t, field.TypeTime, f.Type)
	assert.True(t, f.Optional)
	assert.Nil(t, f.Default)

	for _, f := range (mixin.Time{}).Fields() {
		require.NotNil(t, f.Default)
		assert.Equal(t, "CURRENT_TIMESTAMP", *f.Default)
		assert.False(t, f.Optional)
	}
}

type audit struct {
	mixin.Schema
}

func (audit) Fields() []*field.Descriptor {
	return []*field.Descriptor{field.String("created_by").Optional().Descriptor()}
}

func TestEntity(t *testing.T) {
	e := &schema.Entity{
		Name:   "BlogPost",
		Mixins: []schema.Mixin{audit{}, mixin.TimeSoftDelete{}},
		Fields: []*field.Descriptor{field.String("title").Descriptor()},
	}
	require.NoError(t, e.Err())
	assert.Equal(t, "blog_posts", e.Table())
	assert.Equal(t, "deleted_at", e.SoftDeleteField())
	assert.Equal(t, []string{"created_by", "created_at", "updated_at", "deleted_at", "title"}, names(e.AllFields()))
	assert.Len(t, e.AllIndexes(), 1)
	assert.Equal(t, field.TypeInt64, e.Key().Type)

	e.Fields = append(e.Fields, field.String("created_by").Descriptor())
	require.ErrorContains(t, e.Err(), `duplicate field "created_by"`)
}
