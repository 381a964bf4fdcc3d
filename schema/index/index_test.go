package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/schema/index"
)

func TestIndex(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *index.Descriptor
		validate func(t *testing.T, desc *index.Descriptor)
	}{
		{
			name:  "single_field",
			build: func() *index.Descriptor { return index.Fields("name").Descriptor() },
			validate: func(t *testing.T, desc *index.Descriptor) {
				assert.Equal(t, []string{"name"}, desc.Fields)
				assert.Empty(t, desc.Edges)
				assert.False(t, desc.Unique)
				assert.Empty(t, desc.StorageKey)
			},
		},
		{
			name: "unique_with_edges",
			build: func() *index.Descriptor {
				return index.Fields("title").Edges("author").Unique().StorageKey("post_title").Descriptor()
			},
			validate: func(t *testing.T, desc *index.Descriptor) {
				assert.Equal(t, []string{"title"}, desc.Fields)
				assert.Equal(t, []string{"author"}, desc.Edges)
				assert.True(t, desc.Unique)
				assert.Equal(t, "post_title", desc.StorageKey)
			},
		},
		{
			name: "partial",
			build: func() *index.Descriptor {
				return index.Edges("owner").Fields("email").Where("deleted_at IS NULL").Descriptor()
			},
			validate: func(t *testing.T, desc *index.Descriptor) {
				assert.Equal(t, []string{"owner"}, desc.Edges)
				assert.Equal(t, []string{"email"}, desc.Fields)
				assert.Equal(t, "deleted_at IS NULL", desc.Where)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := tt.build()
			require.NoError(t, desc.Err())
			tt.validate(t, desc)
		})
	}
}

func TestDescriptor_Err(t *testing.T) {
	require.ErrorContains(t, index.Fields().Descriptor().Err(), "missing columns")
	require.ErrorContains(t, index.Fields("a", "a").Descriptor().Err(), `duplicate column "a"`)
}
