package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/dialect"
)

func TestCapabilitiesOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"postgres", dialect.Postgres},
		{"postgres+otel", dialect.Postgres},
		{"pgx", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"sqlite", dialect.SQLite},
		{"sqlite3", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := dialect.CapabilitiesOf(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name)
		})
	}
	_, err := dialect.CapabilitiesOf("oracle")
	require.EqualError(t, err, `dialect: unsupported dialect "oracle"`)
	assert.Panics(t, func() { dialect.MustCapabilities("oracle") })
}

func TestCapabilities(t *testing.T) {
	pg := dialect.MustCapabilities(dialect.Postgres)
	assert.True(t, pg.DeferrableFK)
	assert.True(t, pg.ExclusionConstraints)
	assert.Equal(t, 63, pg.MaxIdentifier)
	assert.Equal(t, dialect.UpsertOnConflict, pg.Upsert)

	my := dialect.MustCapabilities(dialect.MySQL)
	assert.False(t, my.DeferrableFK)
	assert.False(t, my.TransactionalDDL)
	assert.False(t, my.PartialIndexes)
	assert.Equal(t, dialect.UpsertOnDuplicateKey, my.Upsert)

	lite := dialect.MustCapabilities(dialect.SQLite)
	assert.False(t, lite.AlterForeignKeys)
	assert.False(t, lite.AlterColumns)
	assert.Zero(t, lite.MaxIdentifier)
}

func TestQuote(t *testing.T) {
	pg := dialect.MustCapabilities(dialect.Postgres)
	assert.Equal(t, `"users"`, pg.Quote("users"))
	assert.Equal(t, `"a""b"`, pg.Quote(`a"b`))
	assert.Equal(t, `"public"."users"`, pg.QuoteTable("public", "users"))

	my := dialect.MustCapabilities(dialect.MySQL)
	assert.Equal(t, "`users`", my.Quote("users"))
	assert.Equal(t, "`a``b`", my.Quote("a`b"))
	assert.Equal(t, "`users`", my.QuoteTable("", "users"))
}
