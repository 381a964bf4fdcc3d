package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/dialect/sql"
	sqlschema "github.com/syssam/relmap/dialect/sql/schema"
	"github.com/syssam/relmap/dialect/sql/sqlgraph"
	"github.com/syssam/relmap/schema"
	"github.com/syssam/relmap/schema/edge"
	"github.com/syssam/relmap/schema/field"
	"github.com/syssam/relmap/schema/index"
)

func table(t *testing.T, m *sqlschema.Model, name string) *sqlschema.Table {
	t.Helper()
	tb, ok := m.Table(name)
	require.True(t, ok, "table %q", name)
	return tb
}

func columns(tb *sqlschema.Table) []string {
	out := make([]string, len(tb.Columns))
	for i, c := range tb.Columns {
		out[i] = c.Name
	}
	return out
}

func TestLoad(t *testing.T) {
	res, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	require.Len(t, res.Entities, 5)

	var names []string
	for _, tb := range res.Model.Tables {
		names = append(names, tb.QualifiedName())
	}
	require.Equal(t, []string{"users", "posts", "comments", "tags", "user_profiles", "post_tags"}, names)

	users := table(t, res.Model, "users")
	assert.Equal(t, []string{"id", "created_at", "updated_at", "email", "name"}, columns(users))
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	id, _ := users.Column("id")
	assert.Equal(t, sqlschema.GenIncrement, id.Generation)
	assert.Equal(t, field.TypeInt64, id.Type)
	require.Len(t, users.Uniques, 1)
	assert.Equal(t, []string{"email"}, users.Uniques[0].Columns)
	require.Len(t, users.Checks, 1)
	assert.Equal(t, "email_not_empty", users.Checks[0].Name)

	posts := table(t, res.Model, "posts")
	assert.Equal(t, []string{"id", "deleted_at", "title", "status", "author_id"}, columns(posts))
	author, _ := posts.Column("author_id")
	assert.False(t, author.Nullable)
	assert.Equal(t, field.TypeInt64, author.Type)
	require.Len(t, posts.ForeignKeys, 1)
	assert.Equal(t, &sqlschema.ForeignKey{
		Columns:    []string{"author_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
		OnDelete:   sqlschema.Cascade,
	}, posts.ForeignKeys[0])
	require.Len(t, posts.Indexes, 2)
	assert.Equal(t, []string{"deleted_at"}, posts.Indexes[0].Columns())
	assert.Equal(t, []string{"title", "author_id"}, posts.Indexes[1].Columns())
	assert.True(t, posts.Indexes[1].Unique)
	assert.Equal(t, "deleted_at IS NULL", posts.Indexes[1].Where)
	status, _ := posts.Column("status")
	assert.Equal(t, []string{"draft", "published"}, status.Enums)

	comments := table(t, res.Model, "comments")
	post, _ := comments.Column("post_id")
	assert.True(t, post.Nullable)
	assert.Equal(t, sqlschema.InitiallyDeferred, comments.ForeignKeys[0].Deferrable)

	tags := table(t, res.Model, "tags")
	tagID, _ := tags.Column("id")
	assert.Equal(t, sqlschema.GenUUID, tagID.Generation)

	profiles := table(t, res.Model, "user_profiles")
	code, _ := profiles.Column("code")
	assert.Equal(t, sqlschema.GenNone, code.Generation)
	assert.EqualValues(t, 36, code.Size)
	assert.Equal(t, []string{"code", "bio", "user_id"}, columns(profiles))
	require.Len(t, profiles.Uniques, 1)
	assert.Equal(t, []string{"user_id"}, profiles.Uniques[0].Columns)

	join := table(t, res.Model, "post_tags")
	assert.Equal(t, []string{"post_id", "tag_id"}, join.PrimaryKey)
	tagCol, _ := join.Column("tag_id")
	assert.Equal(t, field.TypeUUID, tagCol.Type)
	require.Len(t, join.ForeignKeys, 2)
	for _, fk := range join.ForeignKeys {
		assert.Equal(t, sqlschema.Cascade, fk.OnDelete)
	}
}

func TestLoad_Graph(t *testing.T) {
	res, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	g := res.Graph

	user, ok := g.Node("User")
	require.True(t, ok)
	require.Equal(t, sqlgraph.CascadeAll, user.Edges["posts"].Spec.Cascade)
	require.Equal(t, sqlgraph.O2M, user.Edges["posts"].Spec.Rel)
	require.Equal(t, sqlgraph.O2O, user.Edges["profile"].Spec.Rel)
	require.Contains(t, user.Fields, "created_at")

	post, _ := g.Node("Post")
	assert.Equal(t, "deleted_at", post.SoftDelete)
	author := post.Edges["author"].Spec
	assert.Equal(t, sqlgraph.M2O, author.Rel)
	assert.True(t, author.Inverse)
	assert.False(t, author.Nullable)
	assert.Equal(t, []string{"author_id"}, author.Columns)
	comments := post.Edges["comments"].Spec
	assert.True(t, comments.OrphanRemoval)
	assert.True(t, comments.Deferrable)
	assert.True(t, comments.Nullable)
	assert.Equal(t, sqlgraph.CascadeInsert|sqlgraph.CascadeUpdate|sqlgraph.CascadeRemove, comments.Cascade)
	tags := post.Edges["tags"].Spec
	assert.Equal(t, sqlgraph.M2M, tags.Rel)
	assert.Equal(t, "post_tags", tags.Table)
	assert.Equal(t, []string{"post_id", "tag_id"}, tags.Columns)

	tag, _ := g.Node("Tag")
	assert.True(t, tag.Edges["posts"].Spec.Inverse)
	assert.Equal(t, sqlschema.GenUUID, tag.ID.Generation)

	profile, _ := g.Node("Profile")
	assert.Equal(t, "user_profiles", profile.Table)
	assert.Equal(t, "code", profile.ID.Column)

	plan, err := sqlschema.PlanSynchronize(dialect.Postgres, res.Model, sqlschema.NewModel())
	require.NoError(t, err)
	require.False(t, plan.Empty())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  string
	}{
		{
			name: "unknown key",
			doc:  "entities:\n  - name: User\n    colour: red\n",
			err:  "field colour not found",
		},
		{
			name: "unknown type",
			doc:  "entities:\n  - name: User\n    fields:\n      - {name: age, type: number}\n",
			err:  `field "age": field: unknown type "number"`,
		},
		{
			name: "unknown mixin",
			doc:  "entities:\n  - name: User\n    mixins: [audit]\n",
			err:  `unknown mixin "audit"`,
		},
		{
			name: "edge direction",
			doc:  "entities:\n  - name: User\n    edges:\n      - {name: pets, to: Pet, from: Pet}\n",
			err:  "both to and from are set",
		},
		{
			name: "edge target",
			doc:  "entities:\n  - name: User\n    edges:\n      - {name: pets}\n",
			err:  "one of to or from is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorContains(t, err, tt.err)
		})
	}

	entities, err := Parse(nil)
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestCompile_Errors(t *testing.T) {
	user := func(edges ...*edge.Descriptor) *schema.Entity {
		return &schema.Entity{Name: "User", Edges: edges}
	}
	pet := func(edges ...*edge.Descriptor) *schema.Entity {
		return &schema.Entity{Name: "Pet", Edges: edges}
	}
	tests := []struct {
		name     string
		entities []*schema.Entity
		err      string
	}{
		{
			name:     "duplicate entity",
			entities: []*schema.Entity{user(), user()},
			err:      `duplicate entity "User"`,
		},
		{
			name:     "unknown type",
			entities: []*schema.Entity{user(edge.To("pets", "Pet").Descriptor())},
			err:      `edge User.pets: unknown type "Pet"`,
		},
		{
			name:     "missing reference",
			entities: []*schema.Entity{user(), pet(edge.From("owner", "User").Ref("pets").Descriptor())},
			err:      "edge Pet.owner: reference User.pets not found",
		},
		{
			name: "two back-references",
			entities: []*schema.Entity{
				user(edge.To("pets", "Pet").Descriptor()),
				pet(edge.From("owner", "User").Ref("pets").Unique().Descriptor(), edge.From("keeper", "User").Ref("pets").Unique().Descriptor()),
			},
			err: "has more than one back-reference",
		},
		{
			name: "orphan removal on M2M",
			entities: []*schema.Entity{
				user(edge.To("pets", "Pet").OrphanRemoval().Descriptor()),
				pet(edge.From("owners", "User").Ref("pets").Descriptor()),
			},
			err: "orphan removal on M2M edge",
		},
		{
			name: "bad cascade",
			entities: []*schema.Entity{
				user(edge.To("pets", "Pet").Cascade("persist").Descriptor()),
				pet(),
			},
			err: `unknown cascade "persist"`,
		},
		{
			name: "bad action",
			entities: []*schema.Entity{
				user(edge.To("pets", "Pet").OnDelete("drop").Descriptor()),
				pet(),
			},
			err: `unknown referential action "DROP"`,
		},
		{
			name: "column taken",
			entities: []*schema.Entity{
				user(edge.To("pets", "Pet").Descriptor()),
				{Name: "Pet", Fields: []*field.Descriptor{field.Int64("owner_id").Descriptor()}, Edges: []*edge.Descriptor{edge.From("owner", "User").Ref("pets").Unique().Descriptor()}},
			},
			err: `column "owner_id" of "pets" is already used`,
		},
		{
			name: "index on foreign edge",
			entities: []*schema.Entity{
				{Name: "User", Edges: []*edge.Descriptor{edge.To("pets", "Pet").Descriptor()}, Indexes: []*index.Descriptor{index.Edges("pets").Descriptor()}},
				pet(),
			},
			err: `index on edge "pets" that holds no column of "users"`,
		},
		{
			name: "invalid entity",
			entities: []*schema.Entity{
				{Name: "User", Fields: []*field.Descriptor{field.Enum("status").Descriptor()}},
			},
			err: "enum without values",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.entities...)
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestLoad_SQLite(t *testing.T) {
	ctx := context.Background()
	entities, err := Parse([]byte(`
entities:
  - name: User
    fields:
      - {name: name, type: string, size: 255}
    edges:
      - {name: posts, to: Post, cascade: [all]}
  - name: Post
    fields:
      - {name: title, type: string, size: 255}
    edges:
      - {name: author, from: User, ref: posts, unique: true, required: true, on_delete: cascade}
`))
	require.NoError(t, err)
	res, err := Compile(entities...)
	require.NoError(t, err)

	drv, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "relmap.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	m, err := sqlschema.NewMigrate(drv)
	require.NoError(t, err)
	_, err = m.Synchronize(ctx, res.Model)
	require.NoError(t, err)

	u := sqlgraph.NewEntity("User").Set("name", "a8m")
	u.AddEdge("posts",
		sqlgraph.NewEntity("Post").Set("title", "first"),
		sqlgraph.NewEntity("Post").Set("title", "second"),
	)
	require.NoError(t, sqlgraph.Save(ctx, drv, res.Graph, u))
	require.NotNil(t, u.ID)

	var n int
	require.NoError(t, drv.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE author_id = ?", u.ID).Scan(&n))
	require.Equal(t, 2, n)

	require.NoError(t, sqlgraph.Remove(ctx, drv, res.Graph, u))
	require.NoError(t, drv.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n))
	require.Zero(t, n)
}
