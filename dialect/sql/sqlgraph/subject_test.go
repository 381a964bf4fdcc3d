package sqlgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
)

type op struct {
	op    Op
	table string
}

func ops(subjects []*Subject) []op {
	out := make([]op, len(subjects))
	for i, s := range subjects {
		out[i] = op{s.Op, s.Table}
	}
	return out
}

func TestBuildSubjects_Insert(t *testing.T) {
	g := blogGraph(t)
	user := NewEntity("User").Set("name", "a8m")
	post := NewEntity("Post").Set("title", "hello")
	comment := NewEntity("Comment").Set("body", "first")
	post.SetEdge("comments", comment)
	user.SetEdge("posts", post)

	subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.Postgres}, IntentSave, user)
	require.NoError(t, err)
	require.Equal(t, []op{{OpInsert, "users"}, {OpInsert, "posts"}, {OpInsert, "comments"}}, ops(subjects))

	require.Equal(t, map[string]any{"name": "a8m"}, subjects[0].Values)
	posts := subjects[1]
	require.Equal(t, map[string]any{"title": "hello", "user_id": nil}, posts.Values)
	require.Len(t, posts.Refs, 1)
	require.Equal(t, "user_id", posts.Refs[0].Column)
	require.Same(t, subjects[0], posts.Refs[0].To)
	require.False(t, posts.Refs[0].Breakable(), "posts.user_id is required")
	require.True(t, subjects[2].Refs[0].Nullable)
}

func TestBuildSubjects_Update(t *testing.T) {
	g := blogGraph(t)
	cfg := Config{Schema: g, Dialect: dialect.SQLite}

	t.Run("Dirty", func(t *testing.T) {
		user := LoadEntity("User", 1, map[string]any{"name": "a8m"})
		subjects, err := BuildSubjects(context.Background(), cfg, IntentSave, user)
		require.NoError(t, err)
		require.Empty(t, subjects, "unchanged entities are skipped")

		user.Set("name", "nati")
		subjects, err = BuildSubjects(context.Background(), cfg, IntentSave, user)
		require.NoError(t, err)
		require.Equal(t, []op{{OpUpdate, "users"}}, ops(subjects))
		require.Equal(t, map[string]any{"name": "nati"}, subjects[0].Values)
	})

	t.Run("Relation", func(t *testing.T) {
		user := LoadEntity("User", 1, nil)
		post := LoadEntity("Post", 2, map[string]any{"title": "hello"})
		user.AddEdge("posts", post)
		subjects, err := BuildSubjects(context.Background(), cfg, IntentSave, user)
		require.NoError(t, err)
		require.Equal(t, []op{{OpUpdate, "posts"}}, ops(subjects))
		require.Equal(t, map[string]any{"user_id": 1}, subjects[0].Values)
	})

	t.Run("Detach", func(t *testing.T) {
		post := LoadEntity("Post", 2, nil)
		comment := LoadEntity("Comment", 3, nil).LoadEdge("post", post)
		comment.SetEdge("post")
		subjects, err := BuildSubjects(context.Background(), cfg, IntentSave, comment)
		require.NoError(t, err)
		require.Equal(t, []op{{OpUpdate, "comments"}}, ops(subjects))
		require.Equal(t, map[string]any{"post_id": nil}, subjects[0].Values)

		user := LoadEntity("User", 1, nil)
		post = LoadEntity("Post", 2, nil).LoadEdge("author", user)
		post.SetEdge("author")
		_, err = BuildSubjects(context.Background(), cfg, IntentSave, post)
		require.ErrorIs(t, err, relmap.ErrInvalidGraph)
		require.ErrorContains(t, err, `column "user_id" is not nullable`)
	})
}

func TestBuildSubjects_Invalid(t *testing.T) {
	g := blogGraph(t)
	cfg := Config{Schema: g, Dialect: dialect.MySQL}
	tests := []struct {
		name  string
		roots func() []*Entity
		err   string
	}{
		{
			name: "new target without cascade",
			roots: func() []*Entity {
				return []*Entity{NewEntity("Comment").SetEdge("post", NewEntity("Post"))}
			},
			err: `through edge "post" that does not cascade inserts`,
		},
		{
			name:  "unknown type",
			roots: func() []*Entity { return []*Entity{NewEntity("Group")} },
			err:   `unknown entity type "Group"`,
		},
		{
			name:  "unknown field",
			roots: func() []*Entity { return []*Entity{NewEntity("User").Set("email", "a@b")} },
			err:   `unknown field "email" of User`,
		},
		{
			name: "wrong target type",
			roots: func() []*Entity {
				return []*Entity{NewEntity("User").SetEdge("posts", NewEntity("Comment"))}
			},
			err: "edge posts of User(new",
		},
		{
			name: "many targets on a unique edge",
			roots: func() []*Entity {
				return []*Entity{NewEntity("Comment").SetEdge("post", LoadEntity("Post", 1, nil), LoadEntity("Post", 2, nil))}
			},
			err: "M2O edge post of Comment",
		},
		{
			name: "removed entity",
			roots: func() []*Entity {
				e := LoadEntity("User", 1, nil)
				e.removed = true
				return []*Entity{e}
			},
			err: "User(1) was removed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSubjects(context.Background(), cfg, IntentSave, tt.roots()...)
			require.ErrorIs(t, err, relmap.ErrInvalidGraph)
			require.ErrorContains(t, err, tt.err)
		})
	}

	_, err := BuildSubjects(context.Background(), Config{Dialect: dialect.MySQL}, IntentSave)
	require.ErrorIs(t, err, relmap.ErrInvalidGraph)
	_, err = BuildSubjects(context.Background(), Config{Schema: g, Dialect: "oracle"}, IntentSave)
	require.Error(t, err)
}

func TestBuildSubjects_UUID(t *testing.T) {
	g := blogGraph(t)
	post := NewEntity("Post").Set("title", "hello").SetEdge("author", LoadEntity("User", 1, nil))
	tag := NewEntity("Tag").Set("name", "go")
	post.SetEdge("tags", tag)
	subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.Postgres}, IntentSave, post)
	require.NoError(t, err)
	require.Equal(t, []op{{OpInsert, "posts"}, {OpInsert, "post_tags"}, {OpInsert, "tags"}}, ops(subjects))
	require.IsType(t, uuid.UUID{}, tag.ID, "client-side key")
	require.Equal(t, tag.ID, subjects[2].Values["id"])
	require.Equal(t, 1, subjects[0].Values["user_id"])

	join := subjects[1]
	require.Len(t, join.Refs, 2)
	require.Equal(t, "post_id", join.Refs[0].Column)
	require.Equal(t, "tag_id", join.Refs[1].Column)
	require.Nil(t, join.Entity)
}

func TestBuildSubjects_M2M(t *testing.T) {
	g := blogGraph(t)
	cfg := Config{Schema: g, Dialect: dialect.Postgres}
	t1, t2 := LoadEntity("Tag", "t1", nil), LoadEntity("Tag", "t2", nil)
	post := LoadEntity("Post", 1, nil).LoadEdge("tags", t1)
	post.SetEdge("tags", t2)
	// The inverse edge describes the same join row.
	t2.AddEdge("posts", post)
	subjects, err := BuildSubjects(context.Background(), cfg, IntentSave, post, t2)
	require.NoError(t, err)
	require.Equal(t, []op{{OpInsert, "post_tags"}, {OpDelete, "post_tags"}}, ops(subjects))
	require.Equal(t, map[string]any{"post_id": 1, "tag_id": "t2"}, subjects[0].Values)
	require.Equal(t, map[string]any{"post_id": 1, "tag_id": "t1"}, subjects[1].Where)
}

func TestBuildSubjects_Orphans(t *testing.T) {
	g := blogGraph(t)
	graph := func() (*Entity, *Entity, *Entity) {
		c1, c2 := LoadEntity("Comment", 10, nil), LoadEntity("Comment", 11, nil)
		post := LoadEntity("Post", 1, nil).LoadEdge("comments", c1, c2)
		post.SetEdge("comments", c1)
		return post, c1, c2
	}

	t.Run("Snapshot", func(t *testing.T) {
		post, _, _ := graph()
		subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL}, IntentSave, post)
		require.NoError(t, err)
		require.Equal(t, []op{{OpDelete, "comments"}}, ops(subjects))
		require.Equal(t, 11, subjects[0].Entity.ID)
	})

	t.Run("Fetcher", func(t *testing.T) {
		tests := []struct {
			name   string
			values []any
			err    error
			want   []op
		}{
			{name: "confirmed", values: []any{int64(1)}, want: []op{{OpDelete, "comments"}}},
			{name: "confirmed bytes", values: []any{[]byte("1")}, want: []op{{OpDelete, "comments"}}},
			{name: "re-parented bytes", values: []any{[]byte("2")}, want: []op{}},
			{name: "gone", want: []op{}},
			{name: "re-parented", values: []any{int64(2)}, want: []op{}},
			{name: "ambiguous", values: []any{int64(1), int64(1)}, err: relmap.ErrOrphanResolution},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				post, _, _ := graph()
				var calls []string
				fetcher := FetchFunc(func(_ context.Context, table, key string, id any, column string) ([]any, error) {
					calls = append(calls, table+"."+column)
					assert.Equal(t, "id", key)
					assert.Equal(t, 11, id)
					return tt.values, nil
				})
				subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL, Fetcher: fetcher}, IntentSave, post)
				require.Equal(t, []string{"comments.post_id"}, calls)
				if tt.err != nil {
					require.ErrorIs(t, err, tt.err)
					return
				}
				require.NoError(t, err)
				require.Equal(t, tt.want, ops(subjects))
			})
		}
	})

	t.Run("FetchError", func(t *testing.T) {
		post, _, _ := graph()
		fetcher := FetchFunc(func(context.Context, string, string, any, string) ([]any, error) {
			return nil, errors.New("connection reset")
		})
		_, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL, Fetcher: fetcher}, IntentSave, post)
		require.ErrorContains(t, err, "connection reset")
	})

	t.Run("Attached", func(t *testing.T) {
		post, _, c2 := graph()
		other := LoadEntity("Post", 2, nil).SetEdge("comments", c2)
		subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL}, IntentSave, post, other)
		require.NoError(t, err)
		require.Equal(t, []op{{OpUpdate, "comments"}}, ops(subjects), "moved to the other post")
		require.Equal(t, map[string]any{"post_id": 2}, subjects[0].Values)
	})

	t.Run("Nullify", func(t *testing.T) {
		g := blogGraph(t)
		post, _ := g.Node("Post")
		post.Edges["comments"].Spec.OrphanRemoval = false
		root, _, _ := graph()
		subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL}, IntentSave, root)
		require.NoError(t, err)
		require.Equal(t, []op{{OpUpdate, "comments"}}, ops(subjects))
		require.Equal(t, map[string]any{"post_id": nil}, subjects[0].Values)

		post.Edges["comments"].Spec.Nullable = false
		root, _, _ = graph()
		_, err = BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.MySQL}, IntentSave, root)
		require.ErrorIs(t, err, relmap.ErrInvalidGraph)
	})
}

func TestBuildSubjects_Remove(t *testing.T) {
	g := blogGraph(t)
	comment := LoadEntity("Comment", 100, nil)
	post := LoadEntity("Post", 10, nil).LoadEdge("comments", comment)
	user := LoadEntity("User", 1, nil).LoadEdge("posts", post)

	subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.Postgres}, IntentRemove, user)
	require.NoError(t, err)
	require.Equal(t, []op{
		{OpDelete, "users"},
		{OpDelete, "posts"},
		{OpDelete, "comments"},
		{OpDelete, "post_tags"},
	}, ops(subjects))
	require.Equal(t, map[string]any{"post_id": 10}, subjects[3].Where)
	require.Same(t, subjects[0], subjects[1].Refs[0].To, "posts reference users")
	require.Same(t, subjects[1], subjects[2].Refs[0].To, "comments reference posts")

	t.Run("New", func(t *testing.T) {
		subjects, err := BuildSubjects(context.Background(), Config{Schema: g, Dialect: dialect.Postgres}, IntentRemove, NewEntity("User"))
		require.NoError(t, err)
		require.Empty(t, subjects)
	})
}

func TestBuildSubjects_SoftRemove(t *testing.T) {
	g := blogGraph(t)
	cfg := Config{Schema: g, Dialect: dialect.Postgres}
	post := LoadEntity("Post", 10, nil).LoadEdge("comments", LoadEntity("Comment", 100, nil))
	subjects, err := BuildSubjects(context.Background(), cfg, IntentSoftRemove, post)
	require.NoError(t, err)
	require.Equal(t, []op{{OpSoftDelete, "posts"}}, ops(subjects), "comments do not cascade soft removals")

	subjects, err = BuildSubjects(context.Background(), cfg, IntentRecover, post)
	require.NoError(t, err)
	require.Equal(t, []op{{OpRecover, "posts"}}, ops(subjects))

	_, err = BuildSubjects(context.Background(), cfg, IntentSoftRemove, LoadEntity("User", 1, nil))
	require.ErrorIs(t, err, relmap.ErrInvalidGraph)
	require.ErrorContains(t, err, "User does not support soft deletion")
}
