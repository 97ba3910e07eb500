package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/compiler"
	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/queryir"
	"github.com/roach88/querymate/internal/store"
)

const blogSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, status TEXT);
CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT);
INSERT INTO users VALUES (1, 'Ada', 'active'), (2, 'Bob', 'pending'), (3, 'Cy', 'active');
INSERT INTO posts VALUES (1, 1, 'a'), (2, 1, 'b'), (3, 3, 'c'), (4, 9, 'orphan');
`

func blogCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	cat, err := catalog.Build(catalog.Definition{Entities: map[string]catalog.EntityDef{
		"users": {
			Fields: map[string]catalog.FieldDef{
				"id":     {Type: "number"},
				"name":   {Type: "string"},
				"status": {Type: "string"},
			},
			Relationships: map[string]catalog.RelationshipDef{
				"posts": {Target: "posts", Cardinality: "many", ForeignKey: "user_id"},
			},
		},
		"posts": {
			Fields: map[string]catalog.FieldDef{
				"id":      {Type: "number"},
				"user_id": {Type: "number"},
				"title":   {Type: "string"},
			},
			Relationships: map[string]catalog.RelationshipDef{
				"author": {Target: "users", Cardinality: "one", LocalKey: "user_id"},
			},
		},
	}})
	require.NoError(t, err)
	return compiler.New(cat, config.Default())
}

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Exec(context.Background(), blogSchema))

	return New(blogCompiler(t), s, WithLogger(discardLogger()))
}

func TestAssemble_ManyRelationship(t *testing.T) {
	p, err := blogCompiler(t).CompileJSON("users", []byte(`{"select":["name",{"posts":["title"]}],"join_type":"left"}`))
	require.NoError(t, err)

	rows := []queryir.Row{
		{"id": int64(1), "name": "Ada", "posts.id": int64(1), "posts.title": "a"},
		{"id": int64(1), "name": "Ada", "posts.id": int64(2), "posts.title": "b"},
		{"id": int64(2), "name": "Bob", "posts.id": nil, "posts.title": nil},
	}

	assert.Equal(t, []Item{
		{"id": int64(1), "name": "Ada", "posts": []Item{{"title": "a"}, {"title": "b"}}},
		{"id": int64(2), "name": "Bob", "posts": []Item{}},
	}, Assemble(p, rows))
}

func TestAssemble_FilterOnlyJoinIsHidden(t *testing.T) {
	p, err := blogCompiler(t).CompileJSON("users", []byte(`{"select":["name"],"filter":{"posts.title":"a"}}`))
	require.NoError(t, err)
	require.Len(t, p.Joins, 1)

	items := Assemble(p, []queryir.Row{{"id": int64(1), "name": "Ada"}})
	assert.Equal(t, []Item{{"id": int64(1), "name": "Ada"}}, items)
}

func TestAssemble_WithoutPrimaryKey(t *testing.T) {
	cfg := config.Default()
	cfg.IncludePrimaryKey = false
	cat, err := catalog.Build(catalog.Definition{Entities: map[string]catalog.EntityDef{
		"users": {Fields: map[string]catalog.FieldDef{"id": {Type: "number"}, "name": {Type: "string"}}},
	}})
	require.NoError(t, err)

	p, err := compiler.New(cat, cfg).CompileJSON("users", []byte(`{"select":["name"]}`))
	require.NoError(t, err)

	require.Len(t, p.Keys, 1)
	assert.Equal(t, "id", p.Keys[0].Path)

	// Two users share a name; the unselected key keeps them apart.
	items := Assemble(p, []queryir.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Ada"},
	})
	assert.Equal(t, []Item{{"name": "Ada"}, {"name": "Ada"}}, items)
}

func TestAssemble_DuplicateRelatedValues(t *testing.T) {
	p, err := blogCompiler(t).CompileJSON("users", []byte(`{"select":["name",{"posts":["title"]}]}`))
	require.NoError(t, err)

	rows := []queryir.Row{
		{"id": int64(1), "name": "Ada", "posts.id": int64(1), "posts.title": "same"},
		{"id": int64(1), "name": "Ada", "posts.id": int64(2), "posts.title": "same"},
	}

	assert.Equal(t, []Item{
		{"id": int64(1), "name": "Ada", "posts": []Item{{"title": "same"}, {"title": "same"}}},
	}, Assemble(p, rows))
}

func TestAssemble_WithoutKeysFoldsOnValues(t *testing.T) {
	p, err := blogCompiler(t).CompileJSON("users", []byte(`{"select":["name"]}`))
	require.NoError(t, err)
	p.Keys = nil

	items := Assemble(p, []queryir.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Bob"},
	})
	assert.Equal(t, []Item{{"id": int64(1), "name": "Ada"}, {"id": int64(2), "name": "Bob"}}, items)
}

func TestAssemble_Empty(t *testing.T) {
	p, err := blogCompiler(t).CompileJSON("users", []byte(`{}`))
	require.NoError(t, err)

	items := Assemble(p, nil)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestIdentityKey_DistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, identityKey([]any{int64(1)}), identityKey([]any{"1"}))
	assert.Equal(t, identityKey([]any{"a", nil}), identityKey([]any{"a", nil}))
}

func TestQuery_NestedManyAgainstSQLite(t *testing.T) {
	e := setupEngine(t)

	resp, err := e.QueryJSON(context.Background(), "users", []byte(
		`{"select":["name",{"posts":["title"]}],"join_type":"left","sort":["id","posts.title"],"include_pagination":true}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Nil(t, resp.Grouped)

	assert.Equal(t, []Item{
		{"id": int64(1), "name": "Ada", "posts": []Item{{"title": "a"}, {"title": "b"}}},
		{"id": int64(2), "name": "Bob", "posts": []Item{}},
		{"id": int64(3), "name": "Cy", "posts": []Item{{"title": "c"}}},
	}, resp.Result.Items)

	require.NotNil(t, resp.Result.Pagination)
	assert.Equal(t, 3, resp.Result.Pagination.Total)
	assert.Equal(t, 1, resp.Result.Pagination.Pages)
}

func TestQuery_DuplicateChildContentAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Exec(ctx, blogSchema))
	require.NoError(t, s.Exec(ctx, `INSERT INTO posts VALUES (5, 2, 'same'), (6, 2, 'same')`))
	e := New(blogCompiler(t), s, WithLogger(discardLogger()))

	resp, err := e.QueryJSON(ctx, "users", []byte(
		`{"filter":{"id":2},"select":["name",{"posts":["title"]}],"sort":["posts.id"]}`))
	require.NoError(t, err)

	assert.Equal(t, []Item{
		{"id": int64(2), "name": "Bob", "posts": []Item{{"title": "same"}, {"title": "same"}}},
	}, resp.Result.Items)
}

func TestQuery_NestedOneAgainstSQLite(t *testing.T) {
	e := setupEngine(t)

	resp, err := e.QueryJSON(context.Background(), "posts", []byte(
		`{"select":["title",{"author":["name"]}],"join_type":"left"}`))
	require.NoError(t, err)

	assert.Equal(t, []Item{
		{"id": int64(1), "title": "a", "author": Item{"name": "Ada"}},
		{"id": int64(2), "title": "b", "author": Item{"name": "Ada"}},
		{"id": int64(3), "title": "c", "author": Item{"name": "Cy"}},
		{"id": int64(4), "title": "orphan", "author": nil},
	}, resp.Result.Items)
}

func TestQuery_GroupedAgainstSQLite(t *testing.T) {
	e := setupEngine(t)

	resp, err := e.QueryJSON(context.Background(), "users", []byte(
		`{"select":["name"],"group_by":"status","limit":1,"include_pagination":true}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Grouped)

	g := resp.Grouped
	assert.False(t, g.Truncated)
	require.Len(t, g.Groups, 2)

	assert.Equal(t, "active", g.Groups[0].Key)
	assert.Equal(t, []Item{{"id": int64(1), "name": "Ada"}}, g.Groups[0].Items)
	assert.Equal(t, 2, g.Groups[0].Pagination.Total)
	require.NotNil(t, g.Groups[0].Pagination.NextPage)
	assert.Equal(t, 2, *g.Groups[0].Pagination.NextPage)

	assert.Equal(t, "pending", g.Groups[1].Key)
	assert.Equal(t, []Item{{"id": int64(2), "name": "Bob"}}, g.Groups[1].Items)
}

func TestQuery_CompileErrorPassesThrough(t *testing.T) {
	e := setupEngine(t)

	_, err := e.QueryJSON(context.Background(), "users", []byte(`{"filter":{"nope":1}}`))
	require.Error(t, err)
	assert.True(t, compiler.IsCode(err, compiler.ErrCodeUnknownField))
	assert.False(t, IsRuntimeError(err))
}
