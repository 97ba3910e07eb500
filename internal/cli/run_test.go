package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querymate/internal/store"
)

// createBlogDB builds a SQLite database from the blog fixture.
func createBlogDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.db")

	script, err := os.ReadFile(blogSchema)
	require.NoError(t, err)

	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Exec(context.Background(), string(script)))
	require.NoError(t, st.Close())
	return path
}

func TestRunQueryJSON(t *testing.T) {
	db := createBlogDB(t)
	doc := writeDoc(t, "q.json",
		`{"filter": {"active": true}, "select": ["name", {"posts": ["title"]}], "sort": ["id"], "include_pagination": true}`)

	out, err := execute(t, "", "--format", "json", "run", "-c", blogCatalog, "--db", db, "users", doc)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Items []struct {
				ID    int    `json:"id"`
				Name  string `json:"name"`
				Posts []struct {
					Title string `json:"title"`
				} `json:"posts"`
			} `json:"items"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Items, 3)
	assert.Equal(t, "Ada", resp.Data.Items[0].Name)
	assert.Len(t, resp.Data.Items[0].Posts, 2)
	assert.Equal(t, "Cy", resp.Data.Items[1].Name)
	assert.Equal(t, "Dee", resp.Data.Items[2].Name)
	assert.Equal(t, 3, resp.Data.Pagination.Total)
}

func TestRunGroupedText(t *testing.T) {
	db := createBlogDB(t)
	doc := writeDoc(t, "q.yaml", "group_by: active\nselect: [name]\nlimit: 1\n")

	out, err := execute(t, "", "run", "-c", blogCatalog, "--db", db, "--parallelism", "2", "users", doc)
	require.NoError(t, err)

	var resp struct {
		Groups []struct {
			Key   any              `json:"key"`
			Items []map[string]any `json:"items"`
		} `json:"groups"`
		Truncated bool `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, false, resp.Groups[0].Key)
	assert.Equal(t, true, resp.Groups[1].Key)
	assert.Len(t, resp.Groups[0].Items, 1)
	assert.Equal(t, "bob", resp.Groups[0].Items[0]["name"])
	assert.Equal(t, "Ada", resp.Groups[1].Items[0]["name"])
	assert.False(t, resp.Truncated)
}

func TestRunCompileError(t *testing.T) {
	db := createBlogDB(t)
	doc := writeDoc(t, "q.json", `{"group_by": {"field": "created_at", "granularity": "week"}}`)

	out, err := execute(t, "", "run", "-c", blogCatalog, "--db", db, "users", doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_GRANULARITY]")
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	doc := writeDoc(t, "q.json", `{}`)

	_, err := execute(t, "", "run", "-c", blogCatalog, "users", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunDatabaseNotFound(t *testing.T) {
	doc := writeDoc(t, "q.json", `{}`)
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := execute(t, "", "run", "-c", blogCatalog, "--db", db, "users", doc)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "run must not create the database")
}

func TestRunRejectsPostgres(t *testing.T) {
	db := createBlogDB(t)
	doc := writeDoc(t, "q.json", `{}`)

	out, err := execute(t, "", "--dialect", "postgres", "run", "-c", blogCatalog, "--db", db, "users", doc)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "only available to compile")
}

func TestRunMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	doc := writeDoc(t, "q.json", `{}`)
	out, err := execute(t, "", "run", "-c", blogCatalog, "--db", path, "users", doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
