package store

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/compiler"
	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/queryir"
)

//go:embed testdata/blog.sql
var blogSQL string

// createTestStore opens a store in a temp dir loaded with the blog fixture.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Exec(context.Background(), blogSQL); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return s
}

func compilePlan(t *testing.T, entity, doc string) *queryir.Plan {
	t.Helper()
	cat, err := catalog.Build(catalog.Definition{Entities: map[string]catalog.EntityDef{
		"users": {
			Fields: map[string]catalog.FieldDef{
				"id":         {Type: "number"},
				"name":       {Type: "string"},
				"email":      {Type: "string"},
				"age":        {Type: "number"},
				"active":     {Type: "boolean"},
				"status":     {Type: "string"},
				"created_at": {Type: "datetime", TimezoneAware: true},
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
		},
	}})
	require.NoError(t, err)

	p, err := compiler.New(cat, config.Default()).CompileJSON(entity, []byte(doc))
	require.NoError(t, err)
	return p
}

func ids(rows []queryir.Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r["id"].(int64)
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"synchronous":  "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestFetch_FilterAndSort(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rows, err := s.Fetch(ctx, compilePlan(t, "users", `{"filter":{"age":{"gt":18}},"sort":["name"],"select":["name","active"]}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 4}, ids(rows))
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, true, rows[0]["active"])
}

func TestFetch_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Fetch(context.Background(), compilePlan(t, "users", `{"filter":{"age":{"gt":100}}}`))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFetch_LikeOperators(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		filter string
		want   []int64
	}{
		{`{"title":{"cont":"go"}}`, []int64{3}},
		{`{"title":{"i_cont":"go"}}`, []int64{1, 3}},
		{`{"title":{"cont":"100%"}}`, []int64{2}},
		{`{"title":{"start":"go_"}}`, []int64{3}},
		{`{"title":{"matches":"G_ %"}}`, []int64{1}},
		{`{"title":{"not_i_cont_any":["go","sql"]}}`, []int64{}},
		{`{"title":{"end_any":["tips","%"]}}`, []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			rows, err := s.Fetch(ctx, compilePlan(t, "posts", `{"filter":`+tt.filter+`,"select":["id"]}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestFetch_NullAndPresence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		filter string
		want   []int64
	}{
		{`{"email":{"blank":true}}`, []int64{2, 4}},
		{`{"email":{"present":true}}`, []int64{1, 3, 5}},
		{`{"age":{"is_null":true}}`, []int64{5}},
		{`{"status":null}`, []int64{5}},
		{`{"active":{"false":true}}`, []int64{2, 5}},
		{`{"age":{"in":[17,52]}}`, []int64{2, 3}},
		{`{"age":{"in":[]}}`, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			rows, err := s.Fetch(ctx, compilePlan(t, "users", `{"filter":`+tt.filter+`,"select":["id"]}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestFetch_CustomOrder(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Fetch(context.Background(), compilePlan(t, "users", `{"sort":[{"status":["pending","active"]}],"select":["id"]}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 4, 3, 5}, ids(rows))
}

func TestFetch_TemporalComparison(t *testing.T) {
	s := createTestStore(t)

	// 2024-02-01T00:00:00-02:00 is 02:00 UTC.
	rows, err := s.Fetch(context.Background(), compilePlan(t, "users", `{"filter":{"created_at":{"lt":"2024-02-01T00:00:00-02:00"}},"select":["id"]}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(rows))
}

func TestCount_DistinctRoots(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, compilePlan(t, "users", `{"filter":{"posts.title":{"i_cont":"o"}}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, compilePlan(t, "users", `{}`))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestGroupCounts_TimeBuckets(t *testing.T) {
	s := createTestStore(t)

	groups, err := s.GroupCounts(context.Background(), compilePlan(t, "users",
		`{"group_by":{"field":"created_at","granularity":"month","tz_offset":-3}}`))
	require.NoError(t, err)

	assert.Equal(t, []queryir.GroupCount{
		{Key: nil, Total: 1},
		{Key: "2024-01", Total: 2},
		{Key: "2024-02", Total: 2},
	}, groups)
}

func TestGroupCounts_Zone(t *testing.T) {
	s := createTestStore(t)

	// America/Sao_Paulo has no DST in 2024 (UTC-3).
	groups, err := s.GroupCounts(context.Background(), compilePlan(t, "users",
		`{"filter":{"created_at":{"is_not_null":true}},"group_by":{"field":"created_at","granularity":"month","timezone":"America/Sao_Paulo"}}`))
	require.NoError(t, err)

	assert.Equal(t, []queryir.GroupCount{
		{Key: "2024-01", Total: 2},
		{Key: "2024-02", Total: 2},
	}, groups)
}

func TestFetchGroup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := compilePlan(t, "users", `{"group_by":{"field":"created_at","granularity":"month","tz_offset":-3},"select":["id"]}`)

	rows, err := s.FetchGroup(ctx, p, "2024-01", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(rows))

	rows, err = s.FetchGroup(ctx, p, "2024-02", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(rows))

	rows, err = s.FetchGroup(ctx, p, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids(rows))
}

func TestGroupCounts_PlainField(t *testing.T) {
	s := createTestStore(t)

	groups, err := s.GroupCounts(context.Background(), compilePlan(t, "users", `{"group_by":"active"}`))
	require.NoError(t, err)
	assert.Equal(t, []queryir.GroupCount{
		{Key: false, Total: 2},
		{Key: true, Total: 3},
	}, groups)
}

func TestBucketFunction(t *testing.T) {
	tests := []struct {
		value  string
		gran   string
		offset int64
		zone   string
		want   string
	}{
		{"2024-01-31 23:30:00", "month", -180, "", "2024-01"},
		{"2024-02-01 01:00:00", "month", -180, "", "2024-01"},
		{"2024-02-01T01:00:00Z", "day", 0, "", "2024-02-01"},
		{"2024-07-01 03:30:00", "hour", 0, "America/New_York", "2024-06-30T23"},
		{"2024-05-06", "year", 0, "", "2024"},
		{"2024-05-06 07:08:09.5", "minute", 90, "", "2024-05-06T08:38"},
	}

	for _, tt := range tests {
		got, err := bucket(tt.value, tt.gran, tt.offset, tt.zone)
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}

	_, err := bucket("yesterday", "day", 0, "")
	assert.Error(t, err)
	_, err = bucket("2024-01-01", "week", 0, "")
	assert.Error(t, err)
	_, err = bucket("2024-01-01", "day", 0, "Nowhere/City")
	assert.Error(t, err)
}

func TestGroupOnDeclaredTemporalColumns(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Exec(ctx, `
CREATE TABLE events (id INTEGER PRIMARY KEY, day DATE, at DATETIME);
INSERT INTO events VALUES
  (1, '2024-01-31', '2024-01-31 23:30:00'),
  (2, '2024-01-31', '2024-01-31 23:30:00'),
  (3, '2024-02-01', '2024-02-01 01:00:00');
`))

	cat, err := catalog.Build(catalog.Definition{Entities: map[string]catalog.EntityDef{
		"events": {Fields: map[string]catalog.FieldDef{
			"id":  {Type: "number"},
			"day": {Type: "date"},
			"at":  {Type: "datetime"},
		}},
	}})
	require.NoError(t, err)
	c := compiler.New(cat, config.Default())

	tests := []struct {
		field string
		keys  []any
	}{
		{"at", []any{"2024-01-31 23:30:00", "2024-02-01 01:00:00"}},
		{"day", []any{"2024-01-31", "2024-02-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			p, err := c.CompileJSON("events", []byte(`{"group_by":"`+tt.field+`","select":["id"]}`))
			require.NoError(t, err)

			groups, err := s.GroupCounts(ctx, p)
			require.NoError(t, err)
			require.Len(t, groups, 2)
			assert.Equal(t, tt.keys, []any{groups[0].Key, groups[1].Key})
			assert.Equal(t, 2, groups[0].Total)
			assert.Equal(t, 1, groups[1].Total)

			rows, err := s.FetchGroup(ctx, p, groups[0].Key, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2}, ids(rows))

			rows, err = s.FetchGroup(ctx, p, groups[1].Key, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []int64{3}, ids(rows))
		})
	}
}
