package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/queryir"
)

func blogDefinition() catalog.Definition {
	return catalog.Definition{Entities: map[string]catalog.EntityDef{
		"users": {
			Fields: map[string]catalog.FieldDef{
				"id":         {Type: "number"},
				"name":       {Type: "string"},
				"email":      {Type: "string"},
				"age":        {Type: "number"},
				"active":     {Type: "boolean"},
				"status":     {Type: "string"},
				"birthday":   {Type: "date"},
				"created_at": {Type: "datetime", TimezoneAware: true},
				"updated_at": {Type: "datetime"},
			},
			Relationships: map[string]catalog.RelationshipDef{
				"posts": {Target: "posts", Cardinality: "many", ForeignKey: "user_id"},
			},
		},
		"posts": {
			Fields: map[string]catalog.FieldDef{
				"id":           {Type: "number"},
				"user_id":      {Type: "number"},
				"title":        {Type: "string"},
				"published":    {Type: "boolean"},
				"published_at": {Type: "datetime"},
			},
			Relationships: map[string]catalog.RelationshipDef{
				"author":   {Target: "users", Cardinality: "one", LocalKey: "user_id"},
				"comments": {Target: "comments", Cardinality: "many", ForeignKey: "post_id"},
			},
		},
		"comments": {
			Fields: map[string]catalog.FieldDef{
				"id":      {Type: "number"},
				"post_id": {Type: "number"},
				"user_id": {Type: "number"},
				"body":    {Type: "string"},
			},
			Relationships: map[string]catalog.RelationshipDef{
				"author": {Target: "users", Cardinality: "one", LocalKey: "user_id"},
			},
		},
	}}
}

func testCatalog(t *testing.T) *catalog.Static {
	t.Helper()
	cat, err := catalog.Build(blogDefinition())
	require.NoError(t, err)
	return cat
}

func testCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	return New(testCatalog(t), config.Default(), opts...)
}

func compileJSON(t *testing.T, c *Compiler, entity, doc string) *queryir.Plan {
	t.Helper()
	plan, err := c.CompileJSON(entity, []byte(doc))
	require.NoError(t, err)
	return plan
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, IsCode(err, code), "expected %s, got %v", code, err)
}

// depth returns the height of a predicate tree (a leaf has depth 1).
func depth(n queryir.Node) int {
	switch node := n.(type) {
	case queryir.And:
		return 1 + maxDepth(node.Nodes)
	case queryir.Or:
		return 1 + maxDepth(node.Nodes)
	case nil:
		return 0
	default:
		return 1
	}
}

func maxDepth(nodes []queryir.Node) int {
	m := 0
	for _, n := range nodes {
		m = max(m, depth(n))
	}
	return m
}
