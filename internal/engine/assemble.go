package engine

import (
	"encoding/json"
	"strings"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/queryir"
)

// Item is one result record. Related records nest under their relationship
// name: a list for many, an object (or nil) for one.
type Item map[string]any

// Assemble folds flat joined rows into nested items.
//
// Rows sharing a root primary key become one item, in first-seen order,
// and related records are told apart by their own primary keys (the plan's
// Keys). Keys the projection did not select are left out of the items. A
// related record whose key is NULL (an outer join miss) is dropped. Plans
// without Keys fall back to folding on the selected values.
//
// Joins that contribute no projected field (filter or sort only) do not
// appear in the output.
func Assemble(p *queryir.Plan, rows []queryir.Row) []Item {
	a := newAssembler(p)
	out := make([]Item, 0, len(rows))
	for _, part := range a.partition(rows, "", a.rootIdentity()) {
		out = append(out, a.object(part, ""))
	}
	return out
}

type assembler struct {
	plan     *queryir.Plan
	direct   map[string][]queryir.FieldRef // prefix → fields owned by it
	children map[string][]queryir.JoinSpec // prefix → projected child joins
	keys     map[string]queryir.FieldRef   // prefix → primary key
}

func newAssembler(p *queryir.Plan) *assembler {
	a := &assembler{
		plan:     p,
		direct:   make(map[string][]queryir.FieldRef),
		children: make(map[string][]queryir.JoinSpec),
		keys:     make(map[string]queryir.FieldRef, len(p.Keys)),
	}
	for _, k := range p.Keys {
		a.keys[k.Prefix()] = k
	}
	projected := make(map[string]bool)
	for _, f := range p.Projection {
		prefix := f.Prefix()
		a.direct[prefix] = append(a.direct[prefix], f)
		for prefix != "" {
			projected[prefix] = true
			prefix = parent(prefix)
		}
	}
	// p.Joins is sorted by path, so children are added in path order.
	for _, j := range p.Joins {
		if projected[j.Path] {
			a.children[parent(j.Path)] = append(a.children[parent(j.Path)], j)
		}
	}
	return a
}

// rootIdentity returns the fields that tell root records apart.
func (a *assembler) rootIdentity() []queryir.FieldRef {
	if k, ok := a.keys[""]; ok {
		return []queryir.FieldRef{k}
	}
	for _, f := range a.direct[""] {
		if f.Alias == a.plan.Table && f.Column == a.plan.PrimaryKey {
			return []queryir.FieldRef{f}
		}
	}
	return a.direct[""]
}

// identity returns the fields that tell records under prefix apart: its
// key, else its direct fields, or every projected descendant when it
// selects none itself.
func (a *assembler) identity(prefix string) []queryir.FieldRef {
	if k, ok := a.keys[prefix]; ok {
		return []queryir.FieldRef{k}
	}
	if fields := a.direct[prefix]; len(fields) > 0 {
		return fields
	}
	var out []queryir.FieldRef
	for _, f := range a.plan.Projection {
		if strings.HasPrefix(f.Path, prefix+".") {
			out = append(out, f)
		}
	}
	return out
}

// object builds the record at prefix from rows that all describe it.
func (a *assembler) object(rows []queryir.Row, prefix string) Item {
	item := make(Item, len(a.direct[prefix])+len(a.children[prefix]))
	for _, f := range a.direct[prefix] {
		item[f.Name] = rows[0][f.Path]
	}

	for _, j := range a.children[prefix] {
		parts := a.partition(rows, j.Path, a.identity(j.Path))
		if j.Cardinality == catalog.Many {
			list := make([]Item, 0, len(parts))
			for _, part := range parts {
				list = append(list, a.object(part, j.Path))
			}
			item[j.Relationship] = list
			continue
		}
		if len(parts) == 0 {
			item[j.Relationship] = nil
			continue
		}
		item[j.Relationship] = a.object(parts[0], j.Path)
	}
	return item
}

// partition splits rows by the values of the identity fields, keeping
// first-seen order. Below the root, rows whose identity is all NULL are
// dropped.
func (a *assembler) partition(rows []queryir.Row, prefix string, identity []queryir.FieldRef) [][]queryir.Row {
	var (
		order []string
		parts = make(map[string][]queryir.Row)
	)
	for _, row := range rows {
		values := make([]any, len(identity))
		null := true
		for i, f := range identity {
			values[i] = row[f.Path]
			if values[i] != nil {
				null = false
			}
		}
		if prefix != "" && null {
			continue
		}

		key := identityKey(values)
		if _, ok := parts[key]; !ok {
			order = append(order, key)
		}
		parts[key] = append(parts[key], row)
	}

	out := make([][]queryir.Row, len(order))
	for i, key := range order {
		out[i] = parts[key]
	}
	return out
}

// identityKey encodes values with their JSON types, so 1 and "1" differ.
func identityKey(values []any) string {
	typed := make([][2]any, len(values))
	for i, v := range values {
		typed[i] = [2]any{kind(v), v}
	}
	b, err := json.Marshal(typed)
	if err != nil {
		return ""
	}
	return string(b)
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "s"
	case bool:
		return "b"
	case int64, int, float64:
		return "n"
	default:
		return "t"
	}
}

func parent(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}
