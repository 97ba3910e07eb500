package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

const selectAll = "*"

// compileSelect compiles the projection.
//
//	["id", "name", {"posts": ["title", {"comments": ["body"]}]}]
//
// "*" selects every direct field of the current entity in sorted order; a
// bare relationship name selects every direct field of its target. Without
// a select list, all direct fields of the root are returned. Duplicate
// paths keep their first position.
func (s *session) compileSelect(v ir.Value) ([]queryir.FieldRef, error) {
	p := &projection{seen: map[string]bool{}}

	if s.cfg.IncludePrimaryKey {
		if err := s.addPath(p, s.root.PrimaryKey); err != nil {
			return nil, err
		}
	}

	if v == nil {
		if err := s.selectAll(p, s.root, ""); err != nil {
			return nil, err
		}
		return p.fields, nil
	}

	arr, ok := v.(ir.Array)
	if !ok {
		return nil, malformed(keySelect, "select must be an array, got %s", kindOf(v))
	}
	if err := s.selectList(p, s.root, "", arr, keySelect); err != nil {
		return nil, err
	}
	return p.fields, nil
}

type projection struct {
	fields []queryir.FieldRef
	seen   map[string]bool
}

func (s *session) selectList(p *projection, entity *catalog.Entity, prefix string, items ir.Array, where string) error {
	for i, item := range items {
		at := fmt.Sprintf("%s[%d]", where, i)
		switch it := item.(type) {
		case ir.String:
			if err := s.selectName(p, entity, prefix, string(it)); err != nil {
				return err
			}
		case ir.Object:
			for _, rel := range it.SortedKeys() {
				sub, ok := it[rel].(ir.Array)
				if !ok {
					return malformed(at, "selection for %q must be an array, got %s", rel, kindOf(it[rel]))
				}
				target, err := s.resolver.ResolveRelationship(prefix + rel)
				if err != nil {
					return err
				}
				if err := s.selectList(p, target, prefix+rel+".", sub, at+"."+rel); err != nil {
					return err
				}
			}
		default:
			return malformed(at, "select entry must be a string or object, got %s", kindOf(item))
		}
	}
	return nil
}

func (s *session) selectName(p *projection, entity *catalog.Entity, prefix, name string) error {
	if name == selectAll {
		return s.selectAll(p, entity, prefix)
	}
	if s.resolver.IsRelationship(entity, name) {
		target, err := s.resolver.ResolveRelationship(prefix + name)
		if err != nil {
			return err
		}
		return s.selectAll(p, target, prefix+name+".")
	}
	return s.addPath(p, prefix+name)
}

func (s *session) selectAll(p *projection, entity *catalog.Entity, prefix string) error {
	for _, name := range entity.DirectFields() {
		if err := s.addPath(p, prefix+name); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) addPath(p *projection, path string) error {
	if p.seen[path] {
		return nil
	}
	field, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}
	p.seen[path] = true
	p.fields = append(p.fields, field)
	return nil
}

// selectKeys returns the primary key of the root and of every relationship
// path the projection reaches, in path order. Assembly folds rows on them,
// so two related records with equal selected values stay distinct.
func (s *session) selectKeys(fields []queryir.FieldRef) ([]queryir.FieldRef, error) {
	prefixes := map[string]bool{"": true}
	for _, f := range fields {
		for prefix := f.Prefix(); prefix != "" && !prefixes[prefix]; prefix = parentPath(prefix) {
			prefixes[prefix] = true
		}
	}
	ordered := make([]string, 0, len(prefixes))
	for prefix := range prefixes {
		ordered = append(ordered, prefix)
	}
	sort.Strings(ordered)

	keys := make([]queryir.FieldRef, 0, len(ordered))
	for _, prefix := range ordered {
		path := s.root.PrimaryKey
		if prefix != "" {
			target, err := s.resolver.ResolveRelationship(prefix)
			if err != nil {
				return nil, err
			}
			path = prefix + "." + target.PrimaryKey
		}
		key, err := s.resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parentPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return ""
}
