package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// compileSort compiles sort entries left to right into sort keys.
//
// Entries:
//
//	"name"    ascending
//	"+name"   ascending
//	"-name"   descending
//	{"status": ["pending", "active"]}  custom value order (rank ascending)
//
// A single string is accepted as a one-entry list.
func (s *session) compileSort(v ir.Value) ([]queryir.SortKey, error) {
	if v == nil {
		return nil, nil
	}

	var entries ir.Array
	switch val := v.(type) {
	case ir.String:
		entries = ir.Array{val}
	case ir.Array:
		entries = val
	default:
		return nil, malformed(keySort, "sort must be an array, got %s", kindOf(v))
	}

	keys := make([]queryir.SortKey, 0, len(entries))
	for i, entry := range entries {
		where := fmt.Sprintf("%s[%d]", keySort, i)
		var (
			key queryir.SortKey
			err error
		)
		switch e := entry.(type) {
		case ir.String:
			key, err = s.plainSortKey(string(e), where)
		case ir.Object:
			key, err = s.customSortKey(e, where)
		default:
			err = malformed(where, "sort entry must be a string or object, got %s", kindOf(entry))
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *session) plainSortKey(entry, where string) (queryir.SortKey, error) {
	path, dir := splitDirection(strings.TrimSpace(entry))
	if path == "" {
		return queryir.SortKey{}, malformed(where, "empty sort field")
	}
	field, err := s.resolver.Resolve(path)
	if err != nil {
		return queryir.SortKey{}, err
	}
	return queryir.SortKey{Field: field, Direction: dir}, nil
}

// customSortKey builds a rank key: value i of the list ranks i, every other
// value ranks len(list). Ranks always sort ascending, so a "-" prefix on
// the field is rejected.
func (s *session) customSortKey(entry ir.Object, where string) (queryir.SortKey, error) {
	if len(entry) != 1 {
		return queryir.SortKey{}, malformed(where, "custom order entry must have exactly one field, got %d", len(entry))
	}

	name := entry.SortedKeys()[0]
	values, ok := entry[name].(ir.Array)
	if !ok {
		return queryir.SortKey{}, malformed(where, "custom order for %q must be an array, got %s", name, kindOf(entry[name]))
	}
	if len(values) == 0 {
		return queryir.SortKey{}, malformed(where, "custom order for %q is empty", name)
	}

	path, dir := splitDirection(strings.TrimSpace(name))
	if dir == queryir.Desc {
		return queryir.SortKey{}, malformed(where, "custom order for %q cannot be descending", path)
	}
	field, err := s.resolver.Resolve(path)
	if err != nil {
		return queryir.SortKey{}, err
	}

	order := make([]ir.Value, len(values))
	for i, v := range values {
		coerced, err := s.predicates.coerceScalar(field, "sort", v, true)
		if err != nil {
			return queryir.SortKey{}, err
		}
		order[i] = coerced
	}
	return queryir.SortKey{Field: field, Direction: dir, CustomOrder: order}, nil
}

func splitDirection(entry string) (string, queryir.Direction) {
	switch {
	case strings.HasPrefix(entry, "-"):
		return strings.TrimSpace(entry[1:]), queryir.Desc
	case strings.HasPrefix(entry, "+"):
		return strings.TrimSpace(entry[1:]), queryir.Asc
	default:
		return entry, queryir.Asc
	}
}
