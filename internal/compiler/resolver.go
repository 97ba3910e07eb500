package compiler

import (
	"sort"
	"strings"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/queryir"
)

// Resolver turns dotted field paths into field references and records the
// joins they require.
//
// One Resolver serves one compilation. Every relationship chain is joined at
// most once no matter how many paths traverse it; all joins share the
// resolver's join kind.
type Resolver struct {
	cat   catalog.Catalog
	root  *catalog.Entity
	kind  queryir.JoinKind
	joins map[string]queryir.JoinSpec // by relationship path
	owner map[string]string           // alias → relationship path
}

// NewResolver returns a resolver rooted at an entity.
func NewResolver(cat catalog.Catalog, root *catalog.Entity, kind queryir.JoinKind) *Resolver {
	return &Resolver{
		cat:   cat,
		root:  root,
		kind:  kind,
		joins: map[string]queryir.JoinSpec{},
		owner: map[string]string{root.Table: ""},
	}
}

// Resolve resolves a path ending in a direct field.
//
// Fails with UnknownField if a segment is not in the catalog,
// NotARelationship if a non-final segment is a plain field, and
// TypeMismatch if the final segment is a relationship.
func (r *Resolver) Resolve(path string) (queryir.FieldRef, error) {
	segments, err := splitPath(path)
	if err != nil {
		return queryir.FieldRef{}, err
	}

	entity, alias, err := r.walk(path, segments[:len(segments)-1])
	if err != nil {
		return queryir.FieldRef{}, err
	}

	name := segments[len(segments)-1]
	field, ok := r.cat.Lookup(entity.Name, name)
	if !ok {
		return queryir.FieldRef{}, newError(ErrCodeUnknownField, path, "%s has no field %q", entity.Name, name)
	}
	if field.IsRelationship() {
		return queryir.FieldRef{}, newError(ErrCodeTypeMismatch, path, "%q is a relationship, not a field", name)
	}

	return queryir.FieldRef{
		Path:          path,
		Alias:         alias,
		Name:          name,
		Column:        field.Column,
		Type:          field.Type,
		TimezoneAware: field.TimezoneAware,
	}, nil
}

// ResolveRelationship resolves a path whose every segment is a relationship
// and returns the target entity. The joins for the whole chain are recorded.
func (r *Resolver) ResolveRelationship(path string) (*catalog.Entity, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	entity, _, err := r.walk(path, segments)
	return entity, err
}

// IsRelationship reports whether the final segment of path names a
// relationship. Leading segments are not resolved.
func (r *Resolver) IsRelationship(entity *catalog.Entity, name string) bool {
	f, ok := r.cat.Lookup(entity.Name, name)
	return ok && f.IsRelationship()
}

// Joins returns the recorded joins ordered by relationship path. A prefix
// always sorts before its extensions, so every join's source is declared
// before the join itself.
func (r *Resolver) Joins() []queryir.JoinSpec {
	paths := make([]string, 0, len(r.joins))
	for p := range r.joins {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]queryir.JoinSpec, len(paths))
	for i, p := range paths {
		out[i] = r.joins[p]
	}
	return out
}

// walk follows relationship segments from the root, registering a join per
// prefix, and returns the entity and alias reached.
func (r *Resolver) walk(path string, segments []string) (*catalog.Entity, string, error) {
	entity := r.root
	alias := r.root.Table

	for i, seg := range segments {
		field, ok := r.cat.Lookup(entity.Name, seg)
		if !ok {
			return nil, "", newError(ErrCodeUnknownField, path, "%s has no field %q", entity.Name, seg)
		}
		if !field.IsRelationship() {
			return nil, "", newError(ErrCodeNotARelationship, path, "%q on %s is not a relationship", seg, entity.Name)
		}

		target, ok := r.cat.Entity(field.Relationship.Target)
		if !ok {
			return nil, "", newError(ErrCodeUnknownField, path, "relationship %q targets unknown entity %q", seg, field.Relationship.Target)
		}

		prefix := strings.Join(segments[:i+1], ".")
		join, ok := r.joins[prefix]
		if !ok {
			join = queryir.JoinSpec{
				Path:         prefix,
				Source:       entity.Name,
				SourceAlias:  alias,
				Relationship: seg,
				Target:       target.Name,
				Table:        target.Table,
				Alias:        r.allocAlias(prefix),
				Kind:         r.kind,
				Cardinality:  field.Relationship.Cardinality,
				LocalKey:     field.Relationship.LocalKey,
				ForeignKey:   field.Relationship.ForeignKey,
			}
			r.joins[prefix] = join
		}

		entity = target
		alias = join.Alias
	}
	return entity, alias, nil
}

// allocAlias derives an alias from a relationship path ("posts.comments" →
// "posts__comments"), prefixing underscores until it is unique.
func (r *Resolver) allocAlias(prefix string) string {
	alias := strings.ReplaceAll(prefix, ".", "__")
	for {
		if _, taken := r.owner[alias]; !taken {
			r.owner[alias] = prefix
			return alias
		}
		alias = "_" + alias
	}
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, malformed(path, "empty field path")
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, malformed(path, "field path %q has an empty segment", path)
		}
	}
	return segments, nil
}
