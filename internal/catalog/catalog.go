// Package catalog describes the entities a specification may query: their
// fields, semantic types and relationships.
//
// A Catalog is read-only once built and safe for concurrent use without
// synchronization. The compiler never guesses a type; it always asks the
// catalog.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the semantic type of a field.
type FieldType string

const (
	TypeUnknown  FieldType = "unknown"
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
)

// IsTemporal reports whether the type is date or datetime.
func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime
}

// ParseFieldType maps a type name from a catalog definition to a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unknown", "any":
		return TypeUnknown, nil
	case "string", "text":
		return TypeString, nil
	case "number", "int", "integer", "float", "decimal":
		return TypeNumber, nil
	case "bool", "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "datetime", "timestamp", "time":
		return TypeDateTime, nil
	default:
		return TypeUnknown, fmt.Errorf("unknown field type %q", name)
	}
}

// Cardinality is the multiplicity of a relationship target.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Relationship links a field to another entity.
//
// The join condition is source.LocalKey = target.ForeignKey.
type Relationship struct {
	Target      string
	Cardinality Cardinality
	LocalKey    string
	ForeignKey  string
}

// Field is a direct field or a relationship of an entity.
type Field struct {
	Name          string
	Column        string
	Type          FieldType
	TimezoneAware bool
	Relationship  *Relationship
}

// IsRelationship reports whether the field traverses to another entity.
func (f Field) IsRelationship() bool {
	return f.Relationship != nil
}

// Entity is a queryable model backed by one table.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string
	Fields     map[string]Field
}

// DirectFields returns the names of non-relationship fields in sorted order.
func (e *Entity) DirectFields() []string {
	names := make([]string, 0, len(e.Fields))
	for name, f := range e.Fields {
		if !f.IsRelationship() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Catalog reports field existence, type and relationship targets.
type Catalog interface {
	// Entity returns the named entity.
	Entity(name string) (*Entity, bool)

	// Lookup returns a single (non-dotted) field of an entity.
	Lookup(entity, field string) (Field, bool)
}

// Static is an in-memory Catalog built once from a Definition.
type Static struct {
	entities map[string]*Entity
}

var _ Catalog = (*Static)(nil)

// Entity implements Catalog.
func (s *Static) Entity(name string) (*Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// Lookup implements Catalog.
func (s *Static) Lookup(entity, field string) (Field, bool) {
	e, ok := s.entities[entity]
	if !ok {
		return Field{}, false
	}
	f, ok := e.Fields[field]
	return f, ok
}

// Names returns all entity names in sorted order.
func (s *Static) Names() []string {
	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
