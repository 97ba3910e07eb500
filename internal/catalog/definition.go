package catalog

import (
	"fmt"
	"sort"
)

// Definition is the serialized form of a catalog, shared by the YAML and
// CUE loaders.
type Definition struct {
	Entities map[string]EntityDef `yaml:"entities" json:"entities"`
}

// EntityDef describes one entity.
type EntityDef struct {
	Table         string                     `yaml:"table" json:"table,omitempty"`
	PrimaryKey    string                     `yaml:"primary_key" json:"primary_key,omitempty"`
	Fields        map[string]FieldDef        `yaml:"fields" json:"fields"`
	Relationships map[string]RelationshipDef `yaml:"relationships" json:"relationships,omitempty"`
}

// FieldDef describes one direct field.
type FieldDef struct {
	Type          string `yaml:"type" json:"type"`
	Column        string `yaml:"column" json:"column,omitempty"`
	TimezoneAware bool   `yaml:"timezone_aware" json:"timezone_aware,omitempty"`
}

// RelationshipDef describes one relationship.
//
// For cardinality "one", LocalKey defaults to "<name>_id" and ForeignKey to
// the target's primary key. For "many", LocalKey defaults to the source's
// primary key and ForeignKey is required.
type RelationshipDef struct {
	Target      string `yaml:"target" json:"target"`
	Cardinality string `yaml:"cardinality" json:"cardinality,omitempty"`
	LocalKey    string `yaml:"local_key" json:"local_key,omitempty"`
	ForeignKey  string `yaml:"foreign_key" json:"foreign_key,omitempty"`
}

// DefinitionError reports an invalid catalog definition.
type DefinitionError struct {
	Entity  string
	Field   string
	Message string
}

func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("catalog: %s.%s: %s", e.Entity, e.Field, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("catalog: %s: %s", e.Entity, e.Message)
	}
	return "catalog: " + e.Message
}

// Build validates a Definition and returns a Static catalog.
func Build(def Definition) (*Static, error) {
	if len(def.Entities) == 0 {
		return nil, &DefinitionError{Message: "no entities defined"}
	}

	entities := make(map[string]*Entity, len(def.Entities))
	names := make([]string, 0, len(def.Entities))
	for name := range def.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	// First pass: direct fields.
	for _, name := range names {
		ed := def.Entities[name]
		e := &Entity{
			Name:       name,
			Table:      ed.Table,
			PrimaryKey: ed.PrimaryKey,
			Fields:     make(map[string]Field, len(ed.Fields)+len(ed.Relationships)),
		}
		if e.Table == "" {
			e.Table = name
		}
		if e.PrimaryKey == "" {
			e.PrimaryKey = "id"
		}

		for fname, fd := range ed.Fields {
			ft, err := ParseFieldType(fd.Type)
			if err != nil {
				return nil, &DefinitionError{Entity: name, Field: fname, Message: err.Error()}
			}
			if fd.TimezoneAware && ft != TypeDateTime {
				return nil, &DefinitionError{Entity: name, Field: fname, Message: "timezone_aware requires type datetime"}
			}
			col := fd.Column
			if col == "" {
				col = fname
			}
			e.Fields[fname] = Field{Name: fname, Column: col, Type: ft, TimezoneAware: fd.TimezoneAware}
		}

		if _, ok := e.Fields[e.PrimaryKey]; !ok {
			return nil, &DefinitionError{Entity: name, Message: fmt.Sprintf("primary key %q is not a field", e.PrimaryKey)}
		}
		entities[name] = e
	}

	// Second pass: relationships, which need every target resolved.
	for _, name := range names {
		e := entities[name]
		for rname, rd := range def.Entities[name].Relationships {
			if _, dup := e.Fields[rname]; dup {
				return nil, &DefinitionError{Entity: name, Field: rname, Message: "relationship shadows a field"}
			}
			rel, err := buildRelationship(e, rname, rd, entities)
			if err != nil {
				return nil, err
			}
			e.Fields[rname] = Field{Name: rname, Type: TypeUnknown, Relationship: rel}
		}
	}

	return &Static{entities: entities}, nil
}

func buildRelationship(src *Entity, name string, rd RelationshipDef, entities map[string]*Entity) (*Relationship, error) {
	target, ok := entities[rd.Target]
	if !ok {
		return nil, &DefinitionError{Entity: src.Name, Field: name, Message: fmt.Sprintf("unknown target entity %q", rd.Target)}
	}

	rel := &Relationship{
		Target:     rd.Target,
		LocalKey:   rd.LocalKey,
		ForeignKey: rd.ForeignKey,
	}

	switch Cardinality(rd.Cardinality) {
	case One, "":
		rel.Cardinality = One
		if rel.LocalKey == "" {
			rel.LocalKey = name + "_id"
		}
		if rel.ForeignKey == "" {
			rel.ForeignKey = target.PrimaryKey
		}
	case Many:
		rel.Cardinality = Many
		if rel.LocalKey == "" {
			rel.LocalKey = src.PrimaryKey
		}
		if rel.ForeignKey == "" {
			return nil, &DefinitionError{Entity: src.Name, Field: name, Message: "foreign_key is required for cardinality many"}
		}
	default:
		return nil, &DefinitionError{Entity: src.Name, Field: name, Message: fmt.Sprintf("invalid cardinality %q", rd.Cardinality)}
	}

	// Keys name columns. A local key must exist as a field on the source;
	// the foreign key must exist on the target.
	if !hasColumn(src, rel.LocalKey) {
		return nil, &DefinitionError{Entity: src.Name, Field: name, Message: fmt.Sprintf("local key %q is not a column of %s", rel.LocalKey, src.Name)}
	}
	if !hasColumn(target, rel.ForeignKey) {
		return nil, &DefinitionError{Entity: src.Name, Field: name, Message: fmt.Sprintf("foreign key %q is not a column of %s", rel.ForeignKey, target.Name)}
	}
	return rel, nil
}

func hasColumn(e *Entity, column string) bool {
	for _, f := range e.Fields {
		if !f.IsRelationship() && f.Column == column {
			return true
		}
	}
	return false
}
