package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/querymate/internal/ir"
)

// Document is a parsed specification document.
//
// Fields hold the raw ir values of each recognized top-level key; nil means
// the key was absent. The compiler interprets them.
type Document struct {
	Filter            ir.Value
	Sort              ir.Value
	Select            ir.Value
	GroupBy           ir.Value
	Limit             *int
	Offset            *int
	JoinType          string
	IncludePagination *bool

	raw ir.Object
}

// Top-level document keys.
const (
	keyFilter            = "filter"
	keySort              = "sort"
	keySelect            = "select"
	keyLimit             = "limit"
	keyOffset            = "offset"
	keyGroupBy           = "group_by"
	keyJoinType          = "join_type"
	keyIncludePagination = "include_pagination"
)

// ParseDocument decodes a JSON specification document.
func ParseDocument(data []byte) (*Document, error) {
	v, err := ir.Decode(data)
	if err != nil {
		return nil, malformed("", "invalid JSON: %v", err)
	}
	return DocumentFromValue(v)
}

// DocumentFromMap builds a Document from an already-decoded map, such as one
// produced by gopkg.in/yaml.v3 or a JSON decoder using UseNumber.
func DocumentFromMap(m map[string]any) (*Document, error) {
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, malformed("", "%v", err)
	}
	return DocumentFromValue(v)
}

// DocumentFromValue interprets a decoded value as a specification document.
// Unknown top-level keys are rejected.
func DocumentFromValue(v ir.Value) (*Document, error) {
	if ir.IsNull(v) {
		return &Document{raw: ir.Object{}}, nil
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, malformed("", "specification must be an object, got %s", kindOf(v))
	}

	doc := &Document{raw: obj}
	for _, key := range obj.SortedKeys() {
		val := obj[key]
		switch key {
		case keyFilter:
			doc.Filter = nullToNil(val)
		case keySort:
			doc.Sort = nullToNil(val)
		case keySelect:
			doc.Select = nullToNil(val)
		case keyGroupBy:
			doc.GroupBy = nullToNil(val)
		case keyLimit:
			n, err := optionalInt(key, val)
			if err != nil {
				return nil, err
			}
			doc.Limit = n
		case keyOffset:
			n, err := optionalInt(key, val)
			if err != nil {
				return nil, err
			}
			doc.Offset = n
		case keyJoinType:
			if ir.IsNull(val) {
				continue
			}
			s, ok := val.(ir.String)
			if !ok {
				return nil, malformed(key, "join_type must be a string, got %s", kindOf(val))
			}
			doc.JoinType = string(s)
		case keyIncludePagination:
			if ir.IsNull(val) {
				continue
			}
			b, ok := val.(ir.Bool)
			if !ok {
				return nil, malformed(key, "include_pagination must be a boolean, got %s", kindOf(val))
			}
			flag := bool(b)
			doc.IncludePagination = &flag
		default:
			return nil, malformed(key, "unknown top-level key %q", key)
		}
	}
	return doc, nil
}

// Raw returns the document as decoded. Callers must not modify it.
func (d *Document) Raw() ir.Object {
	return d.raw
}

func optionalInt(key string, v ir.Value) (*int, error) {
	switch n := v.(type) {
	case ir.Null:
		return nil, nil
	case ir.Int:
		i := int(n)
		return &i, nil
	case ir.Float:
		f := float64(n)
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil, malformed(key, "%s must be an integer, got %v", key, f)
		}
		i := int(f)
		return &i, nil
	default:
		return nil, malformed(key, "%s must be an integer, got %s", key, kindOf(v))
	}
}

func nullToNil(v ir.Value) ir.Value {
	if ir.IsNull(v) {
		return nil
	}
	return v
}

// kindOf names a value's JSON kind for error messages.
func kindOf(v ir.Value) string {
	switch v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.String:
		return "string"
	case ir.Int, ir.Float:
		return "number"
	case ir.Bool:
		return "boolean"
	case ir.Time:
		return "time"
	case ir.Array:
		return "array"
	case ir.Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
