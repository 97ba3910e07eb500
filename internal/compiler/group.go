package compiler

import (
	"math"
	"strings"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

const (
	groupKeyField       = "field"
	groupKeyGranularity = "granularity"
	groupKeyTZOffset    = "tz_offset"
	groupKeyTimezone    = "timezone"

	maxOffsetHours = 14
)

// compileGroup compiles group_by: either a field path or
//
//	{"field": "created_at", "granularity": "month", "tz_offset": -3}
//	{"field": "created_at", "granularity": "hour", "timezone": "America/Sao_Paulo"}
func (s *session) compileGroup(v ir.Value) (*queryir.GroupKey, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case ir.String:
		field, err := s.resolver.Resolve(string(val))
		if err != nil {
			return nil, err
		}
		return &queryir.GroupKey{Field: field}, nil
	case ir.Object:
		return s.compileGroupObject(val)
	default:
		return nil, malformed(keyGroupBy, "group_by must be a string or object, got %s", kindOf(v))
	}
}

func (s *session) compileGroupObject(obj ir.Object) (*queryir.GroupKey, error) {
	for _, k := range obj.SortedKeys() {
		switch k {
		case groupKeyField, groupKeyGranularity, groupKeyTZOffset, groupKeyTimezone:
		default:
			return nil, malformed(keyGroupBy, "unknown group_by key %q", k)
		}
	}

	path, ok := obj[groupKeyField].(ir.String)
	if !ok {
		return nil, malformed(keyGroupBy, "group_by.field must be a string")
	}

	offset := nullToNil(obj[groupKeyTZOffset])
	zone := nullToNil(obj[groupKeyTimezone])
	if offset != nil && zone != nil {
		return nil, newError(ErrCodeConflictingTimezone, string(path), "tz_offset and timezone are mutually exclusive")
	}

	field, err := s.resolver.Resolve(string(path))
	if err != nil {
		return nil, err
	}
	key := &queryir.GroupKey{Field: field}

	if g := nullToNil(obj[groupKeyGranularity]); g != nil {
		name, ok := g.(ir.String)
		if !ok {
			return nil, newError(ErrCodeInvalidGranularity, string(path), "granularity must be a string, got %s", kindOf(g))
		}
		gran, ok := queryir.ParseGranularity(strings.ToLower(string(name)))
		if !ok {
			return nil, newError(ErrCodeInvalidGranularity, string(path), "unsupported granularity %q (want year, month, day, hour or minute)", string(name))
		}
		if !field.Type.IsTemporal() {
			return nil, newError(ErrCodeTypeMismatch, string(path), "granularity requires a date or datetime field, got %s", field.Type)
		}
		key.Granularity = gran
	}

	if (offset != nil || zone != nil) && !key.IsTimeBucket() {
		return nil, malformed(keyGroupBy, "tz_offset and timezone require a granularity")
	}

	if offset != nil {
		minutes, err := offsetMinutes(offset)
		if err != nil {
			return nil, err
		}
		key.OffsetMinutes = &minutes
	}

	if zone != nil {
		name, ok := zone.(ir.String)
		if !ok || name == "" {
			return nil, malformed(keyGroupBy, "timezone must be a non-empty string")
		}
		if _, err := queryir.LoadZone(string(name)); err != nil {
			return nil, newError(ErrCodeUnknownTimezone, string(path), "unknown timezone %q", string(name))
		}
		key.Zone = string(name)
	}

	return key, nil
}

// offsetMinutes converts a tz_offset in hours (fractional allowed) to
// minutes east of UTC.
func offsetMinutes(v ir.Value) (int, error) {
	var hours float64
	switch n := v.(type) {
	case ir.Int:
		hours = float64(n)
	case ir.Float:
		hours = float64(n)
	default:
		return 0, malformed(keyGroupBy, "tz_offset must be a number of hours, got %s", kindOf(v))
	}
	if math.Abs(hours) > maxOffsetHours {
		return 0, malformed(keyGroupBy, "tz_offset %v is outside [-14, 14]", hours)
	}
	return int(math.Round(hours * 60)), nil
}
