package compiler

import (
	"time"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// Accepted ISO-8601 layouts. Fractional seconds are accepted after the
// seconds field by time.Parse even though the layouts omit them.
var (
	zonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05Z0700",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

// parseTemporal parses an ISO-8601 date or datetime. zoned reports whether
// the input carried an offset. A bare date is midnight without an offset.
func parseTemporal(s string) (t time.Time, zoned, ok bool) {
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, false, true
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

// coerceTemporal converts an operand for a date or datetime field.
//
// Normalization:
//   - date fields keep the calendar date as written
//   - timezone-aware datetime fields: an offset-less operand is UTC
//   - naive datetime fields: an operand with an offset is converted to UTC
//     and the offset dropped
//
// An operand that cannot be parsed is returned unchanged unless strict is
// set, in which case it is a MalformedSpecification error.
func coerceTemporal(v ir.Value, field queryir.FieldRef, strict bool, op string) (ir.Value, error) {
	var (
		t     time.Time
		zoned bool
	)

	switch val := v.(type) {
	case ir.Null:
		return val, nil
	case ir.Time:
		t = val.T
		zoned = val.Kind == ir.TimeZoned
	case ir.String:
		var ok bool
		t, zoned, ok = parseTemporal(string(val))
		if !ok {
			if strict {
				return nil, &Error{
					Code:     ErrCodeMalformed,
					Path:     field.Path,
					Operator: op,
					Message:  "cannot parse " + string(val) + " as " + string(field.Type),
				}
			}
			return v, nil
		}
	default:
		if strict {
			return nil, &Error{
				Code:     ErrCodeMalformed,
				Path:     field.Path,
				Operator: op,
				Message:  "expected an ISO-8601 " + string(field.Type) + ", got " + kindOf(v),
			}
		}
		return v, nil
	}

	return normalizeTemporal(t, zoned, field), nil
}

func normalizeTemporal(t time.Time, zoned bool, field queryir.FieldRef) ir.Time {
	if field.Type == catalog.TypeDate {
		y, m, d := t.Date()
		return ir.Time{T: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Kind: ir.TimeDate}
	}

	if !zoned {
		// Wall clock as written, read as UTC.
		y, m, d := t.Date()
		t = time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}

	if field.TimezoneAware {
		return ir.Time{T: t.UTC(), Kind: ir.TimeZoned}
	}
	return ir.Time{T: t.UTC(), Kind: ir.TimeNaive}
}
