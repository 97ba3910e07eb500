package querysql

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// Dialect selects SQL flavor details: placeholders, case-insensitive
// matching, time parameters and time bucketing.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect validates a dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case SQLite, Postgres:
		return d, nil
	case "postgresql", "pg":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unknown dialect %q (want sqlite or postgres)", name)
	}
}

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// SQLiteTimeLayout is how temporal values are stored and compared in SQLite:
// UTC wall clock text that sorts lexically in time order.
const SQLiteTimeLayout = "2006-01-02 15:04:05.999999"

// BucketFunc is the SQLite function the store registers for time bucketing:
// qm_bucket(value, granularity, offset_minutes, zone).
const BucketFunc = "qm_bucket"

// param converts an operand to a driver argument.
func (d Dialect) param(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Time:
		if d == Postgres {
			return val.T, nil
		}
		if val.Kind == ir.TimeDate {
			return val.T.Format(time.DateOnly), nil
		}
		return val.T.UTC().Format(SQLiteTimeLayout), nil
	default:
		return nil, fmt.Errorf("%T cannot be a SQL parameter", v)
	}
}

func (d Dialect) params(arr ir.Array) ([]any, error) {
	out := make([]any, len(arr))
	for i, v := range arr {
		p, err := d.param(v)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// quote quotes an identifier. Both dialects accept double quotes.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func column(f queryir.FieldRef) string {
	return quote(f.Alias) + "." + quote(f.Column)
}

// pgFormats mirror queryir.BucketLayout so both dialects produce the same
// bucket labels.
var pgFormats = map[queryir.Granularity]string{
	queryir.GranularityYear:   `YYYY`,
	queryir.GranularityMonth:  `YYYY-MM`,
	queryir.GranularityDay:    `YYYY-MM-DD`,
	queryir.GranularityHour:   `YYYY-MM-DD"T"HH24`,
	queryir.GranularityMinute: `YYYY-MM-DD"T"HH24:MI`,
}

// groupExpr renders the grouping key expression.
func (d Dialect) groupExpr(g *queryir.GroupKey) (string, []any) {
	col := column(g.Field)
	if !g.IsTimeBucket() {
		// go-sqlite3 scans DATE/DATETIME/TIMESTAMP columns into time.Time,
		// which never binds back equal to the stored text. Keep the key text.
		if d == SQLite && g.Field.Type.IsTemporal() {
			return fmt.Sprintf("CAST(%s AS TEXT)", col), nil
		}
		return col, nil
	}

	offset := 0
	if g.OffsetMinutes != nil {
		offset = *g.OffsetMinutes
	}

	if d == SQLite {
		expr := fmt.Sprintf("CASE WHEN %s IS NULL THEN NULL ELSE %s(%s, ?, ?, ?) END", col, BucketFunc, col)
		return expr, []any{string(g.Granularity), offset, g.Zone}
	}

	// Postgres: bring the value to UTC wall clock, shift, truncate, format.
	var (
		shifted string
		args    []any
	)
	utc := col
	if g.Field.TimezoneAware {
		utc = fmt.Sprintf("(%s AT TIME ZONE 'UTC')", col)
	}
	switch {
	case g.Zone != "" && g.Field.TimezoneAware:
		shifted = fmt.Sprintf("(%s AT TIME ZONE ?)", col)
		args = append(args, g.Zone)
	case g.Zone != "":
		shifted = fmt.Sprintf("((%s AT TIME ZONE 'UTC') AT TIME ZONE ?)", col)
		args = append(args, g.Zone)
	case g.OffsetMinutes != nil:
		shifted = fmt.Sprintf("(%s + make_interval(mins => ?))", utc)
		args = append(args, offset)
	default:
		shifted = utc
	}
	expr := fmt.Sprintf("to_char(date_trunc('%s', %s), '%s')", g.Granularity, shifted, pgFormats[g.Granularity])
	return expr, args
}
