package queryir

import (
	"sync"
	"time"
	_ "time/tzdata" // zones resolve without a system zoneinfo database
)

var zoneCache sync.Map // string → *time.Location

// LoadZone loads an IANA zone, caching the result.
func LoadZone(name string) (*time.Location, error) {
	if loc, ok := zoneCache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	zoneCache.Store(name, loc)
	return loc, nil
}

// Location returns the timezone buckets are computed in.
func (g GroupKey) Location() (*time.Location, error) {
	switch {
	case g.Zone != "":
		return LoadZone(g.Zone)
	case g.OffsetMinutes != nil:
		return time.FixedZone("", *g.OffsetMinutes*60), nil
	default:
		return time.UTC, nil
	}
}

// BucketLayout returns the Go time layout producing the bucket label for a
// granularity: YYYY, YYYY-MM, YYYY-MM-DD, YYYY-MM-DDTHH, YYYY-MM-DDTHH:MM.
func BucketLayout(g Granularity) string {
	switch g {
	case GranularityYear:
		return "2006"
	case GranularityMonth:
		return "2006-01"
	case GranularityDay:
		return "2006-01-02"
	case GranularityHour:
		return "2006-01-02T15"
	case GranularityMinute:
		return "2006-01-02T15:04"
	default:
		return ""
	}
}

// Bucket converts an instant into its group label. The instant is shifted
// into the group's timezone before truncation, so for a -3h offset both
// 2024-01-31T23:30Z and 2024-02-01T01:00Z fall in "2024-01".
//
// Labels are zero-padded and big-endian, so lexicographic order of labels is
// chronological order of bucket boundaries.
func (g GroupKey) Bucket(t time.Time) (string, error) {
	loc, err := g.Location()
	if err != nil {
		return "", err
	}
	return BucketIn(t, g.Granularity, loc), nil
}

// BucketIn formats t truncated to granularity g in loc.
func BucketIn(t time.Time, g Granularity, loc *time.Location) string {
	return t.In(loc).Format(BucketLayout(g))
}
