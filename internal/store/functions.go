package store

import (
	"fmt"
	"time"

	"github.com/roach88/querymate/internal/queryir"
)

// storedLayouts are the text forms a temporal column may hold.
var storedLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.DateOnly,
}

// parseStored reads a stored temporal value. Values without an offset are
// UTC.
func parseStored(s string) (time.Time, error) {
	for _, layout := range storedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

// bucket implements qm_bucket(value, granularity, offset_minutes, zone):
// the bucket label of value in the zone (when non-empty) or at the fixed
// offset. It uses the same labels as queryir.GroupKey.Bucket.
func bucket(value, granularity string, offsetMinutes int64, zone string) (string, error) {
	t, err := parseStored(value)
	if err != nil {
		return "", err
	}
	g, ok := queryir.ParseGranularity(granularity)
	if !ok {
		return "", fmt.Errorf("unknown granularity %q", granularity)
	}

	loc := time.UTC
	switch {
	case zone != "":
		loc, err = queryir.LoadZone(zone)
		if err != nil {
			return "", err
		}
	case offsetMinutes != 0:
		loc = time.FixedZone("", int(offsetMinutes)*60)
	}
	return queryir.BucketIn(t, g, loc), nil
}
