package calls

import (
	"sync"
	"time"
)

var locationCache sync.Map // map[string]*time.Location

// ResolveLocation loads an IANA zone, falling back when tz is empty or unknown.
func ResolveLocation(tz string, fallback *time.Location) *time.Location {
	if tz == "" {
		return fallback
	}
	if v, ok := locationCache.Load(tz); ok {
		return v.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fallback
	}
	locationCache.Store(tz, loc)
	return loc
}

// StartOfLocalDay returns the instant of midnight, in loc, of the local day containing now.
func StartOfLocalDay(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
