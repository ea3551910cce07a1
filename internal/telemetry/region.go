package telemetry

import (
	"github.com/golang/geo/s2"
)

// Service-region bounding box for Belo Horizonte. Coordinates outside this
// box are treated as invalid by cleaning, hard validation and scoring alike.
const (
	RegionLatMin = -20.1
	RegionLatMax = -19.7
	RegionLonMin = -44.15
	RegionLonMax = -43.8
)

var serviceRegion = s2.RectFromLatLng(
	s2.LatLngFromDegrees(RegionLatMin, RegionLonMin),
).AddPoint(
	s2.LatLngFromDegrees(RegionLatMax, RegionLonMax),
)

// InRegion reports whether the coordinate pair lies inside the service
// region bounding box (inclusive).
func InRegion(lat, lon float64) bool {
	return serviceRegion.ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// Day periods derived from the hour of day.
const (
	PeriodMorning   = "morning"   // [05, 12)
	PeriodAfternoon = "afternoon" // [12, 18)
	PeriodNight     = "night"     // [18, 22)
	PeriodDawn      = "dawn"      // [22, 05)
)

// ClassifyPeriod buckets an hour of day into a coarse day period.
func ClassifyPeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 18:
		return PeriodAfternoon
	case hour >= 18 && hour < 22:
		return PeriodNight
	default:
		return PeriodDawn
	}
}
