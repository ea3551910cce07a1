package quality

import (
	"github.com/bhmob/bhlake/internal/telemetry"
)

// PositionSchema is the hard-validation contract for cleaned vehicle
// positions: coordinates non-null and strictly within the service region,
// speed (when present) within [0,120], timestamp non-null and well-typed.
func PositionSchema() Schema {
	return Schema{
		Name: "vehicle_positions",
		Fields: []FieldRule{
			{
				Name:     "latitude",
				Kind:     KindNumeric,
				Required: true,
				Min:      bound(telemetry.RegionLatMin),
				Max:      bound(telemetry.RegionLatMax),
			},
			{
				Name:     "longitude",
				Kind:     KindNumeric,
				Required: true,
				Min:      bound(telemetry.RegionLonMin),
				Max:      bound(telemetry.RegionLonMax),
			},
			{
				Name: "speed",
				Kind: KindNumeric,
				Min:  bound(0),
				Max:  bound(120),
			},
			{
				Name:     "timestamp",
				Kind:     KindTime,
				Required: true,
			},
		},
	}
}

// LineSchema is the contract for the transit-line dimension: the line
// identifier must be present; everything else is permissive.
func LineSchema() Schema {
	return Schema{
		Name: "transit_lines",
		Fields: []FieldRule{
			{Name: "line", Kind: KindString, Required: true},
			{Name: "day_type", Kind: KindString},
		},
	}
}
