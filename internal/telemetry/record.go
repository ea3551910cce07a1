// Package telemetry defines the record types flowing through the lake and
// the decoder for the PBH real-time position wire format.
package telemetry

import (
	"time"
)

// RawRecord is one decoded telemetry event as landed in the bronze layer.
// All wire fields are optional; a failed numeric coercion leaves the field
// nil rather than rejecting the record. Unknown wire keys are preserved
// verbatim in Extra. RawRecords are immutable once written.
type RawRecord struct {
	Event      *float64 `parquet:"event,optional"`
	Time       *float64 `parquet:"time,optional"`
	Latitude   *float64 `parquet:"latitude,optional"`
	Longitude  *float64 `parquet:"longitude,optional"`
	VehicleID  *float64 `parquet:"vehicle_id,optional"`
	Speed      *float64 `parquet:"speed,optional"`
	LineNumber *float64 `parquet:"line_number,optional"`
	Direction  *string  `parquet:"direction,optional"`
	Status     *string  `parquet:"status,optional"`
	Distance   *float64 `parquet:"distance,optional"`

	// Extra holds unrecognized wire keys, verbatim.
	Extra map[string]string `parquet:"extra,optional"`

	// Ingestion metadata, stamped by the bronze layer.
	IngestedAt time.Time `parquet:"ingested_at"`
	Source     string    `parquet:"source"`
}

// CleanRecord is a RawRecord after silver cleaning: coordinates and
// timestamp are guaranteed present and in-region, derived time buckets are
// attached, and the set-level quality score is stamped on each row.
type CleanRecord struct {
	Event      *float64 `parquet:"event,optional"`
	Time       *float64 `parquet:"time,optional"`
	Latitude   float64  `parquet:"latitude"`
	Longitude  float64  `parquet:"longitude"`
	VehicleID  *float64 `parquet:"vehicle_id,optional"`
	Speed      *float64 `parquet:"speed,optional"`
	LineNumber *float64 `parquet:"line_number,optional"`
	Direction  *string  `parquet:"direction,optional"`
	Status     *string  `parquet:"status,optional"`
	Distance   *float64 `parquet:"distance,optional"`

	Timestamp time.Time `parquet:"timestamp"`

	// Derived time buckets.
	Date      string `parquet:"date"`
	Hour      int32  `parquet:"hour"`
	Weekday   int32  `parquet:"weekday"`
	DayPeriod string `parquet:"day_period"`

	IngestedAt   time.Time `parquet:"ingested_at"`
	Source       string    `parquet:"source"`
	ProcessedAt  time.Time `parquet:"_processed_timestamp"`
	QualityScore float64   `parquet:"quality_score"`
}

// LineRecord is one row of the transit-line reference dimension. Each
// refresh fully replaces the prior snapshot; there is no temporal
// partitioning.
type LineRecord struct {
	Line    string  `parquet:"line"`
	DayType *string `parquet:"day_type,optional"`

	// Extra holds source columns with no canonical mapping.
	Extra map[string]string `parquet:"extra,optional"`

	IngestedAt  time.Time `parquet:"ingested_at"`
	Source      string    `parquet:"source"`
	ProcessedAt time.Time `parquet:"_processed_timestamp,optional"`
}

// rawColumns is the fixed column set of the raw telemetry schema. An empty
// decode result still has this shape, so downstream code never sees an
// undefined schema.
var rawColumns = []string{
	"event", "time", "latitude", "longitude", "vehicle_id",
	"speed", "line_number", "direction", "status", "distance",
}

// RawColumns returns the raw telemetry column set.
func RawColumns() []string {
	out := make([]string, len(rawColumns))
	copy(out, rawColumns)
	return out
}

// Columns implements quality.Record.
func (r RawRecord) Columns() []string { return RawColumns() }

// Field implements quality.Record. The second return value reports whether
// the column holds a non-null value.
func (r RawRecord) Field(name string) (any, bool) {
	switch name {
	case "event":
		return deref(r.Event)
	case "time":
		return deref(r.Time)
	case "latitude":
		return deref(r.Latitude)
	case "longitude":
		return deref(r.Longitude)
	case "vehicle_id":
		return deref(r.VehicleID)
	case "speed":
		return deref(r.Speed)
	case "line_number":
		return deref(r.LineNumber)
	case "direction":
		return derefString(r.Direction)
	case "status":
		return derefString(r.Status)
	case "distance":
		return deref(r.Distance)
	default:
		return nil, false
	}
}

var cleanColumns = []string{
	"event", "time", "latitude", "longitude", "vehicle_id",
	"speed", "line_number", "direction", "status", "distance",
	"timestamp", "date", "hour", "weekday", "day_period",
}

// Columns implements quality.Record.
func (r CleanRecord) Columns() []string {
	out := make([]string, len(cleanColumns))
	copy(out, cleanColumns)
	return out
}

// Field implements quality.Record.
func (r CleanRecord) Field(name string) (any, bool) {
	switch name {
	case "event":
		return deref(r.Event)
	case "time":
		return deref(r.Time)
	case "latitude":
		return r.Latitude, true
	case "longitude":
		return r.Longitude, true
	case "vehicle_id":
		return deref(r.VehicleID)
	case "speed":
		return deref(r.Speed)
	case "line_number":
		return deref(r.LineNumber)
	case "direction":
		return derefString(r.Direction)
	case "status":
		return derefString(r.Status)
	case "distance":
		return deref(r.Distance)
	case "timestamp":
		if r.Timestamp.IsZero() {
			return nil, false
		}
		return r.Timestamp, true
	case "date":
		return r.Date, r.Date != ""
	case "hour":
		return float64(r.Hour), true
	case "weekday":
		return float64(r.Weekday), true
	case "day_period":
		return r.DayPeriod, r.DayPeriod != ""
	default:
		return nil, false
	}
}

var lineColumns = []string{"line", "day_type"}

// Columns implements quality.Record.
func (r LineRecord) Columns() []string {
	out := make([]string, len(lineColumns))
	copy(out, lineColumns)
	return out
}

// Field implements quality.Record.
func (r LineRecord) Field(name string) (any, bool) {
	switch name {
	case "line":
		return r.Line, r.Line != ""
	case "day_type":
		return derefString(r.DayType)
	default:
		if r.Extra != nil {
			if v, ok := r.Extra[name]; ok {
				return v, v != ""
			}
		}
		return nil, false
	}
}

func deref(p *float64) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func derefString(p *string) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building optional fields.
func String(v string) *string { return &v }
