package quality

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bhmob/bhlake/internal/telemetry"
)

// Report holds soft quality diagnostics for one record set. It is computed
// on demand and never persisted or used as a gate.
type Report struct {
	Dataset           string             `json:"dataset"`
	TotalRows         int                `json:"total_rows"`
	TotalColumns      int                `json:"total_columns"`
	MissingValues     map[string]int     `json:"missing_values"`
	MissingPercentage map[string]float64 `json:"missing_percentage"`
	DuplicateCount    int                `json:"duplicate_count"`
	MemoryEstimate    int64              `json:"memory_estimate_bytes"`
}

// Describe computes row/column counts, per-column missing counts and
// percentages, full-row duplicate count and a memory estimate.
func Describe[T Record](dataset string, records []T) Report {
	report := Report{
		Dataset:           dataset,
		TotalRows:         len(records),
		MissingValues:     make(map[string]int),
		MissingPercentage: make(map[string]float64),
	}

	var columns []string
	if len(records) > 0 {
		columns = records[0].Columns()
	} else {
		var zero T
		columns = zero.Columns()
	}
	report.TotalColumns = len(columns)

	for _, col := range columns {
		report.MissingValues[col] = 0
		report.MissingPercentage[col] = 0
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		var key strings.Builder
		for _, col := range columns {
			v, ok := records[i].Field(col)
			if !ok {
				report.MissingValues[col]++
				key.WriteString("\x00")
				continue
			}
			report.MemoryEstimate += estimateSize(v)
			fmt.Fprintf(&key, "%v\x1f", v)
		}
		seen[key.String()]++
	}

	for _, count := range seen {
		if count > 1 {
			report.DuplicateCount += count - 1
		}
	}

	if len(records) > 0 {
		for _, col := range columns {
			pct := float64(report.MissingValues[col]) / float64(len(records)) * 100
			report.MissingPercentage[col] = pct
		}
	}

	return report
}

func estimateSize(v any) int64 {
	switch s := v.(type) {
	case string:
		return int64(len(s)) + 16
	case time.Time:
		return 24
	default:
		return 8
	}
}

// Score computes the composite quality score of a record set:
//
//	0.6*completeness + 0.4*geofence_compliance
//
// rounded to 3 decimals. Completeness is 1 - nulls/(rows*columns), counted
// over the set's active columns: a column null in every row is treated as
// absent from the set, so a feed that never carries a field is not penalized
// for it. Geofence compliance is the fraction of rows with both coordinates
// inside the service region; when the set carries no coordinate columns it
// defaults to 0.5, an explicit "unknown" signal rather than 0 or 1.
// The score is a pure function of the records' own field values.
func Score[T Record](records []T) float64 {
	if len(records) == 0 {
		return 0
	}

	var columns []string
	for _, col := range records[0].Columns() {
		for i := range records {
			if _, ok := records[i].Field(col); ok {
				columns = append(columns, col)
				break
			}
		}
	}
	if len(columns) == 0 {
		return 0
	}
	hasCoords := contains(columns, "latitude") && contains(columns, "longitude")

	var nulls, valid int
	for i := range records {
		for _, col := range columns {
			if _, ok := records[i].Field(col); !ok {
				nulls++
			}
		}
		if hasCoords {
			lat, latOK := records[i].Field("latitude")
			lon, lonOK := records[i].Field("longitude")
			if latOK && lonOK {
				latF, fOK := lat.(float64)
				lonF, gOK := lon.(float64)
				if fOK && gOK && telemetry.InRegion(latF, lonF) {
					valid++
				}
			}
		}
	}

	completeness := 1 - float64(nulls)/float64(len(records)*len(columns))

	geofence := 0.5
	if hasCoords {
		geofence = float64(valid) / float64(len(records))
	}

	score := 0.6*completeness + 0.4*geofence
	return math.Round(score*1000) / 1000
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
