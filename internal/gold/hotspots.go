package gold

import (
	"math"
	"sort"
	"time"

	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/silver"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// Severity buckets for hotspot occurrence counts.
const (
	SeverityLow      = "low"      // <= 10 occurrences
	SeverityMedium   = "medium"   // <= 50
	SeverityHigh     = "high"     // <= 100
	SeverityCritical = "critical" // > 100
)

// Severity buckets an occurrence count into an ordinal severity.
func Severity(occurrences int64) string {
	switch {
	case occurrences <= 10:
		return SeverityLow
	case occurrences <= 50:
		return SeverityMedium
	case occurrences <= 100:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// SnapToGrid snaps a coordinate to the 0.01-degree hotspot grid.
func SnapToGrid(v float64) float64 {
	return math.Round(v*100) / 100
}

// HotspotRow is one grid cell of the slow-traffic hotspot table, most
// frequent cells first.
type HotspotRow struct {
	LatGrid        float64   `parquet:"lat_grid"`
	LonGrid        float64   `parquet:"lon_grid"`
	Occurrences    int64     `parquet:"occurrences"`
	SpeedMean      float64   `parquet:"speed_mean"`
	SpeedMin       float64   `parquet:"speed_min"`
	Severity       string    `parquet:"severity"`
	SpeedThreshold float64   `parquet:"_speed_threshold"`
	CreatedAt      time.Time `parquet:"_created_at"`
}

// Hotspots locates grid cells where vehicles repeatedly move below the
// configured speed threshold.
type Hotspots struct {
	silverPath string
	goldPath   string
	threshold  float64
	deps       Deps
}

// NewHotspots creates the slow-traffic hotspot aggregator.
func NewHotspots(silverPath, goldPath string, threshold float64, deps Deps) *Hotspots {
	if threshold <= 0 {
		threshold = 10.0
	}
	return &Hotspots{silverPath: silverPath, goldPath: goldPath, threshold: threshold, deps: deps}
}

// Name returns the gold table name.
func (a *Hotspots) Name() string { return TableHotspots }

// Aggregate filters rows with a known speed below the threshold, snaps
// them to the 0.01-degree grid and ranks cells by occurrence count.
func (a *Hotspots) Aggregate() ([]HotspotRow, error) {
	span := lineage.Begin("silver: "+silver.TablePositions, "aggregate_slow_traffic_hotspots")
	span.AddMetadata("speed_threshold", a.threshold)

	records, err := readPositions(a.silverPath)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(records))

	rows := a.Compute(records)

	span.AddMetadata("output_records", len(rows))
	a.deps.Log.Info("aggregation complete", "table", a.Name(),
		"cells", len(rows), "threshold", a.threshold, "lineage", span.Snapshot())
	return rows, nil
}

// Compute is the pure aggregation over an in-memory record set.
func (a *Hotspots) Compute(records []telemetry.CleanRecord) []HotspotRow {
	type cell struct {
		lat, lon float64
	}
	type stats struct {
		count int64
		sum   float64
		min   float64
	}

	groups := make(map[cell]*stats)
	for _, r := range records {
		if r.Speed == nil || *r.Speed >= a.threshold {
			continue
		}
		c := cell{lat: SnapToGrid(r.Latitude), lon: SnapToGrid(r.Longitude)}
		g, ok := groups[c]
		if !ok {
			g = &stats{min: *r.Speed}
			groups[c] = g
		}
		g.count++
		g.sum += *r.Speed
		if *r.Speed < g.min {
			g.min = *r.Speed
		}
	}

	createdAt := a.deps.now()
	rows := make([]HotspotRow, 0, len(groups))
	for c, g := range groups {
		rows = append(rows, HotspotRow{
			LatGrid:        c.lat,
			LonGrid:        c.lon,
			Occurrences:    g.count,
			SpeedMean:      g.sum / float64(g.count),
			SpeedMin:       g.min,
			Severity:       Severity(g.count),
			SpeedThreshold: a.threshold,
			CreatedAt:      createdAt,
		})
	}

	// Most critical cells first; grid order breaks ties deterministically.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Occurrences != rows[j].Occurrences {
			return rows[i].Occurrences > rows[j].Occurrences
		}
		if rows[i].LatGrid != rows[j].LatGrid {
			return rows[i].LatGrid < rows[j].LatGrid
		}
		return rows[i].LonGrid < rows[j].LonGrid
	})
	return rows
}

// Load overwrites the gold table.
func (a *Hotspots) Load(rows []HotspotRow) (string, error) {
	return storage.Overwrite(a.deps.Store, a.goldPath, TableHotspots, rows)
}

// Run aggregates then loads.
func (a *Hotspots) Run() (string, error) {
	rows, err := a.Aggregate()
	if err != nil {
		return "", err
	}
	return a.Load(rows)
}
