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

// LineCoverageRow describes the geographic footprint of one line, or of
// the whole network when no line dimension is present.
type LineCoverageRow struct {
	LineNumber   *float64  `parquet:"line_number,optional"`
	LatMin       float64   `parquet:"lat_min"`
	LatMax       float64   `parquet:"lat_max"`
	LonMin       float64   `parquet:"lon_min"`
	LonMax       float64   `parquet:"lon_max"`
	LatMean      float64   `parquet:"lat_mean"`
	LonMean      float64   `parquet:"lon_mean"`
	Points       int64     `parquet:"points"`
	CoverageArea float64   `parquet:"coverage_area"`
	CreatedAt    time.Time `parquet:"_created_at"`
}

// LineCoverage computes per-line bounding boxes and a coverage-area proxy.
type LineCoverage struct {
	silverPath string
	goldPath   string
	deps       Deps
}

// NewLineCoverage creates the geographic coverage aggregator.
func NewLineCoverage(silverPath, goldPath string, deps Deps) *LineCoverage {
	return &LineCoverage{silverPath: silverPath, goldPath: goldPath, deps: deps}
}

// Name returns the gold table name.
func (a *LineCoverage) Name() string { return TableLineCoverage }

// Aggregate groups by line and computes coordinate extremes, means, point
// counts and the bounding-box area proxy (lat span x lon span, degrees²).
// When no row carries a line number, a single overall row is produced.
func (a *LineCoverage) Aggregate() ([]LineCoverageRow, error) {
	span := lineage.Begin("silver: "+silver.TablePositions, "aggregate_line_coverage")

	records, err := readPositions(a.silverPath)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(records))

	hasLine := false
	for i := range records {
		if records[i].LineNumber != nil {
			hasLine = true
			break
		}
	}

	type stats struct {
		latMin, latMax, lonMin, lonMax float64
		latSum, lonSum                 float64
		points                         int64
	}
	accumulate := func(s *stats, lat, lon float64) {
		if s.points == 0 {
			s.latMin, s.latMax = lat, lat
			s.lonMin, s.lonMax = lon, lon
		} else {
			s.latMin = math.Min(s.latMin, lat)
			s.latMax = math.Max(s.latMax, lat)
			s.lonMin = math.Min(s.lonMin, lon)
			s.lonMax = math.Max(s.lonMax, lon)
		}
		s.latSum += lat
		s.lonSum += lon
		s.points++
	}

	createdAt := a.deps.now()
	var rows []LineCoverageRow

	if hasLine {
		groups := make(map[float64]*stats)
		for _, r := range records {
			if r.LineNumber == nil {
				continue
			}
			g, ok := groups[*r.LineNumber]
			if !ok {
				g = &stats{}
				groups[*r.LineNumber] = g
			}
			accumulate(g, r.Latitude, r.Longitude)
		}

		lines := make([]float64, 0, len(groups))
		for line := range groups {
			lines = append(lines, line)
		}
		sort.Float64s(lines)

		for _, line := range lines {
			g := groups[line]
			rows = append(rows, coverageRow(telemetry.Float(line), g.latMin, g.latMax,
				g.lonMin, g.lonMax, g.latSum, g.lonSum, g.points, createdAt))
		}
	} else {
		var g stats
		for _, r := range records {
			accumulate(&g, r.Latitude, r.Longitude)
		}
		if g.points > 0 {
			rows = append(rows, coverageRow(nil, g.latMin, g.latMax,
				g.lonMin, g.lonMax, g.latSum, g.lonSum, g.points, createdAt))
		}
	}

	span.AddMetadata("output_records", len(rows))
	a.deps.Log.Info("aggregation complete", "table", a.Name(),
		"groups", len(rows), "lineage", span.Snapshot())
	return rows, nil
}

func coverageRow(line *float64, latMin, latMax, lonMin, lonMax, latSum, lonSum float64, points int64, createdAt time.Time) LineCoverageRow {
	area := (latMax - latMin) * (lonMax - lonMin)
	return LineCoverageRow{
		LineNumber:   line,
		LatMin:       latMin,
		LatMax:       latMax,
		LonMin:       lonMin,
		LonMax:       lonMax,
		LatMean:      latSum / float64(points),
		LonMean:      lonSum / float64(points),
		Points:       points,
		CoverageArea: math.Round(area*1e6) / 1e6,
		CreatedAt:    createdAt,
	}
}

// Load overwrites the gold table.
func (a *LineCoverage) Load(rows []LineCoverageRow) (string, error) {
	return storage.Overwrite(a.deps.Store, a.goldPath, TableLineCoverage, rows)
}

// Run aggregates then loads.
func (a *LineCoverage) Run() (string, error) {
	rows, err := a.Aggregate()
	if err != nil {
		return "", err
	}
	return a.Load(rows)
}
