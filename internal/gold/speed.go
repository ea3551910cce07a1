package gold

import (
	"math"
	"sort"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/silver"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// SpeedByLineRow is one (line, date) group of the speed metric table.
// Median, mean, min, max and stddev are exact, rounded to 2 decimals;
// p50/p90 are DDSketch approximations kept alongside for dashboards.
type SpeedByLineRow struct {
	LineNumber  *float64  `parquet:"line_number,optional"`
	Date        string    `parquet:"date"`
	SpeedMean   float64   `parquet:"speed_mean"`
	SpeedMedian float64   `parquet:"speed_median"`
	SpeedMax    float64   `parquet:"speed_max"`
	SpeedMin    float64   `parquet:"speed_min"`
	Records     int64     `parquet:"records"`
	SpeedStdDev *float64  `parquet:"speed_stddev,optional"`
	SpeedP50    *float64  `parquet:"speed_p50,optional"`
	SpeedP90    *float64  `parquet:"speed_p90,optional"`
	CreatedAt   time.Time `parquet:"_created_at"`
}

// SpeedByLine aggregates speed statistics per line per day.
type SpeedByLine struct {
	silverPath string
	goldPath   string
	deps       Deps
}

// NewSpeedByLine creates the speed-by-line aggregator.
func NewSpeedByLine(silverPath, goldPath string, deps Deps) *SpeedByLine {
	return &SpeedByLine{silverPath: silverPath, goldPath: goldPath, deps: deps}
}

// Name returns the gold table name.
func (a *SpeedByLine) Name() string { return TableSpeedByLine }

// Aggregate groups non-null-speed rows by (line, date) and computes speed
// statistics. Rows without a line number fall outside every line group.
func (a *SpeedByLine) Aggregate() ([]SpeedByLineRow, error) {
	span := lineage.Begin("silver: "+silver.TablePositions, "aggregate_speed_by_line")

	records, err := readPositions(a.silverPath)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(records))

	type groupKey struct {
		line float64
		date string
	}
	groups := make(map[groupKey][]float64)
	for _, r := range records {
		if r.Speed == nil || r.LineNumber == nil {
			continue
		}
		key := groupKey{line: *r.LineNumber, date: r.Date}
		groups[key] = append(groups[key], *r.Speed)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].line != keys[j].line {
			return keys[i].line < keys[j].line
		}
		return keys[i].date < keys[j].date
	})

	createdAt := a.deps.now()
	rows := make([]SpeedByLineRow, 0, len(keys))
	for _, key := range keys {
		speeds := groups[key]
		row := SpeedByLineRow{
			LineNumber:  telemetry.Float(key.line),
			Date:        key.date,
			SpeedMean:   round2(mean(speeds)),
			SpeedMedian: round2(median(speeds)),
			SpeedMax:    maxOf(speeds),
			SpeedMin:    minOf(speeds),
			Records:     int64(len(speeds)),
			CreatedAt:   createdAt,
		}
		if sd, ok := sampleStdDev(speeds); ok {
			row.SpeedStdDev = telemetry.Float(round2(sd))
		}
		if p50, p90, ok := sketchQuantiles(speeds); ok {
			row.SpeedP50 = telemetry.Float(p50)
			row.SpeedP90 = telemetry.Float(p90)
		}
		rows = append(rows, row)
	}

	span.AddMetadata("output_records", len(rows))
	a.deps.Log.Info("aggregation complete", "table", a.Name(),
		"groups", len(rows), "lineage", span.Snapshot())
	return rows, nil
}

// Load overwrites the gold table.
func (a *SpeedByLine) Load(rows []SpeedByLineRow) (string, error) {
	return storage.Overwrite(a.deps.Store, a.goldPath, TableSpeedByLine, rows)
}

// Run aggregates then loads.
func (a *SpeedByLine) Run() (string, error) {
	rows, err := a.Aggregate()
	if err != nil {
		return "", err
	}
	return a.Load(rows)
}

// sketchQuantiles computes approximate p50/p90 with a DDSketch at 1%
// relative accuracy.
func sketchQuantiles(values []float64) (p50, p90 float64, ok bool) {
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return 0, 0, false
	}
	for _, v := range values {
		if err := sketch.Add(v); err != nil {
			return 0, 0, false
		}
	}
	p50, err = sketch.GetValueAtQuantile(0.50)
	if err != nil {
		return 0, 0, false
	}
	p90, err = sketch.GetValueAtQuantile(0.90)
	if err != nil {
		return 0, 0, false
	}
	return p50, p90, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// sampleStdDev returns the sample standard deviation (n-1 denominator).
// A single-value group has no deviation and reports null.
func sampleStdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1)), true
}
