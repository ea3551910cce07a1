package gold

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

func testDeps() Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Deps{
		Store: storage.NewStore(storage.DefaultOptions(), log),
		Log:   log,
		Now:   func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
}

func position(lat, lon float64, speed, line *float64, date string) telemetry.CleanRecord {
	return telemetry.CleanRecord{
		Latitude:   lat,
		Longitude:  lon,
		Speed:      speed,
		LineNumber: line,
		Date:       date,
		Timestamp:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func seedSilver(t *testing.T, deps Deps, silverPath string, records []telemetry.CleanRecord) {
	t.Helper()
	if _, err := storage.AppendByDate(deps.Store, silverPath, "vehicle_positions",
		records, time.Now(), func(r telemetry.CleanRecord) string { return r.Date }); err != nil {
		t.Fatalf("seed silver: %v", err)
	}
}

func TestSpeedByLine_Statistics(t *testing.T) {
	deps := testDeps()
	silverPath := t.TempDir()

	line := telemetry.Float(9202)
	records := []telemetry.CleanRecord{
		position(-19.92, -43.94, telemetry.Float(10), line, "2026-03-14"),
		position(-19.92, -43.94, telemetry.Float(20), line, "2026-03-14"),
		position(-19.92, -43.94, telemetry.Float(30), line, "2026-03-14"),
		position(-19.92, -43.94, nil, line, "2026-03-14"),                 // null speed excluded
		position(-19.92, -43.94, telemetry.Float(50), nil, "2026-03-14"), // null line excluded
		position(-19.92, -43.94, telemetry.Float(99), line, "2026-03-15"), // other date
	}
	seedSilver(t, deps, silverPath, records)

	rows, err := NewSpeedByLine(silverPath, t.TempDir(), deps).Aggregate()
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}

	day1 := rows[0]
	if day1.Date != "2026-03-14" {
		t.Fatalf("groups not sorted by date: %+v", rows)
	}
	if day1.Records != 3 {
		t.Errorf("records = %d, want 3", day1.Records)
	}
	if day1.SpeedMean != 20 {
		t.Errorf("mean = %v, want 20", day1.SpeedMean)
	}
	if day1.SpeedMedian != 20 {
		t.Errorf("median = %v, want 20", day1.SpeedMedian)
	}
	if day1.SpeedMin != 10 || day1.SpeedMax != 30 {
		t.Errorf("min/max = %v/%v, want 10/30", day1.SpeedMin, day1.SpeedMax)
	}
	if day1.SpeedStdDev == nil || *day1.SpeedStdDev != 10 {
		t.Errorf("stddev = %v, want 10 (sample, n-1)", day1.SpeedStdDev)
	}
	if day1.SpeedP50 == nil || math.Abs(*day1.SpeedP50-20) > 1 {
		t.Errorf("p50 = %v, want ~20", day1.SpeedP50)
	}

	day2 := rows[1]
	if day2.Records != 1 {
		t.Errorf("day2 records = %d, want 1", day2.Records)
	}
	if day2.SpeedStdDev != nil {
		t.Error("single-value group should report null stddev")
	}
}

func TestSampleStdDev(t *testing.T) {
	if _, ok := sampleStdDev([]float64{5}); ok {
		t.Error("single value has no deviation")
	}
	sd, ok := sampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !ok {
		t.Fatal("expected stddev")
	}
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(sd-want) > 1e-9 {
		t.Errorf("stddev = %v, want %v", sd, want)
	}
}

func TestRound2(t *testing.T) {
	if got := round2(20.456); got != 20.46 {
		t.Errorf("round2(20.456) = %v", got)
	}
	if got := round2(20.454); got != 20.45 {
		t.Errorf("round2(20.454) = %v", got)
	}
}

func TestActiveVehicles_CountsDistinct(t *testing.T) {
	deps := testDeps()
	silverPath := t.TempDir()

	morning := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	mk := func(vehicle float64, ts time.Time) telemetry.CleanRecord {
		return telemetry.CleanRecord{
			Latitude: -19.92, Longitude: -43.94,
			VehicleID: telemetry.Float(vehicle),
			Timestamp: ts,
			Date:      ts.Format("2006-01-02"),
			Hour:      int32(ts.Hour()),
			Weekday:   5,
			DayPeriod: telemetry.ClassifyPeriod(ts.Hour()),
		}
	}
	records := []telemetry.CleanRecord{
		mk(1, morning), mk(1, morning), mk(2, morning),
		mk(3, morning.Add(11*time.Hour)), // night bucket
	}
	seedSilver(t, deps, silverPath, records)

	rows, err := NewActiveVehicles(silverPath, t.TempDir(), deps).Aggregate()
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	if rows[0].UniqueVehicles != 2 || rows[0].Records != 3 {
		t.Errorf("morning group = %+v, want 2 vehicles over 3 records", rows[0])
	}
	if rows[0].DayPeriod != telemetry.PeriodMorning {
		t.Errorf("period = %q, want morning", rows[0].DayPeriod)
	}
	if rows[1].UniqueVehicles != 1 {
		t.Errorf("night group = %+v, want 1 vehicle", rows[1])
	}
}

func TestLineCoverage_BoundingBoxes(t *testing.T) {
	deps := testDeps()
	silverPath := t.TempDir()

	line := telemetry.Float(9202)
	records := []telemetry.CleanRecord{
		position(-19.90, -43.90, nil, line, "2026-03-14"),
		position(-19.80, -43.96, nil, line, "2026-03-14"),
		position(-19.95, -44.00, nil, nil, "2026-03-14"), // no line, dropped from grouping
	}
	seedSilver(t, deps, silverPath, records)

	rows, err := NewLineCoverage(silverPath, t.TempDir(), deps).Aggregate()
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 line group, got %d", len(rows))
	}

	r := rows[0]
	if r.LatMin != -19.90 || r.LatMax != -19.80 {
		t.Errorf("lat bounds = %v/%v", r.LatMin, r.LatMax)
	}
	if r.LonMin != -43.96 || r.LonMax != -43.90 {
		t.Errorf("lon bounds = %v/%v", r.LonMin, r.LonMax)
	}
	if r.Points != 2 {
		t.Errorf("points = %d, want 2", r.Points)
	}
	wantArea := math.Round(0.10*0.06*1e6) / 1e6
	if math.Abs(r.CoverageArea-wantArea) > 1e-9 {
		t.Errorf("area = %v, want %v", r.CoverageArea, wantArea)
	}
}

func TestLineCoverage_OverallRowWhenNoLines(t *testing.T) {
	deps := testDeps()
	silverPath := t.TempDir()

	records := []telemetry.CleanRecord{
		position(-19.90, -43.90, nil, nil, "2026-03-14"),
		position(-19.80, -43.96, nil, nil, "2026-03-14"),
	}
	seedSilver(t, deps, silverPath, records)

	rows, err := NewLineCoverage(silverPath, t.TempDir(), deps).Aggregate()
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected single overall row, got %d", len(rows))
	}
	if rows[0].LineNumber != nil {
		t.Error("overall row should have null line number")
	}
	if rows[0].Points != 2 {
		t.Errorf("points = %d, want 2", rows[0].Points)
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{1, SeverityLow},
		{10, SeverityLow},
		{11, SeverityMedium},
		{50, SeverityMedium},
		{51, SeverityHigh},
		{100, SeverityHigh},
		{101, SeverityCritical},
	}
	for _, tt := range tests {
		if got := Severity(tt.count); got != tt.want {
			t.Errorf("Severity(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-19.9123, -19.91},
		{-19.9150, -19.91}, // round half away handled by math.Round on negative
		{-43.9449, -43.94},
		{-43.945, -43.94},
	}
	for _, tt := range tests {
		got := SnapToGrid(tt.in)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SnapToGrid(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHotspots_Compute(t *testing.T) {
	a := NewHotspots("", "", 10, testDeps())

	records := []telemetry.CleanRecord{
		position(-19.9123, -43.9412, telemetry.Float(30), nil, "2026-03-14"),
		position(-19.9124, -43.9413, telemetry.Float(45), nil, "2026-03-14"),
		position(-19.9125, -43.9414, telemetry.Float(0), nil, "2026-03-14"),
		position(-19.9126, -43.9415, telemetry.Float(-5), nil, "2026-03-14"),
		position(-19.9500, -43.9000, telemetry.Float(3), nil, "2026-03-14"),
		position(-19.9127, -43.9416, nil, nil, "2026-03-14"),
	}

	rows := a.Compute(records)
	// Speeds 30 and 45 are at/above threshold; null speed never counts.
	// The 0 and -5 rows share grid cell (-19.91, -43.94); the 3 row is its
	// own cell.
	if len(rows) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(rows))
	}

	top := rows[0]
	if top.LatGrid != -19.91 || top.LonGrid != -43.94 {
		t.Errorf("top cell = (%v, %v), want (-19.91, -43.94)", top.LatGrid, top.LonGrid)
	}
	if top.Occurrences != 2 {
		t.Errorf("occurrences = %d, want 2", top.Occurrences)
	}
	if top.SpeedMin != -5 {
		t.Errorf("min speed = %v, want -5", top.SpeedMin)
	}
	if top.SpeedMean != -2.5 {
		t.Errorf("mean speed = %v, want -2.5", top.SpeedMean)
	}
	if top.Severity != SeverityLow {
		t.Errorf("severity = %q, want low", top.Severity)
	}
	if top.SpeedThreshold != 10 {
		t.Errorf("threshold stamp = %v, want 10", top.SpeedThreshold)
	}
}

func TestHotspots_SortedByOccurrences(t *testing.T) {
	a := NewHotspots("", "", 10, testDeps())

	var records []telemetry.CleanRecord
	for i := 0; i < 3; i++ {
		records = append(records, position(-19.91, -43.94, telemetry.Float(2), nil, "2026-03-14"))
	}
	records = append(records, position(-19.80, -43.85, telemetry.Float(2), nil, "2026-03-14"))

	rows := a.Compute(records)
	if len(rows) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(rows))
	}
	if rows[0].Occurrences < rows[1].Occurrences {
		t.Error("cells not sorted by descending occurrences")
	}
}

func TestHotspots_DefaultThreshold(t *testing.T) {
	a := NewHotspots("", "", 0, testDeps())
	if a.threshold != 10 {
		t.Errorf("threshold = %v, want default 10", a.threshold)
	}
}
