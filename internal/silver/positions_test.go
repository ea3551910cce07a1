package silver

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

func testDeps() Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Deps{
		Store:     storage.NewStore(storage.DefaultOptions(), log),
		Validator: quality.NewValidator(log),
		Log:       log,
		Now:       func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
}

func clean(lat, lon float64, vehicle *float64, ts time.Time) telemetry.CleanRecord {
	return telemetry.CleanRecord{
		Latitude:  lat,
		Longitude: lon,
		VehicleID: vehicle,
		Timestamp: ts,
	}
}

func TestResolveCritical(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	raw := []telemetry.RawRecord{
		{Latitude: telemetry.Float(-19.92), Longitude: telemetry.Float(-43.94), IngestedAt: at},
		{Latitude: nil, Longitude: telemetry.Float(-43.94), IngestedAt: at},
		{Latitude: telemetry.Float(-19.92), Longitude: nil, IngestedAt: at},
		{Latitude: telemetry.Float(-19.92), Longitude: telemetry.Float(-43.94)}, // no timestamp
	}

	records, dropped := resolveCritical(raw)
	if len(records) != 1 || dropped != 3 {
		t.Fatalf("kept %d dropped %d, want 1/3", len(records), dropped)
	}
	// Event time falls back to the ingestion timestamp.
	if !records[0].Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", records[0].Timestamp, at)
	}
}

func TestFilterRegion(t *testing.T) {
	at := time.Now()
	records := []telemetry.CleanRecord{
		clean(-19.92, -43.94, nil, at), // in region
		clean(0, -43.94, nil, at),     // zero latitude
		clean(-19.92, 0, nil, at),     // zero longitude
		clean(-25.0, -43.94, nil, at), // out of region
	}

	kept, dropped := filterRegion(records)
	if len(kept) != 1 || dropped != 3 {
		t.Errorf("kept %d dropped %d, want 1/3", len(kept), dropped)
	}
}

func TestDeduplicate_ByVehicleAndTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	records := []telemetry.CleanRecord{
		clean(-19.92, -43.94, telemetry.Float(1), at),
		clean(-19.93, -43.95, telemetry.Float(1), at), // same vehicle+time, different coords
		clean(-19.92, -43.94, telemetry.Float(1), at.Add(time.Minute)),
		clean(-19.92, -43.94, telemetry.Float(2), at),
	}

	kept, dropped := Deduplicate(records)
	if len(kept) != 3 || dropped != 1 {
		t.Fatalf("kept %d dropped %d, want 3/1", len(kept), dropped)
	}
	// First occurrence wins.
	if kept[0].Latitude != -19.92 {
		t.Errorf("first occurrence not kept: %+v", kept[0])
	}
}

func TestDeduplicate_FullRowWhenNoVehicleIDs(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	records := []telemetry.CleanRecord{
		clean(-19.92, -43.94, nil, at),
		clean(-19.92, -43.94, nil, at),
		clean(-19.93, -43.94, nil, at),
	}

	kept, dropped := Deduplicate(records)
	if len(kept) != 2 || dropped != 1 {
		t.Errorf("kept %d dropped %d, want 2/1", len(kept), dropped)
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	records := []telemetry.CleanRecord{
		clean(-19.92, -43.94, telemetry.Float(1), at),
		clean(-19.92, -43.94, telemetry.Float(1), at),
		clean(-19.92, -43.94, telemetry.Float(2), at),
	}

	once, _ := Deduplicate(records)
	twice, dropped := Deduplicate(once)
	if dropped != 0 {
		t.Errorf("second pass dropped %d rows, want 0", dropped)
	}
	if len(twice) != len(once) {
		t.Errorf("second pass changed length: %d vs %d", len(twice), len(once))
	}
}

func TestDeriveTimeBuckets(t *testing.T) {
	// 2026-03-14 is a Saturday.
	r := clean(-19.92, -43.94, nil, time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC))
	deriveTimeBuckets(&r)

	if r.Date != "2026-03-14" {
		t.Errorf("date = %q", r.Date)
	}
	if r.Hour != 19 {
		t.Errorf("hour = %d, want 19", r.Hour)
	}
	if r.Weekday != 5 { // Monday=0, Saturday=5
		t.Errorf("weekday = %d, want 5", r.Weekday)
	}
	if r.DayPeriod != telemetry.PeriodNight {
		t.Errorf("day_period = %q, want night", r.DayPeriod)
	}
}

func TestDeriveTimeBuckets_MondayIsZero(t *testing.T) {
	r := clean(-19.92, -43.94, nil, time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC))
	deriveTimeBuckets(&r)
	if r.Weekday != 0 {
		t.Errorf("weekday = %d, want 0 for Monday", r.Weekday)
	}
}

func TestPromoteAliases(t *testing.T) {
	r := telemetry.RawRecord{
		Extra: map[string]string{
			"Lat":     "-19.92",
			"LON":     "-43.94",
			"Vel":     "35",
			"bogus":   "keep",
			"Veiculo": "notanumber",
		},
	}
	promoteAliases(&r)

	if r.Latitude == nil || *r.Latitude != -19.92 {
		t.Errorf("latitude = %v, want -19.92", r.Latitude)
	}
	if r.Longitude == nil || *r.Longitude != -43.94 {
		t.Errorf("longitude = %v, want -43.94", r.Longitude)
	}
	if r.Speed == nil || *r.Speed != 35 {
		t.Errorf("speed = %v, want 35", r.Speed)
	}
	if r.VehicleID != nil {
		t.Errorf("unparseable vehicle id should stay null, got %v", *r.VehicleID)
	}
	if _, ok := r.Extra["bogus"]; !ok {
		t.Error("unrecognized extras must be preserved")
	}
	if _, ok := r.Extra["Lat"]; ok {
		t.Error("promoted extras must be removed")
	}
}

// Two wire records, the second out of region: hard validation must raise on
// the cleaned pair, and after dropping the invalid row the survivor scores a
// perfect 1.0 (complete and in-region).
func TestCleaningRejectsOutOfRegionThenScoresPerfect(t *testing.T) {
	text := "<EV=1;HR=100;LT=-19.90;LG=-43.95;VL=30>\n<EV=2;HR=101;LT=-25.0;LG=-43.90;VL=25>"
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	raw, err := telemetry.DecodeAt(text, "realtime_api", at)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("decoded %d records, want 2", len(raw))
	}

	records, dropped := resolveCritical(raw)
	if len(records) != 2 || dropped != 0 {
		t.Fatalf("resolve kept %d dropped %d", len(records), dropped)
	}
	for i := range records {
		deriveTimeBuckets(&records[i])
	}

	if err := quality.Validate(records, quality.PositionSchema()); err == nil {
		t.Fatal("expected validation failure on the out-of-region latitude")
	}

	kept, droppedRegion := filterRegion(records)
	if len(kept) != 1 || droppedRegion != 1 {
		t.Fatalf("region filter kept %d dropped %d", len(kept), droppedRegion)
	}
	if err := quality.Validate(kept, quality.PositionSchema()); err != nil {
		t.Fatalf("survivor should validate: %v", err)
	}
	if score := quality.Score(kept); score != 1.0 {
		t.Errorf("score = %v, want exactly 1.0", score)
	}
}

func TestPositionTransformer_EndToEnd(t *testing.T) {
	deps := testDeps()
	bronzePath := t.TempDir()
	silverPath := t.TempDir()

	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	raw := []telemetry.RawRecord{
		{
			Latitude: telemetry.Float(-19.92), Longitude: telemetry.Float(-43.94),
			VehicleID: telemetry.Float(30123), Speed: telemetry.Float(32),
			LineNumber: telemetry.Float(9202), IngestedAt: at, Source: "realtime_api",
		},
		{ // duplicate of the first
			Latitude: telemetry.Float(-19.92), Longitude: telemetry.Float(-43.94),
			VehicleID: telemetry.Float(30123), Speed: telemetry.Float(32),
			LineNumber: telemetry.Float(9202), IngestedAt: at, Source: "realtime_api",
		},
		{ // out of region
			Latitude: telemetry.Float(-25.0), Longitude: telemetry.Float(-43.94),
			VehicleID: telemetry.Float(30124), IngestedAt: at, Source: "realtime_api",
		},
		{ // missing longitude
			Latitude: telemetry.Float(-19.92), VehicleID: telemetry.Float(30125),
			IngestedAt: at, Source: "realtime_api",
		},
	}
	if _, err := storage.WriteSnapshot(deps.Store, bronzePath, "vehicle_positions", raw, at); err != nil {
		t.Fatalf("seed bronze: %v", err)
	}

	tr := NewPositionTransformer(bronzePath, silverPath, deps)
	records, err := tr.Transform()
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 cleaned record, got %d", len(records))
	}

	r := records[0]
	if r.Date != "2026-03-14" || r.Hour != 10 || r.DayPeriod != telemetry.PeriodMorning {
		t.Errorf("time buckets wrong: %+v", r)
	}
	if r.QualityScore <= 0 || r.QualityScore > 1 {
		t.Errorf("quality score %v out of (0,1]", r.QualityScore)
	}
	if r.ProcessedAt.IsZero() {
		t.Error("processed timestamp not stamped")
	}

	location, err := tr.Load(records)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stored, err := storage.ReadTable[telemetry.CleanRecord](location)
	if err != nil {
		t.Fatalf("read silver: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("silver table has %d rows, want 1", len(stored))
	}
}

func TestLineTransformer_DedupesAndStamps(t *testing.T) {
	deps := testDeps()
	bronzePath := t.TempDir()
	silverPath := t.TempDir()

	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	lines := []telemetry.LineRecord{
		{Line: "9202", DayType: telemetry.String("weekday"), IngestedAt: at, Source: "control_map_export"},
		{Line: "9202", DayType: telemetry.String("weekday"), IngestedAt: at, Source: "control_map_export"},
		{Line: "4111", IngestedAt: at, Source: "control_map_export"},
	}
	if _, err := storage.WriteSnapshot(deps.Store, bronzePath, "transit_lines", lines, at); err != nil {
		t.Fatalf("seed bronze: %v", err)
	}

	tr := NewLineTransformer(bronzePath, silverPath, deps)
	records, err := tr.Transform()
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 deduped records, got %d", len(records))
	}
	for _, r := range records {
		if r.ProcessedAt.IsZero() {
			t.Error("processed timestamp not stamped")
		}
	}
}
