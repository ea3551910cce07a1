package silver

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/bhmob/bhlake/internal/bronze"
	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// positionAliases maps normalized extra keys of raw position records to
// canonical fields, for feeds that ship alternate column names.
var positionAliases = map[string]string{
	"lat":     "latitude",
	"lon":     "longitude",
	"vel":     "speed",
	"linha":   "line_number",
	"veiculo": "vehicle_id",
}

// PositionTransformer cleans raw vehicle positions into the silver fact
// table. The steps run in a fixed order; each depends on the previous:
// read newest snapshot, promote aliased extras, resolve timestamps, drop
// critical nulls, drop out-of-region coordinates, deduplicate, derive time
// buckets, hard-validate, stamp processing metadata and quality score.
type PositionTransformer struct {
	bronzePath string
	silverPath string
	deps       Deps
}

// NewPositionTransformer creates the position cleaning pipeline.
func NewPositionTransformer(bronzePath, silverPath string, deps Deps) *PositionTransformer {
	return &PositionTransformer{bronzePath: bronzePath, silverPath: silverPath, deps: deps}
}

// Name returns the silver table name.
func (t *PositionTransformer) Name() string { return TablePositions }

// Transform produces cleaned records from the newest bronze snapshot.
func (t *PositionTransformer) Transform() ([]telemetry.CleanRecord, error) {
	span := lineage.Begin("bronze: "+bronze.DatasetPositions, "transform_to_silver")

	latest, err := storage.LatestFile(filepath.Join(t.bronzePath, bronze.DatasetPositions))
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	t.deps.Log.Info("reading bronze snapshot", "file", latest)

	raw, err := storage.ReadFile[telemetry.RawRecord](latest)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(raw))

	for i := range raw {
		promoteAliases(&raw[i])
	}

	records, droppedNull := resolveCritical(raw)
	if droppedNull > 0 {
		t.deps.Log.Warn("dropped records with null critical fields", "count", droppedNull)
	}

	records, droppedRegion := filterRegion(records)
	if droppedRegion > 0 {
		t.deps.Log.Warn("dropped records with invalid coordinates", "count", droppedRegion)
	}

	records, droppedDup := Deduplicate(records)
	if droppedDup > 0 {
		t.deps.Log.Warn("removed duplicate records", "count", droppedDup)
	}

	for i := range records {
		deriveTimeBuckets(&records[i])
	}

	if len(records) == 0 {
		// Degraded mode: nothing to validate, loggable but not a failure.
		t.deps.Log.Warn("no records left after cleaning, skipping validation")
	} else {
		if err := quality.Run(t.deps.Validator, records, quality.PositionSchema()); err != nil {
			span.AddMetadata("error", err.Error())
			return nil, err
		}
	}

	score := quality.Score(records)
	processedAt := t.deps.now()
	for i := range records {
		records[i].ProcessedAt = processedAt
		records[i].QualityScore = score
	}

	span.AddMetadata("output_records", len(records))
	span.AddMetadata("dropped_null", droppedNull)
	span.AddMetadata("dropped_region", droppedRegion)
	span.AddMetadata("dropped_duplicates", droppedDup)

	report := quality.Describe(TablePositions, records)
	t.deps.Log.Info("transform complete", "table", t.Name(),
		"records", len(records), "quality_score", score,
		"duplicates", report.DuplicateCount, "lineage", span.Snapshot())
	return records, nil
}

// Load appends cleaned records to the silver fact table, partitioned by
// date. A date partition accumulates across runs.
func (t *PositionTransformer) Load(records []telemetry.CleanRecord) (string, error) {
	return storage.AppendByDate(t.deps.Store, t.silverPath, TablePositions,
		records, t.deps.now(), func(r telemetry.CleanRecord) string { return r.Date })
}

// Run transforms then loads.
func (t *PositionTransformer) Run() (string, error) {
	records, err := t.Transform()
	if err != nil {
		return "", err
	}
	return t.Load(records)
}

// promoteAliases moves recognized alternate column names from Extra into
// their canonical typed fields, coercing numerics tolerantly. A value that
// fails to parse stays null.
func promoteAliases(r *telemetry.RawRecord) {
	for key, value := range r.Extra {
		canonical, known := positionAliases[quality.NormalizeColumn(key)]
		if !known {
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			delete(r.Extra, key)
			continue
		}
		switch canonical {
		case "latitude":
			if r.Latitude == nil {
				r.Latitude = &f
			}
		case "longitude":
			if r.Longitude == nil {
				r.Longitude = &f
			}
		case "speed":
			if r.Speed == nil {
				r.Speed = &f
			}
		case "line_number":
			if r.LineNumber == nil {
				r.LineNumber = &f
			}
		case "vehicle_id":
			if r.VehicleID == nil {
				r.VehicleID = &f
			}
		}
		delete(r.Extra, key)
	}
}

// resolveCritical converts raw records to clean records, dropping rows
// missing any critical field (latitude, longitude, timestamp). The record
// timestamp falls back to the ingestion timestamp when the feed carries no
// parseable event time.
func resolveCritical(raw []telemetry.RawRecord) ([]telemetry.CleanRecord, int) {
	records := make([]telemetry.CleanRecord, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		if r.Latitude == nil || r.Longitude == nil || r.IngestedAt.IsZero() {
			dropped++
			continue
		}
		records = append(records, telemetry.CleanRecord{
			Event:      r.Event,
			Time:       r.Time,
			Latitude:   *r.Latitude,
			Longitude:  *r.Longitude,
			VehicleID:  r.VehicleID,
			Speed:      r.Speed,
			LineNumber: r.LineNumber,
			Direction:  r.Direction,
			Status:     r.Status,
			Distance:   r.Distance,
			Timestamp:  r.IngestedAt,
			IngestedAt: r.IngestedAt,
			Source:     r.Source,
		})
	}
	return records, dropped
}

// filterRegion drops rows with exactly-zero or out-of-region coordinates.
func filterRegion(records []telemetry.CleanRecord) ([]telemetry.CleanRecord, int) {
	kept := records[:0:0]
	dropped := 0
	for _, r := range records {
		if r.Latitude == 0 || r.Longitude == 0 || !telemetry.InRegion(r.Latitude, r.Longitude) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

// Deduplicate removes duplicate records, keeping the first occurrence.
// When the set carries vehicle ids the natural key is (vehicle_id,
// timestamp); otherwise full-row equality is used. Applying it twice
// yields the same result as applying it once.
func Deduplicate(records []telemetry.CleanRecord) ([]telemetry.CleanRecord, int) {
	hasVehicle := false
	for i := range records {
		if records[i].VehicleID != nil {
			hasVehicle = true
			break
		}
	}

	seen := make(map[string]bool, len(records))
	kept := records[:0:0]
	dropped := 0

	for _, r := range records {
		var key string
		if hasVehicle {
			vid := "-"
			if r.VehicleID != nil {
				vid = strconv.FormatFloat(*r.VehicleID, 'g', -1, 64)
			}
			key = vid + "|" + r.Timestamp.Format("2006-01-02T15:04:05.999999999")
		} else {
			key = fingerprint(r)
		}
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	return kept, dropped
}

func fingerprint(r telemetry.CleanRecord) string {
	key := ""
	for _, col := range r.Columns() {
		v, ok := r.Field(col)
		if !ok {
			key += "\x00"
			continue
		}
		key += fmt.Sprintf("%v\x1f", v)
	}
	return key
}

// deriveTimeBuckets attaches date, hour, weekday (Monday=0) and day period.
func deriveTimeBuckets(r *telemetry.CleanRecord) {
	r.Date = r.Timestamp.Format("2006-01-02")
	r.Hour = int32(r.Timestamp.Hour())
	r.Weekday = int32((int(r.Timestamp.Weekday()) + 6) % 7)
	r.DayPeriod = telemetry.ClassifyPeriod(r.Timestamp.Hour())
}
