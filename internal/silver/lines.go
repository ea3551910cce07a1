package silver

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bhmob/bhlake/internal/bronze"
	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// LineTransformer cleans the transit-line reference dimension. Unlike the
// position fact table it carries no temporal partitioning: each refresh
// fully replaces the prior snapshot.
type LineTransformer struct {
	bronzePath string
	silverPath string
	deps       Deps
}

// NewLineTransformer creates the line dimension cleaning pipeline.
func NewLineTransformer(bronzePath, silverPath string, deps Deps) *LineTransformer {
	return &LineTransformer{bronzePath: bronzePath, silverPath: silverPath, deps: deps}
}

// Name returns the silver table name.
func (t *LineTransformer) Name() string { return TableLines }

// Transform produces the cleaned dimension from the newest bronze snapshot.
func (t *LineTransformer) Transform() ([]telemetry.LineRecord, error) {
	span := lineage.Begin("bronze: "+bronze.DatasetLines, "transform_to_silver")

	latest, err := storage.LatestFile(filepath.Join(t.bronzePath, bronze.DatasetLines))
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	t.deps.Log.Info("reading bronze snapshot", "file", latest)

	records, err := storage.ReadFile[telemetry.LineRecord](latest)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(records))

	records, dropped := dedupeLines(records)
	if dropped > 0 {
		t.deps.Log.Warn("removed duplicate records", "count", dropped)
	}

	if err := quality.Run(t.deps.Validator, records, quality.LineSchema()); err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}

	processedAt := t.deps.now()
	for i := range records {
		records[i].ProcessedAt = processedAt
	}

	span.AddMetadata("output_records", len(records))
	t.deps.Log.Info("transform complete", "table", t.Name(),
		"records", len(records), "lineage", span.Snapshot())
	return records, nil
}

// Load overwrites the silver dimension table with the new snapshot.
func (t *LineTransformer) Load(records []telemetry.LineRecord) (string, error) {
	return storage.Overwrite(t.deps.Store, t.silverPath, TableLines, records)
}

// Run transforms then loads.
func (t *LineTransformer) Run() (string, error) {
	records, err := t.Transform()
	if err != nil {
		return "", err
	}
	return t.Load(records)
}

// dedupeLines removes full-row duplicates, keeping the first occurrence.
func dedupeLines(records []telemetry.LineRecord) ([]telemetry.LineRecord, int) {
	seen := make(map[string]bool, len(records))
	kept := records[:0:0]
	dropped := 0

	for _, r := range records {
		var sb strings.Builder
		sb.WriteString(r.Line)
		sb.WriteString("\x1f")
		if r.DayType != nil {
			sb.WriteString(*r.DayType)
		}
		sb.WriteString("\x1f")
		extras := make([]string, 0, len(r.Extra))
		for k, v := range r.Extra {
			extras = append(extras, k+"="+v)
		}
		sort.Strings(extras)
		sb.WriteString(strings.Join(extras, "\x1f"))

		key := sb.String()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	return kept, dropped
}
