package bronze

import (
	"context"
	"encoding/csv"
	"os"
	"strings"

	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/errors"
	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// lineAliases maps normalized source headers of the operational control map
// export to canonical dimension columns.
var lineAliases = map[string]string{
	"linha":    "line",
	"line":     "line",
	"tipo_dia": "day_type",
	"day_type": "day_type",
}

// LineIngester ingests the transit-line reference dataset, a ;-separated
// CSV export served over HTTP or read from a local file.
type LineIngester struct {
	src  config.SourceConfig
	base string
	deps Deps
}

// NewLineIngester creates an ingester for the line reference dataset.
func NewLineIngester(src config.SourceConfig, bronzePath string, deps Deps) *LineIngester {
	return &LineIngester{src: src, base: bronzePath, deps: deps}
}

// Name returns the bronze dataset name.
func (i *LineIngester) Name() string { return DatasetLines }

// Extract reads the CSV export, normalizes headers, maps known aliases to
// canonical columns and stamps ingestion metadata.
func (i *LineIngester) Extract(ctx context.Context) ([]telemetry.LineRecord, error) {
	span := lineage.Begin("PBH operational control map", "extract_transit_lines")

	var text string
	switch {
	case i.src.File != "":
		data, err := os.ReadFile(i.src.File)
		if err != nil {
			span.AddMetadata("error", err.Error())
			return nil, errors.Wrap(err, "read local file")
		}
		text = string(data)
		span.AddMetadata("source_type", "local_file")
	case i.src.URL != "":
		body, err := i.deps.Fetcher.Fetch(ctx, i.src.URL)
		if err != nil {
			span.AddMetadata("error", err.Error())
			return nil, err
		}
		text = body
		span.AddMetadata("source_type", "url")
	default:
		return nil, errors.NewMissingField("url or file")
	}

	records, err := i.parse(text)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}

	span.AddMetadata("records_extracted", len(records))
	i.deps.Log.Info("extracted records", "source", i.Name(),
		"records", len(records), "lineage", span.Snapshot())
	return records, nil
}

func (i *LineIngester) parse(text string) ([]telemetry.LineRecord, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse csv: %v", errors.ErrDecode)
	}
	if len(rows) == 0 {
		return nil, errors.ErrNoContent
	}

	headers := quality.NormalizeColumns(rows[0])
	ingestedAt := i.deps.now()

	records := make([]telemetry.LineRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var rec telemetry.LineRecord
		rec.IngestedAt = ingestedAt
		rec.Source = "control_map_export"

		for col, value := range row {
			if col >= len(headers) {
				break
			}
			value = strings.TrimSpace(value)
			switch lineAliases[headers[col]] {
			case "line":
				rec.Line = value
			case "day_type":
				if value != "" {
					rec.DayType = telemetry.String(value)
				}
			default:
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[headers[col]] = value
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Load writes records as a new immutable bronze snapshot.
func (i *LineIngester) Load(records []telemetry.LineRecord) (string, error) {
	return storage.WriteSnapshot(i.deps.Store, i.base, DatasetLines, records, i.deps.now())
}

// Run extracts then loads.
func (i *LineIngester) Run(ctx context.Context) (string, error) {
	records, err := i.Extract(ctx)
	if err != nil {
		return "", err
	}
	return i.Load(records)
}
