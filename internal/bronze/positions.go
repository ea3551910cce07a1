package bronze

import (
	"context"

	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// PositionIngester ingests the PBH real-time vehicle position feed.
type PositionIngester struct {
	url  string
	base string
	deps Deps
}

// NewPositionIngester creates an ingester for the real-time position feed.
func NewPositionIngester(url, bronzePath string, deps Deps) *PositionIngester {
	return &PositionIngester{url: url, base: bronzePath, deps: deps}
}

// Name returns the bronze dataset name.
func (i *PositionIngester) Name() string { return DatasetPositions }

// Extract fetches the feed and decodes it into raw records. Zero decoded
// records is a legitimate outcome and yields an empty set with the full
// raw schema; an absent payload is an error.
func (i *PositionIngester) Extract(ctx context.Context) ([]telemetry.RawRecord, error) {
	span := lineage.Begin("PBH real-time API", "extract_vehicle_positions")

	text, err := i.deps.Fetcher.Fetch(ctx, i.url)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("method", "client_profile_rotation")

	records, err := telemetry.DecodeAt(text, "realtime_api", i.deps.now())
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}

	if len(records) == 0 {
		i.deps.Log.Warn("feed returned no records", "source", i.Name())
	}

	span.AddMetadata("records_extracted", len(records))
	i.deps.Log.Info("extracted records", "source", i.Name(),
		"records", len(records), "lineage", span.Snapshot())
	return records, nil
}

// Load writes records as a new immutable bronze snapshot.
func (i *PositionIngester) Load(records []telemetry.RawRecord) (string, error) {
	return storage.WriteSnapshot(i.deps.Store, i.base, DatasetPositions, records, i.deps.now())
}

// Run extracts then loads.
func (i *PositionIngester) Run(ctx context.Context) (string, error) {
	records, err := i.Extract(ctx)
	if err != nil {
		return "", err
	}
	return i.Load(records)
}
