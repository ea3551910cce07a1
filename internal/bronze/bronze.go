// Package bronze implements the raw ingestion stage: it pulls source data,
// decodes it, stamps ingestion metadata and lands immutable snapshots in
// the bronze layer.
package bronze

import (
	"context"
	"log/slog"
	"time"

	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/fetch"
	"github.com/bhmob/bhlake/internal/outcome"
	"github.com/bhmob/bhlake/internal/storage"
)

// Dataset names in the bronze layer.
const (
	DatasetPositions = "vehicle_positions"
	DatasetLines     = "transit_lines"
)

// Ingester is the uniform handle a stage runner holds on one source.
// Concrete ingesters expose typed Extract/Load capability methods; Run
// composes them.
type Ingester interface {
	Name() string
	Run(ctx context.Context) (string, error)
}

// Deps bundles the collaborators shared by all ingesters.
type Deps struct {
	Fetcher fetch.Strategy
	Store   *storage.Store
	Log     *slog.Logger
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// IngestAll runs ingestion for every enabled data source. Each source's
// failure is recorded as a Failed outcome and does not abort its siblings.
// Disabled sources are absent from the result map.
func IngestAll(ctx context.Context, cfg *config.Config, deps Deps) map[string]outcome.Outcome {
	results := make(map[string]outcome.Outcome)
	bronzePath := cfg.Layers.Bronze.Path

	if src, ok := cfg.Source(DatasetPositions); ok {
		ing := NewPositionIngester(src.URL, bronzePath, deps)
		results[DatasetPositions] = run(ctx, ing, deps.Log)
	}

	if src, ok := cfg.Source(DatasetLines); ok {
		ing := NewLineIngester(src, bronzePath, deps)
		results[DatasetLines] = run(ctx, ing, deps.Log)
	}

	return results
}

func run(ctx context.Context, ing Ingester, log *slog.Logger) outcome.Outcome {
	location, err := ing.Run(ctx)
	if err != nil {
		log.Error("ingestion failed", "source", ing.Name(), "error", err)
		return outcome.Failed(err)
	}
	return outcome.Success(location)
}
