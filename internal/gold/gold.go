// Package gold implements the aggregation stage: four independent metric
// strategies over the cleaned position table, each recomputed in full and
// overwritten on every run.
package gold

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/outcome"
	"github.com/bhmob/bhlake/internal/silver"
	"github.com/bhmob/bhlake/internal/storage"
	"github.com/bhmob/bhlake/internal/telemetry"
)

// Table names in the gold layer.
const (
	TableSpeedByLine    = "speed_by_line"
	TableActiveVehicles = "active_vehicles_by_period"
	TableLineCoverage   = "line_coverage"
	TableHotspots       = "slow_traffic_hotspots"
)

// Aggregator is the uniform handle on one metric strategy.
type Aggregator interface {
	Name() string
	Run() (string, error)
}

// Deps bundles the collaborators shared by all aggregators.
type Deps struct {
	Store *storage.Store
	Log   *slog.Logger
	Now   func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// AggregateAll runs every metric strategy. Each strategy fails
// independently; one failure never blocks the others.
func AggregateAll(cfg *config.Config, deps Deps) map[string]outcome.Outcome {
	silverPath := cfg.Layers.Silver.Path
	goldPath := cfg.Layers.Gold.Path
	results := make(map[string]outcome.Outcome)

	aggregators := []Aggregator{
		NewSpeedByLine(silverPath, goldPath, deps),
		NewActiveVehicles(silverPath, goldPath, deps),
		NewLineCoverage(silverPath, goldPath, deps),
		NewHotspots(silverPath, goldPath, cfg.Pipeline.HotspotSpeedThreshold, deps),
	}

	for _, agg := range aggregators {
		location, err := agg.Run()
		if err != nil {
			deps.Log.Error("aggregation failed", "table", agg.Name(), "error", err)
			results[agg.Name()] = outcome.Failed(err)
			continue
		}
		results[agg.Name()] = outcome.Success(location)
	}

	return results
}

// readPositions loads the full cleaned position table, all date partitions
// concatenated.
func readPositions(silverPath string) ([]telemetry.CleanRecord, error) {
	return storage.ReadTable[telemetry.CleanRecord](filepath.Join(silverPath, silver.TablePositions))
}
