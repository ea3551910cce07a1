// Package silver implements the cleaning stage: it reads the newest bronze
// snapshot per dataset, normalizes and enriches records, runs quality
// gates and writes cleaned tables to the silver layer.
package silver

import (
	"log/slog"
	"time"

	"github.com/bhmob/bhlake/internal/bronze"
	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/outcome"
	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/storage"
)

// Table names in the silver layer.
const (
	TablePositions = "vehicle_positions"
	TableLines     = "transit_lines"
)

// Transformer is the uniform handle on one dataset's cleaning pipeline.
type Transformer interface {
	Name() string
	Run() (string, error)
}

// Deps bundles the collaborators shared by all transformers.
type Deps struct {
	Store     *storage.Store
	Validator *quality.Validator
	Log       *slog.Logger
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// TransformAll runs cleaning for every enabled data source. Each dataset's
// failure is recorded as a Failed outcome and does not abort its siblings.
func TransformAll(cfg *config.Config, deps Deps) map[string]outcome.Outcome {
	results := make(map[string]outcome.Outcome)
	bronzePath := cfg.Layers.Bronze.Path
	silverPath := cfg.Layers.Silver.Path

	if _, ok := cfg.Source(bronze.DatasetPositions); ok {
		t := NewPositionTransformer(bronzePath, silverPath, deps)
		results[TablePositions] = run(t, deps.Log)
	} else {
		deps.Log.Info("position transform disabled in configuration")
	}

	if _, ok := cfg.Source(bronze.DatasetLines); ok {
		t := NewLineTransformer(bronzePath, silverPath, deps)
		results[TableLines] = run(t, deps.Log)
	} else {
		deps.Log.Info("line transform disabled in configuration")
	}

	return results
}

func run(t Transformer, log *slog.Logger) outcome.Outcome {
	location, err := t.Run()
	if err != nil {
		log.Error("transform failed", "table", t.Name(), "error", err)
		return outcome.Failed(err)
	}
	return outcome.Success(location)
}
