// Package pipeline orchestrates the bronze -> silver -> gold run.
//
// Stages execute strictly in sequence within a single process. A stage
// failure is recorded in the result map and, under the default
// continue-on-error policy, does not stop later stages. Overall success is
// the AND of all attempted stages; stages not requested are absent from
// the result set.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/bhmob/bhlake/internal/bronze"
	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/errors"
	"github.com/bhmob/bhlake/internal/fetch"
	"github.com/bhmob/bhlake/internal/gold"
	"github.com/bhmob/bhlake/internal/logging"
	"github.com/bhmob/bhlake/internal/outcome"
	"github.com/bhmob/bhlake/internal/quality"
	"github.com/bhmob/bhlake/internal/silver"
	"github.com/bhmob/bhlake/internal/storage"
)

// Layer names accepted by Run.
const (
	LayerBronze = "bronze"
	LayerSilver = "silver"
	LayerGold   = "gold"
)

// Result is the outcome of one orchestrator run.
type Result struct {
	ExecutionID     string                                `json:"execution_id"`
	StartTime       time.Time                             `json:"start_time"`
	EndTime         time.Time                             `json:"end_time"`
	DurationSeconds float64                               `json:"duration_seconds"`
	Success         bool                                  `json:"success"`
	Status          string                                `json:"status"` // COMPLETED or FAILED
	Layers          map[string]map[string]outcome.Outcome `json:"layers"`
}

// stageFunc runs one stage and returns its per-source outcomes.
type stageFunc func(ctx context.Context) map[string]outcome.Outcome

// Pipeline sequences the three stages over one configuration.
type Pipeline struct {
	cfg       *config.Config
	log       *slog.Logger
	validator *quality.Validator
	state     State
	now       func() time.Time

	runBronze stageFunc
	runSilver stageFunc
	runGold   stageFunc
}

// New builds a pipeline from a configuration file. A missing or unreadable
// configuration is fatal: no partial execution is possible without one.
func New(configPath string) (*Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Init(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format == "json",
		cfg.Logging.File,
	); err != nil {
		return nil, errors.Wrap(err, "init logging")
	}

	return NewWithConfig(cfg), nil
}

// NewWithConfig builds a pipeline from an already resolved configuration.
func NewWithConfig(cfg *config.Config) *Pipeline {
	log := logging.Component("pipeline")
	validator := quality.NewValidator(logging.Component("quality"))

	store := storage.NewStore(storage.Options{
		Compression:      storage.ParseCompressionType(cfg.Storage.Compression.Algorithm),
		CompressionLevel: cfg.Storage.Compression.Level,
	}, logging.Component("storage"))

	fetcher := fetch.NewProfileClient(
		fetch.ProfilesByName(cfg.Fetch.Profiles),
		cfg.FetchTimeout(),
		logging.Component("fetch"),
	)

	p := &Pipeline{
		cfg:       cfg,
		log:       log,
		validator: validator,
		state:     StateNotStarted,
		now:       time.Now,
	}

	p.runBronze = func(ctx context.Context) map[string]outcome.Outcome {
		return bronze.IngestAll(ctx, cfg, bronze.Deps{
			Fetcher: fetcher,
			Store:   store,
			Log:     logging.Component("bronze"),
		})
	}
	p.runSilver = func(ctx context.Context) map[string]outcome.Outcome {
		return silver.TransformAll(cfg, silver.Deps{
			Store:     store,
			Validator: validator,
			Log:       logging.Component("silver"),
		})
	}
	p.runGold = func(ctx context.Context) map[string]outcome.Outcome {
		return gold.AggregateAll(cfg, gold.Deps{
			Store: store,
			Log:   logging.Component("gold"),
		})
	}

	return p
}

// Validator exposes the run's validation history.
func (p *Pipeline) Validator() *quality.Validator { return p.validator }

// State returns the orchestrator's current state.
func (p *Pipeline) State() State { return p.state }

// Run executes the requested layers in order. A nil layer list means the
// full bronze/silver/gold sequence; skipBronze removes bronze from an
// otherwise full run (reprocess existing raw data without re-fetching).
func (p *Pipeline) Run(ctx context.Context, layers []string, skipBronze bool) Result {
	if layers == nil {
		layers = []string{LayerBronze, LayerSilver, LayerGold}
	}
	selected := make(map[string]bool)
	for _, layer := range layers {
		switch layer {
		case LayerBronze, LayerSilver, LayerGold:
			selected[layer] = true
		default:
			p.log.Warn("ignoring unknown layer", "layer", layer)
		}
	}
	if skipBronze {
		delete(selected, LayerBronze)
	}

	start := p.now()
	result := Result{
		ExecutionID: start.Format("20060102_150405"),
		StartTime:   start,
		Layers:      make(map[string]map[string]outcome.Outcome),
	}

	p.log.Info("pipeline starting",
		"execution_id", result.ExecutionID, "layers", layerNames(selected))

	success := true

	stages := []struct {
		name  string
		state State
		run   stageFunc
	}{
		{LayerBronze, StateBronze, p.runBronze},
		{LayerSilver, StateSilver, p.runSilver},
		{LayerGold, StateGold, p.runGold},
	}

	for _, stage := range stages {
		if !selected[stage.name] {
			continue
		}
		if err := p.transition(stage.state); err != nil {
			p.log.Error("stage sequencing error", "stage", stage.name, "error", err)
			success = false
			break
		}

		p.log.Info("stage starting", "stage", stage.name)
		outcomes := stage.run(ctx)
		result.Layers[stage.name] = outcomes

		if ok := allOK(outcomes); !ok {
			success = false
			p.log.Warn("stage finished with errors", "stage", stage.name)
			if !p.cfg.ContinueOnError() {
				p.log.Error("halting after stage failure", "stage", stage.name)
				break
			}
		} else {
			p.log.Info("stage complete", "stage", stage.name)
		}
	}

	return p.finalize(result, success)
}

func (p *Pipeline) finalize(result Result, success bool) Result {
	_ = p.transition(StateFinalized)

	end := p.now()
	result.EndTime = end
	result.DurationSeconds = end.Sub(result.StartTime).Seconds()
	result.Success = success
	if success {
		result.Status = "COMPLETED"
	} else {
		result.Status = "FAILED"
	}

	for _, v := range p.validator.History() {
		p.log.Info("validation outcome",
			"dataset", v.Dataset, "status", v.Status, "rows", v.Rows)
	}

	p.log.Info("pipeline finished",
		"execution_id", result.ExecutionID,
		"status", result.Status,
		"duration_seconds", result.DurationSeconds)
	return result
}

func allOK(outcomes map[string]outcome.Outcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

func layerNames(selected map[string]bool) []string {
	var names []string
	for _, layer := range []string{LayerBronze, LayerSilver, LayerGold} {
		if selected[layer] {
			names = append(names, layer)
		}
	}
	return names
}
