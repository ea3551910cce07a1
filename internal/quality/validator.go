package quality

import (
	"log/slog"
	"time"
)

// Validator runs schema checks and keeps an in-memory history of outcomes,
// for inclusion in run reports.
type Validator struct {
	log     *slog.Logger
	history []Outcome
}

// Outcome is one recorded validation result.
type Outcome struct {
	Dataset   string    `json:"dataset"`
	Status    string    `json:"status"` // "success" or "failure"
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewValidator creates a validator logging to the given logger.
func NewValidator(log *slog.Logger) *Validator {
	return &Validator{log: log}
}

// Run validates records against the schema, recording the outcome. It
// returns the validation error unchanged, so callers propagate hard
// failures as-is.
func Run[T Record](v *Validator, records []T, schema Schema) error {
	err := Validate(records, schema)
	if err != nil {
		v.log.Error("validation failed", "dataset", schema.Name, "error", err)
		v.history = append(v.history, Outcome{
			Dataset:   schema.Name,
			Status:    "failure",
			Rows:      len(records),
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return err
	}

	v.log.Info("validation passed", "dataset", schema.Name, "rows", len(records))
	v.history = append(v.history, Outcome{
		Dataset:   schema.Name,
		Status:    "success",
		Rows:      len(records),
		Timestamp: time.Now(),
	})
	return nil
}

// History returns all recorded validation outcomes, oldest first.
func (v *Validator) History() []Outcome {
	out := make([]Outcome, len(v.history))
	copy(out, v.history)
	return out
}
