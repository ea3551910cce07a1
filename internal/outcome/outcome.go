// Package outcome defines the discriminated result type recorded per
// source/metric within a pipeline stage.
//
// The three variants make the two-tier error policy explicit: a hard
// failure is Failed, a legitimate no-op (disabled source, nothing to do)
// is Skipped, and Success carries the storage location written.
package outcome

import (
	"fmt"
)

// Status discriminates the outcome variants.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Outcome is the result of one operation within a stage.
type Outcome struct {
	Status   Status
	Location string // storage location, for Success
	Reason   string // skip reason, for Skipped
	Err      error  // cause, for Failed
}

// Success returns a successful outcome carrying the written location.
func Success(location string) Outcome {
	return Outcome{Status: StatusSuccess, Location: location}
}

// Skipped returns a skipped outcome with a reason.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// Failed returns a failed outcome wrapping the cause.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// OK reports whether the outcome does not count against stage success.
// Skipped operations were never attempted and do not fail a stage.
func (o Outcome) OK() bool {
	return o.Status != StatusFailed
}

// String renders the outcome for result maps and logs. Failures use the
// "ERROR: ..." marker form.
func (o Outcome) String() string {
	switch o.Status {
	case StatusSuccess:
		return o.Location
	case StatusSkipped:
		return "SKIPPED: " + o.Reason
	case StatusFailed:
		return "ERROR: " + o.Err.Error()
	default:
		return "unknown"
	}
}
