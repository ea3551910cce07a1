// Package lineage provides per-operation provenance spans.
//
// A Span is created at the start of an extract/transform/aggregate
// operation, accumulates free-form metadata while the operation runs, and
// is snapshotted once at the end. Spans are owned by a single call stack
// and are not safe for concurrent use.
package lineage

import (
	"time"
)

// Span tracks one operation's provenance: source, operation name, timing
// and arbitrary metadata.
type Span struct {
	source    string
	operation string
	start     time.Time
	metadata  map[string]any
}

// Entry is a serializable snapshot of a Span.
type Entry struct {
	Source          string         `json:"source"`
	Operation       string         `json:"operation"`
	StartTime       string         `json:"start_time"`
	EndTime         string         `json:"end_time"`
	DurationSeconds float64        `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata"`
}

// Begin starts a new span, timestamping its start.
func Begin(source, operation string) *Span {
	return &Span{
		source:    source,
		operation: operation,
		start:     time.Now(),
		metadata:  make(map[string]any),
	}
}

// AddMetadata attaches a key/value pair to the span. Last write wins on
// key collision.
func (s *Span) AddMetadata(key string, value any) {
	s.metadata[key] = value
}

// Source returns the span's source.
func (s *Span) Source() string { return s.source }

// Operation returns the span's operation name.
func (s *Span) Operation() string { return s.operation }

// Snapshot computes the elapsed duration at call time and returns a
// serializable record of the span.
func (s *Span) Snapshot() Entry {
	now := time.Now()
	meta := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		meta[k] = v
	}
	return Entry{
		Source:          s.source,
		Operation:       s.operation,
		StartTime:       s.start.Format(time.RFC3339Nano),
		EndTime:         now.Format(time.RFC3339Nano),
		DurationSeconds: now.Sub(s.start).Seconds(),
		Metadata:        meta,
	}
}
