package pipeline

import (
	"fmt"

	"github.com/bhmob/bhlake/internal/errors"
)

// State is the orchestrator's position in a run.
type State int

const (
	StateNotStarted State = iota
	StateBronze
	StateSilver
	StateGold
	StateFinalized
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateBronze:
		return "bronze"
	case StateSilver:
		return "silver"
	case StateGold:
		return "gold"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

type stateTransition struct {
	from State
	to   State
}

// validTransitions defines the allowed stage sequencing. Stages may be
// skipped (e.g. a silver-only run goes NotStarted -> Silver) but never
// reordered, and every run ends Finalized.
var validTransitions = map[stateTransition]bool{
	{StateNotStarted, StateBronze}:    true,
	{StateNotStarted, StateSilver}:    true,
	{StateNotStarted, StateGold}:      true,
	{StateNotStarted, StateFinalized}: true,

	{StateBronze, StateSilver}:    true,
	{StateBronze, StateGold}:      true,
	{StateBronze, StateFinalized}: true,

	{StateSilver, StateGold}:      true,
	{StateSilver, StateFinalized}: true,

	{StateGold, StateFinalized}: true,
}

// transition moves the pipeline to the next state, rejecting invalid
// sequencing.
func (p *Pipeline) transition(to State) error {
	if !validTransitions[stateTransition{p.state, to}] {
		return fmt.Errorf("%s -> %s: %w", p.state, to, errors.ErrInvalidTransition)
	}
	p.state = to
	return nil
}
