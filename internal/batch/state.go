package batch

import "fmt"

type State string

const (
	StateUninitialized      State = "uninitialized"
	StateInitializing       State = "initializing"
	StateReady              State = "ready"
	StateRunning            State = "running"
	StateCompleted          State = "completed"
	StatePartiallyCompleted State = "partially_completed"
	StateCancelled          State = "cancelled"
	StateFailed             State = "failed"
)

// Terminal reports whether a run has finished in this state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StatePartiallyCompleted, StateCancelled:
		return true
	default:
		return false
	}
}

func (c *Controller) transition(to State) error {
	if !isValidTransition(c.state, to) {
		return fmt.Errorf("invalid controller transition: %s -> %s", c.state, to)
	}
	c.state = to
	return nil
}

// isValidTransition enforces the controller lifecycle. A loaded model may run
// any number of batches; a failed load is final.
func isValidTransition(from, to State) bool {
	switch from {
	case StateUninitialized:
		return to == StateInitializing
	case StateInitializing:
		return to == StateReady || to == StateFailed
	case StateReady, StateCompleted, StatePartiallyCompleted, StateCancelled:
		return to == StateRunning
	case StateRunning:
		return to.Terminal()
	default:
		return false
	}
}
