package submission

// State is the phase of the current (or last) submission attempt.
type State int

const (
	// StateIdle - no attempt made yet
	StateIdle State = iota
	// StateValidatingLocally - entries are being checked before any network call
	StateValidatingLocally
	// StateAcquiringCredential - waiting on the credential capability
	StateAcquiringCredential
	// StateDispatching - waiting on the dispatch capability
	StateDispatching
	// StateSucceeded - dispatch returned an outcome
	StateSucceeded
	// StateFailed - credential or dispatch failed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidatingLocally:
		return "validating_locally"
	case StateAcquiringCredential:
		return "acquiring_credential"
	case StateDispatching:
		return "dispatching"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight reports whether an attempt is running in this state.
func (s State) InFlight() bool {
	switch s {
	case StateValidatingLocally, StateAcquiringCredential, StateDispatching:
		return true
	default:
		return false
	}
}

// Resting reports whether the state accepts a new attempt.
func (s State) Resting() bool {
	switch s {
	case StateIdle, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransition checks whether moving from s to next is allowed. A resting
// state may start a fresh attempt; local validation may fall back to any
// resting state when it rejects the entries.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateIdle, StateSucceeded, StateFailed:
		return next == StateValidatingLocally || next == StateAcquiringCredential
	case StateValidatingLocally:
		return next == StateAcquiringCredential || next.Resting()
	case StateAcquiringCredential:
		return next == StateDispatching || next == StateFailed
	case StateDispatching:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}
