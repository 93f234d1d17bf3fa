package adapter

import (
	"sync"

	"github.com/testbridge-dev/testbridge-runner/pkg/core"
)

// State is an adapter lifecycle state.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateInitialized
	StateExecuting
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// Lifecycle implements the shared adapter state machine:
// Uninitialized -> Initialized -> (Executing -> Initialized)* ->
// Uninitialized (via Reset). Embed it in adapter implementations.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Initialized reports whether the adapter is past initialization.
func (l *Lifecycle) Initialized() bool {
	return l.State() != StateUninitialized
}

// MarkInitialized transitions to Initialized. Returns false if the
// adapter was already initialized, making Initialize idempotent.
func (l *Lifecycle) MarkInitialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateUninitialized {
		return false
	}
	l.state = StateInitialized
	return true
}

// BeginExecution transitions Initialized -> Executing.
func (l *Lifecycle) BeginExecution() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateUninitialized:
		return core.ErrNotInitialized
	case StateExecuting:
		return core.ErrNotInitialized.WithMessage("adapter is already executing a flow")
	}
	l.state = StateExecuting
	return nil
}

// EndExecution transitions Executing -> Initialized.
func (l *Lifecycle) EndExecution() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateExecuting {
		l.state = StateInitialized
	}
}

// Reset returns the adapter to Uninitialized so it can be reused.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateUninitialized
}
