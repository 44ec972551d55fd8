package recognition

import (
	"errors"
	"fmt"
)

// State is the controller's session state.
type State int

const (
	// StateIdle - no underlying instance is running.
	StateIdle State = iota
	// StateRunning - exactly one underlying instance is running.
	StateRunning
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrAlreadyRunning = errors.New("recognition is already running")
	ErrNotRunning     = errors.New("recognition is not running")
)

// lifecycle is the IDLE/RUNNING state machine.
// It is not safe for concurrent use; the controller owns it on the session thread.
//
//	IDLE ──begin()──→ RUNNING ──end()──→ IDLE
type lifecycle struct {
	state State
}

// begin transitions IDLE → RUNNING.
func (l *lifecycle) begin() error {
	if l.state == StateRunning {
		return ErrAlreadyRunning
	}
	l.state = StateRunning
	return nil
}

// end transitions RUNNING → IDLE.
func (l *lifecycle) end() error {
	if l.state != StateRunning {
		return ErrNotRunning
	}
	l.state = StateIdle
	return nil
}
