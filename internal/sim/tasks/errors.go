package tasks

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPhase  = errors.New("unknown task phase")
	ErrSubTaskActive = errors.New("sub-task already active")
	ErrTaskDone      = errors.New("task already done")
	ErrDuplicateKind = errors.New("duplicate task kind")
	ErrInvalidSpec   = errors.New("invalid task spec")
)

// PhaseError reports a dispatch on a phase that has no handler.
// It is a configuration error.
type PhaseError struct {
	Task  string
	Kind  string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("task %s (%s): no handler for phase %q", e.Task, e.Kind, e.Phase)
}

func (e *PhaseError) Unwrap() error { return ErrUnknownPhase }
