// Package graph implements the workflow graph engine: steps that declare
// their legal edges, a per-run State accumulating slot payloads and errors,
// and a Runner that drives a run from an entry step to a terminal Outcome.
package graph

import (
	"errors"
	"fmt"
)

// Construction errors returned by New.
var (
	ErrNilStep       = errors.New("step is nil")
	ErrEmptyName     = errors.New("step name must not be empty")
	ErrReservedName  = errors.New("step name uses the reserved end: prefix")
	ErrDuplicateStep = errors.New("step already registered")
	ErrNoEdges       = errors.New("step declares no edges")
	ErrUnknownEdge   = errors.New("edge targets an unregistered step")
	ErrNoSteps       = errors.New("graph has no steps")
)

// Run errors recorded in State.Errors by the Runner or returned by Scope.
var (
	ErrUnknownStep    = errors.New("unknown step")
	ErrIllegalEdge    = errors.New("step returned an edge outside its edge set")
	ErrEmptyNext      = errors.New("step returned an empty next value")
	ErrStepPanic      = errors.New("step panicked")
	ErrBudgetExceeded = errors.New("step budget exceeded")
	ErrRunTimeout     = errors.New("run timeout exceeded")
	ErrRunCancelled   = errors.New("run cancelled")
	ErrUndeclaredSlot = errors.New("slot not declared by step")
	ErrSlotRewritten  = errors.New("slot already written in this invocation")
	ErrSlotOwned      = errors.New("slot written by another step")
	ErrStateSealed    = errors.New("state is sealed")
)

// StepError associates a construction or routing error with a step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
