package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Reserved terminal edges. A step that may end a run must list them in its
// edge set like any other target.
const (
	EdgeSuccess = "end:success"
	EdgeFailure = "end:failure"

	reservedPrefix = "end:"
)

// Step is a unit of pipeline logic. Run reads State through the Scope, calls
// adapters held in the dependency bundle D, writes its declared slots, and
// returns the next step or a terminal value. A returned error is treated as
// a step fault.
//
// Edges and Slots are fixed at construction; the graph validates edges once
// when it is built.
type Step[D any] interface {
	Name() string
	Edges() []string
	Slots() []string
	Run(ctx context.Context, scope *Scope, deps D) (Next, error)
}

// StepFunc is the signature shared by function steps.
type StepFunc[D any] func(ctx context.Context, scope *Scope, deps D) (Next, error)

type funcStep[D any] struct {
	name  string
	edges []string
	slots []string
	fn    StepFunc[D]
}

// NewStep builds a Step from a function and its declared edges and slots.
func NewStep[D any](name string, edges, slots []string, fn StepFunc[D]) Step[D] {
	return &funcStep[D]{
		name:  name,
		edges: slices.Clone(edges),
		slots: slices.Clone(slots),
		fn:    fn,
	}
}

func (s *funcStep[D]) Name() string    { return s.name }
func (s *funcStep[D]) Edges() []string { return slices.Clone(s.edges) }
func (s *funcStep[D]) Slots() []string { return slices.Clone(s.slots) }

func (s *funcStep[D]) Run(ctx context.Context, scope *Scope, deps D) (Next, error) {
	return s.fn(ctx, scope, deps)
}

type nextKind uint8

const (
	kindNone nextKind = iota
	kindGoto
	kindSuccess
	kindFailure
)

// Next is the value a step returns: either the name of the next step or a
// terminal success or failure.
type Next struct {
	kind    nextKind
	step    string
	payload any
	reason  Reason
	err     error
}

// Goto routes the run to the named step.
func Goto(step string) Next {
	return Next{kind: kindGoto, step: step}
}

// Succeed ends the run with payload.
func Succeed(payload any) Next {
	return Next{kind: kindSuccess, payload: payload}
}

// Fail ends the run with reason. err may be nil.
func Fail(reason Reason, err error) Next {
	return Next{kind: kindFailure, reason: reason, err: err}
}

// Terminal reports whether the value ends the run.
func (n Next) Terminal() bool {
	return n.kind == kindSuccess || n.kind == kindFailure
}

// Edge returns the edge the value follows: a step name, EdgeSuccess or
// EdgeFailure. It is empty for the zero value.
func (n Next) Edge() string {
	switch n.kind {
	case kindGoto:
		return n.step
	case kindSuccess:
		return EdgeSuccess
	case kindFailure:
		return EdgeFailure
	default:
		return ""
	}
}

// Reason returns the failure reason for a Fail value.
func (n Next) Reason() Reason {
	return n.reason
}

// Payload returns the success payload for a Succeed value.
func (n Next) Payload() any {
	return n.payload
}

// Err returns the error attached to a Fail value.
func (n Next) Err() error {
	return n.err
}

func (n Next) String() string {
	switch n.kind {
	case kindFailure:
		return fmt.Sprintf("%s(%s)", EdgeFailure, n.reason)
	case kindNone:
		return "<none>"
	default:
		return n.Edge()
	}
}

// Scope is the view of the State handed to one step invocation. Writes are
// limited to the slots the step declared.
type Scope struct {
	state    *State
	step     string
	runID    string
	visit    int
	declared map[string]struct{}
	written  map[string]struct{}
}

func newScope(state *State, step string, slots []string, runID string, visit int) *Scope {
	declared := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		declared[slot] = struct{}{}
	}
	return &Scope{
		state:    state,
		step:     step,
		runID:    runID,
		visit:    visit,
		declared: declared,
		written:  make(map[string]struct{}),
	}
}

// State returns the run State for reading.
func (sc *Scope) State() *State { return sc.state }

// Target returns the run target.
func (sc *Scope) Target() string { return sc.state.Target() }

// Step returns the name of the executing step.
func (sc *Scope) Step() string { return sc.step }

// RunID returns the identifier of the run.
func (sc *Scope) RunID() string { return sc.runID }

// Visit returns how many times the executing step has been invoked in this
// run, starting at 1.
func (sc *Scope) Visit() int { return sc.visit }

// Put writes value into slot. The slot must be declared by the step, may be
// written once per invocation, and may only overwrite a value the same step
// wrote on an earlier invocation.
func (sc *Scope) Put(slot string, value any) error {
	if _, ok := sc.declared[slot]; !ok {
		return &StepError{Step: sc.step, Err: fmt.Errorf("%w: %s", ErrUndeclaredSlot, slot)}
	}
	if _, ok := sc.written[slot]; ok {
		return &StepError{Step: sc.step, Err: fmt.Errorf("%w: %s", ErrSlotRewritten, slot)}
	}
	if err := sc.state.put(sc.step, slot, value); err != nil {
		return &StepError{Step: sc.step, Err: err}
	}
	sc.written[slot] = struct{}{}
	return nil
}

// RecordError appends a structured entry to the run error log.
func (sc *Scope) RecordError(reason string, err error) {
	if err == nil {
		return
	}
	sc.state.appendError(ErrorEntry{
		Step:    sc.step,
		Attempt: sc.state.Attempts(),
		Reason:  reason,
		Message: err.Error(),
		At:      time.Now().UTC(),
	})
}

// IncrementAttempts bumps attempt_count and returns the new value.
func (sc *Scope) IncrementAttempts() int {
	n, _ := sc.state.incrementAttempts()
	return n
}

func isReserved(name string) bool {
	return strings.HasPrefix(name, reservedPrefix)
}
