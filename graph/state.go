package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrorEntry is a structured record in the run error log.
type ErrorEntry struct {
	Step    string    `json:"step"`
	Attempt int       `json:"attempt"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Slot is a named payload produced by a step.
type Slot struct {
	Name   string `json:"name"`
	Writer string `json:"writer"`
	Value  any    `json:"value"`
}

type slotValue struct {
	value  any
	writer string
}

// State is the mutable record of a single run. The target is fixed at
// creation, errors are append-only, and collected slots keep insertion order
// and are never removed. Steps write through a Scope; everything else reads.
//
// State is safe for concurrent reads while the owning run writes, and is
// sealed once the Runner produces an Outcome.
type State struct {
	mu        sync.RWMutex
	target    string
	attempts  int
	errors    []ErrorEntry
	order     []string
	collected map[string]slotValue
	sealed    bool
}

// NewState creates the initial State for a run against target.
func NewState(target string) *State {
	return &State{
		target:    target,
		collected: make(map[string]slotValue),
	}
}

// Target returns the URL or query the run was created for.
func (s *State) Target() string {
	return s.target
}

// Attempts returns the attempt_count incremented by retrying steps.
func (s *State) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// Errors returns a copy of the error log in append order.
func (s *State) Errors() []ErrorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.errors)
}

// Has reports whether slot has been written.
func (s *State) Has(slot string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collected[slot]
	return ok
}

// Lookup returns the payload stored in slot.
func (s *State) Lookup(slot string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.collected[slot]
	return v.value, ok
}

// Names returns the written slot names in insertion order.
func (s *State) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Collected returns every written slot in insertion order.
func (s *State) Collected() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]Slot, 0, len(s.order))
	for _, name := range s.order {
		v := s.collected[name]
		slots = append(slots, Slot{Name: name, Writer: v.writer, Value: v.value})
	}
	return slots
}

// Sealed reports whether the run that owned the State has finished.
func (s *State) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Get returns the payload in slot as T. It reports false when the slot is
// missing or holds a different type.
func Get[T any](s *State, slot string) (T, bool) {
	var zero T
	v, ok := s.Lookup(slot)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// MarshalJSON encodes the State with collected slots as an object whose keys
// follow insertion order.
func (s *State) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var collected bytes.Buffer
	collected.WriteByte('{')
	for i, name := range s.order {
		if i > 0 {
			collected.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.collected[name].value)
		if err != nil {
			return nil, fmt.Errorf("marshal slot %s: %w", name, err)
		}
		collected.Write(key)
		collected.WriteByte(':')
		collected.Write(val)
	}
	collected.WriteByte('}')

	errs := s.errors
	if errs == nil {
		errs = []ErrorEntry{}
	}

	return json.Marshal(struct {
		Target       string          `json:"target"`
		AttemptCount int             `json:"attempt_count"`
		Errors       []ErrorEntry    `json:"errors"`
		Collected    json.RawMessage `json:"collected"`
	}{
		Target:       s.target,
		AttemptCount: s.attempts,
		Errors:       errs,
		Collected:    collected.Bytes(),
	})
}

func (s *State) put(step, slot string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return ErrStateSealed
	}

	if existing, ok := s.collected[slot]; ok {
		if existing.writer != step {
			return fmt.Errorf("%w: %s written by %s", ErrSlotOwned, slot, existing.writer)
		}
	} else {
		s.order = append(s.order, slot)
	}

	s.collected[slot] = slotValue{value: value, writer: step}
	return nil
}

func (s *State) appendError(e ErrorEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false
	}
	s.errors = append(s.errors, e)
	return true
}

func (s *State) incrementAttempts() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return s.attempts, false
	}
	s.attempts++
	return s.attempts, true
}

// seal appends final entries and closes the State to further writes.
func (s *State) seal(final ...ErrorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return
	}
	s.errors = append(s.errors, final...)
	s.sealed = true
}
