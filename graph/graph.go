package graph

import (
	"errors"
	"fmt"
	"slices"
)

// StepInfo describes a registered step.
type StepInfo struct {
	Name  string   `json:"name"`
	Edges []string `json:"edges"`
	Slots []string `json:"slots"`
}

// Graph is a validated set of steps over dependency bundle type D.
type Graph[D any] struct {
	name  string
	steps map[string]Step[D]
	edges map[string]map[string]struct{}
	order []string
}

// New registers steps and validates their edge sets. Every error found is
// reported together; an invalid graph is never returned.
func New[D any](name string, steps ...Step[D]) (*Graph[D], error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	g := &Graph[D]{
		name:  name,
		steps: make(map[string]Step[D], len(steps)),
		edges: make(map[string]map[string]struct{}, len(steps)),
	}

	var errs []error

	for i, s := range steps {
		if s == nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, ErrNilStep))
			continue
		}

		stepName := s.Name()
		switch {
		case stepName == "":
			errs = append(errs, fmt.Errorf("step %d: %w", i, ErrEmptyName))
			continue
		case isReserved(stepName):
			errs = append(errs, &StepError{Step: stepName, Err: ErrReservedName})
			continue
		}

		if _, exists := g.steps[stepName]; exists {
			errs = append(errs, &StepError{Step: stepName, Err: ErrDuplicateStep})
			continue
		}

		g.steps[stepName] = s
		g.order = append(g.order, stepName)
	}

	for _, stepName := range g.order {
		declared := g.steps[stepName].Edges()
		if len(declared) == 0 {
			errs = append(errs, &StepError{Step: stepName, Err: ErrNoEdges})
			continue
		}

		set := make(map[string]struct{}, len(declared))
		for _, edge := range declared {
			if edge != EdgeSuccess && edge != EdgeFailure {
				if _, ok := g.steps[edge]; !ok {
					errs = append(errs, &StepError{
						Step: stepName,
						Err:  fmt.Errorf("%w: %s", ErrUnknownEdge, edge),
					})
					continue
				}
			}
			set[edge] = struct{}{}
		}
		g.edges[stepName] = set
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g, nil
}

// Name returns the graph name.
func (g *Graph[D]) Name() string {
	return g.name
}

// Step returns the registered step with the given name.
func (g *Graph[D]) Step(name string) (Step[D], bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Allows reports whether step may follow edge.
func (g *Graph[D]) Allows(step, edge string) bool {
	set, ok := g.edges[step]
	if !ok {
		return false
	}
	_, ok = set[edge]
	return ok
}

// Describe lists registered steps in registration order.
func (g *Graph[D]) Describe() []StepInfo {
	infos := make([]StepInfo, 0, len(g.order))
	for _, name := range g.order {
		s := g.steps[name]
		edges := s.Edges()
		slots := s.Slots()
		slices.Sort(edges)
		if slots == nil {
			slots = []string{}
		}
		infos = append(infos, StepInfo{Name: name, Edges: edges, Slots: slots})
	}
	return infos
}
