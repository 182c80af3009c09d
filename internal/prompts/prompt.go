// Package prompts holds the model instructions and response specifications
// for the AI-assisted stages of the pipeline. Instructions are tunable
// through configuration; specifications define the response format the
// stage parses and cannot be overridden.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Set resolves prompts for every stage, applying instruction overrides.
type Set struct {
	overrides map[Stage]string
}

// NewSet creates a Set. Override keys must be known stages; empty values
// fall back to the default instructions.
func NewSet(overrides map[string]string) (*Set, error) {
	s := &Set{overrides: make(map[Stage]string, len(overrides))}
	for name, text := range overrides {
		stage, err := ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		if text = strings.TrimSpace(text); text != "" {
			s.overrides[stage] = text
		}
	}
	return s, nil
}

// Instructions returns the override for stage or its default.
func (s *Set) Instructions(stage Stage) (string, error) {
	if s != nil {
		if text, ok := s.overrides[stage]; ok {
			return text, nil
		}
	}
	return Instructions(stage)
}

// Compose builds the system prompt for stage: instructions, then the
// response specification, then extra serialized as JSON when non-nil.
func (s *Set) Compose(stage Stage, extra any) (string, error) {
	instructions, err := s.Instructions(stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := Spec(stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	if extra != nil {
		data, err := json.MarshalIndent(extra, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize %s context: %w", stage, err)
		}
		sb.WriteString("\n\nContext:\n\n")
		sb.Write(data)
	}

	return sb.String(), nil
}
