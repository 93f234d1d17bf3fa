// Package flow defines the test flow model and the step-to-action parser.
package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Engine identifies which automation backend executes a flow.
type Engine string

// Engine values.
const (
	EngineSession     Engine = "session"     // Stateful device-session backend
	EngineDeclarative Engine = "declarative" // External declarative flow runner
	EngineBrowser     Engine = "browser"     // In-process browser backend
)

// Valid returns true if the engine is one of the known backends.
func (e Engine) Valid() bool {
	switch e {
	case EngineSession, EngineDeclarative, EngineBrowser:
		return true
	default:
		return false
	}
}

// Priority indicates how important a flow is within a strategy.
type Priority string

// Priority values.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Flow is an ordered set of human-authored step descriptions plus the
// engine tag and metadata. Flows are authored externally and treated as
// immutable once loaded.
type Flow struct {
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description,omitempty"`
	Priority          Priority `yaml:"priority" json:"priority,omitempty"`
	EstimatedDuration int      `yaml:"estimatedDuration" json:"estimatedDuration,omitempty"` // Seconds
	Engine            Engine   `yaml:"engine" json:"engine"`
	Steps             []string `yaml:"steps" json:"steps"`
}

// Strategy is the structured test plan produced by the strategy
// collaborator. It is consumed as-is; this layer never rewrites it.
type Strategy struct {
	PrimaryEngine  Engine `yaml:"primaryEngine" json:"primaryEngine"`
	FallbackEngine Engine `yaml:"fallbackEngine" json:"fallbackEngine,omitempty"`
	TestFlows      []Flow `yaml:"testFlows" json:"testFlows"`
	Rationale      string `yaml:"rationale" json:"rationale,omitempty"`
}

// Validate checks that every flow names a known engine and has at least
// one step.
func (s *Strategy) Validate() error {
	for i, f := range s.TestFlows {
		if !f.Engine.Valid() {
			return fmt.Errorf("flow %d (%s): unknown engine %q", i, f.Name, f.Engine)
		}
		if len(f.Steps) == 0 {
			return fmt.Errorf("flow %d (%s): no steps", i, f.Name)
		}
	}
	return nil
}

// LoadStrategy reads a strategy definition from a YAML file.
func LoadStrategy(path string) (*Strategy, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided strategy file
	if err != nil {
		return nil, err
	}

	var s Strategy
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse strategy file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}
