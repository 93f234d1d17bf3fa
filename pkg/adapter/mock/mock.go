// Package mock provides an in-memory adapter for testing the
// coordinator and for dry runs without any real backend.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// Config configures mock adapter behavior.
type Config struct {
	Engine flow.Engine

	// InitErr makes Initialize fail.
	InitErr error
	// EscapeErr makes ExecuteTestFlow return an error instead of a result.
	EscapeErr error
	// FailOnStep makes step N of every flow fail (1-indexed). 0 = never.
	FailOnStep int
	// StepDelay adds artificial delay per step.
	StepDelay time.Duration
}

// Adapter is a mock implementation of adapter.Adapter.
type Adapter struct {
	adapter.Lifecycle
	Config Config

	mu            sync.Mutex
	initCalls     int
	cleanupCalls  int
	executedFlows []string
}

// New creates a mock adapter for the given engine.
func New(cfg Config) *Adapter {
	if cfg.Engine == "" {
		cfg.Engine = flow.EngineSession
	}
	return &Adapter{Config: cfg}
}

// Engine returns the configured engine tag.
func (m *Adapter) Engine() flow.Engine {
	return m.Config.Engine
}

// Initialize counts the call and fails when configured to.
func (m *Adapter) Initialize(ctx context.Context, cfg *config.Config) error {
	if m.Initialized() {
		return nil
	}

	m.mu.Lock()
	m.initCalls++
	m.mu.Unlock()

	if m.Config.InitErr != nil {
		return m.Config.InitErr
	}
	m.MarkInitialized()
	return nil
}

// ExecuteTestFlow simulates running the flow through the shared action
// harness, so failures produce the same result shape real backends do.
func (m *Adapter) ExecuteTestFlow(ctx context.Context, f flow.Flow, cfg *config.Config) (*core.TestResult, error) {
	if err := m.BeginExecution(); err != nil {
		return nil, err
	}
	defer m.EndExecution()

	m.mu.Lock()
	m.executedFlows = append(m.executedFlows, f.Name)
	m.mu.Unlock()

	if m.Config.EscapeErr != nil {
		return nil, m.Config.EscapeErr
	}

	step := 0
	result := adapter.RunActions(ctx, f, m.Config.Engine, cfg, adapter.RunHooks{
		Execute: func(_ context.Context, _ int, _ flow.Action) error {
			step++
			if m.Config.StepDelay > 0 {
				time.Sleep(m.Config.StepDelay)
			}
			if m.Config.FailOnStep > 0 && step == m.Config.FailOnStep {
				return fmt.Errorf("mock failure on step %d", step)
			}
			return nil
		},
	})
	return result, nil
}

// IsAvailable reports whether the mock is initialized.
func (m *Adapter) IsAvailable() bool {
	return m.Initialized()
}

// GetHealthStatus is always healthy once initialized.
func (m *Adapter) GetHealthStatus(ctx context.Context) adapter.Health {
	if !m.Initialized() {
		return adapter.Health{Status: adapter.HealthUnhealthy, Details: "not initialized"}
	}
	return adapter.Health{Status: adapter.HealthHealthy}
}

// Cleanup counts the call and resets the lifecycle.
func (m *Adapter) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	m.cleanupCalls++
	m.mu.Unlock()
	m.Reset()
	return nil
}

// InitCalls returns how many times Initialize did real work.
func (m *Adapter) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

// CleanupCalls returns how many times Cleanup was invoked.
func (m *Adapter) CleanupCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupCalls
}

// ExecutedFlows returns the flow names executed, in order.
func (m *Adapter) ExecutedFlows() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executedFlows))
	copy(out, m.executedFlows)
	return out
}
