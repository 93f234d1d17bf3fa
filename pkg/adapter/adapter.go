// Package adapter defines the contract every automation backend
// implements and the registry that selects one by engine tag.
package adapter

import (
	"context"

	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthError     = "error"
)

// Health describes a backend's readiness.
type Health struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Adapter is the common lifecycle contract implemented by the session,
// declarative and browser backends. A flow maps to exactly one adapter,
// chosen by its engine tag.
//
// Lifecycle: Initialize is idempotent; ExecuteTestFlow may be called
// repeatedly once initialized; Cleanup releases all backend resources
// and resets the adapter so it can be initialized again.
//
// ExecuteTestFlow reports per-step failures inside the returned
// TestResult (status failed); a returned error means the failure
// escaped the adapter's own handling and the caller should fabricate an
// error-status result.
type Adapter interface {
	// Engine returns the tag this adapter serves.
	Engine() flow.Engine

	// Initialize acquires the backend's resources. Calling it on an
	// initialized adapter is a no-op.
	Initialize(ctx context.Context, cfg *config.Config) error

	// ExecuteTestFlow parses the flow's steps and runs the resulting
	// actions in order, stopping at the first failure.
	ExecuteTestFlow(ctx context.Context, f flow.Flow, cfg *config.Config) (*core.TestResult, error)

	// IsAvailable reports whether the backend can currently execute flows.
	IsAvailable() bool

	// GetHealthStatus queries the backend's readiness.
	GetHealthStatus(ctx context.Context) Health

	// Cleanup releases backend resources and resets the lifecycle.
	Cleanup(ctx context.Context) error
}
