// Package executor coordinates strategy execution: it initializes the
// required backends, dispatches flows strictly in order, and owns the
// aggregated suite result.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
	"github.com/testbridge-dev/testbridge-runner/pkg/report"
)

// Coordinator executes strategies across the registered backends.
// Adapters are initialized together before the first flow and cleaned
// up on every exit path; flows themselves never run concurrently.
type Coordinator struct {
	registry   *adapter.Registry
	cfg        *config.Config
	aggregator *report.Aggregator
	runs       *runRegistry
}

// New creates a coordinator over the given adapter registry.
func New(registry *adapter.Registry, cfg *config.Config) *Coordinator {
	return &Coordinator{
		registry:   registry,
		cfg:        cfg,
		aggregator: report.NewAggregator(report.DefaultPenalties()),
		runs:       newRunRegistry(defaultRunRetention),
	}
}

// ExecuteStrategy runs every flow of the strategy and returns the
// aggregated suite result. Initialization failures are fatal for the
// whole run; per-flow failures and escaped adapter errors become
// results inside the suite.
func (c *Coordinator) ExecuteStrategy(ctx context.Context, strat flow.Strategy) (*core.TestSuiteResult, error) {
	if err := strat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy: %w", err)
	}

	runID := ulid.Make().String()
	c.runs.start(runID, strat)
	log.Info().Str("run", runID).Int("flows", len(strat.TestFlows)).
		Str("primary", string(strat.PrimaryEngine)).Msg("strategy execution started")

	needed := c.neededAdapters(strat)

	// Cleanup runs on every exit path, including init failures that
	// left some adapters live. The run must stay cleanable even when
	// its own context is already cancelled.
	defer func() {
		c.cleanupAll(context.WithoutCancel(ctx), needed)
		c.runs.finish(runID)
	}()

	if err := c.initializeAll(ctx, needed); err != nil {
		return nil, err
	}

	results := c.dispatchFlows(ctx, strat)

	suite := c.aggregator.Aggregate(runID, results)
	c.runs.complete(runID, suite)
	log.Info().Str("run", runID).Int("passed", suite.Summary.Passed).
		Int("failed", suite.Summary.Failed).Int("errored", suite.Summary.Errored).
		Msg("strategy execution finished")
	return suite, nil
}

// neededAdapters collects the registered adapters for every engine the
// strategy's flows reference. Missing engines surface later as
// synthetic results, not here.
func (c *Coordinator) neededAdapters(strat flow.Strategy) []adapter.Adapter {
	seen := map[flow.Engine]bool{}
	var adapters []adapter.Adapter
	for _, f := range strat.TestFlows {
		if seen[f.Engine] {
			continue
		}
		seen[f.Engine] = true
		if ad, ok := c.registry.Lookup(f.Engine); ok {
			adapters = append(adapters, ad)
		}
	}
	return adapters
}

// initializeAll brings every needed adapter up concurrently. Any
// failure aborts the run.
func (c *Coordinator) initializeAll(ctx context.Context, adapters []adapter.Adapter) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ad := range adapters {
		g.Go(func() error {
			if err := ad.Initialize(gctx, c.cfg); err != nil {
				return fmt.Errorf("initialize %s backend: %w", ad.Engine(), err)
			}
			log.Debug().Str("engine", string(ad.Engine())).Msg("backend initialized")
			return nil
		})
	}
	return g.Wait()
}

// dispatchFlows runs the flows strictly in declaration order with the
// settle delay between consecutive flows. A cancelled context skips the
// remaining flows instead of silently dropping them.
func (c *Coordinator) dispatchFlows(ctx context.Context, strat flow.Strategy) []*core.TestResult {
	results := make([]*core.TestResult, 0, len(strat.TestFlows))

	for i, f := range strat.TestFlows {
		if ctx.Err() != nil {
			results = append(results, syntheticResult(f, core.StatusSkipped,
				fmt.Sprintf("run cancelled: %v", ctx.Err())))
			continue
		}

		results = append(results, c.runFlow(ctx, f))

		if i < len(strat.TestFlows)-1 {
			c.settle(ctx)
		}
	}
	return results
}

// runFlow executes one flow, turning missing adapters and escaped
// adapter errors into error-status results.
func (c *Coordinator) runFlow(ctx context.Context, f flow.Flow) *core.TestResult {
	ad, ok := c.registry.Lookup(f.Engine)
	if !ok {
		log.Error().Str("flow", f.Name).Str("engine", string(f.Engine)).
			Msg("no adapter registered for engine")
		return syntheticResult(f, core.StatusError,
			fmt.Sprintf("no adapter registered for engine %q", f.Engine))
	}

	log.Info().Str("flow", f.Name).Str("engine", string(f.Engine)).Msg("executing flow")
	result, err := ad.ExecuteTestFlow(ctx, f, c.cfg)
	if err != nil {
		log.Error().Str("flow", f.Name).Err(err).Msg("adapter error escaped")
		return syntheticResult(f, core.StatusError, err.Error())
	}
	return result
}

// settle waits the configured inter-flow delay, giving the UI under
// test time to quiesce.
func (c *Coordinator) settle(ctx context.Context) {
	delay := c.cfg.FlowSettleDelay()
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// cleanupAll cleans every adapter the run touched. Failures are logged
// and swallowed: cleanup must never mask the run's outcome.
func (c *Coordinator) cleanupAll(ctx context.Context, adapters []adapter.Adapter) {
	for _, ad := range adapters {
		if err := ad.Cleanup(ctx); err != nil {
			log.Warn().Str("engine", string(ad.Engine())).Err(err).Msg("backend cleanup failed")
		}
	}
}

// HealthReport queries every registered backend.
func (c *Coordinator) HealthReport(ctx context.Context) map[flow.Engine]adapter.Health {
	out := make(map[flow.Engine]adapter.Health)
	for _, ad := range c.registry.All() {
		out[ad.Engine()] = ad.GetHealthStatus(ctx)
	}
	return out
}

// Run returns a completed or in-flight run by ID.
func (c *Coordinator) Run(id string) (*RunRecord, bool) {
	return c.runs.get(id)
}

// syntheticResult fabricates a result for a flow the adapter never
// completed. Its timestamps are a point in time, so duration is zero.
func syntheticResult(f flow.Flow, status core.TestStatus, msg string) *core.TestResult {
	now := time.Now()
	r := core.NewTestResult(f.Name, f.Engine, status, now, now)
	r.Error = msg
	return r
}
