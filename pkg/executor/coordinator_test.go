package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/adapter/mock"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

func coordinatorConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.FlowSettleMillis = 0
	return cfg
}

func sessionFlow(name string) flow.Flow {
	return flow.Flow{
		Name:   name,
		Engine: flow.EngineSession,
		Steps:  []string{`launch the app`, `tap "Go"`, `verify "Done"`},
	}
}

func browserFlow(name string) flow.Flow {
	return flow.Flow{
		Name:   name,
		Engine: flow.EngineBrowser,
		Steps:  []string{`launch https://example.com`, `verify "Welcome"`},
	}
}

func newCoordinator(t *testing.T, adapters ...adapter.Adapter) (*Coordinator, *config.Config) {
	t.Helper()
	reg := adapter.NewRegistry()
	for _, ad := range adapters {
		reg.Register(ad)
	}
	cfg := coordinatorConfig(t)
	return New(reg, cfg), cfg
}

func TestExecuteStrategy_OneResultPerFlow(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	browser := mock.New(mock.Config{Engine: flow.EngineBrowser})
	c, _ := newCoordinator(t, session, browser)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows: []flow.Flow{
			sessionFlow("Login"),
			browserFlow("Web checkout"),
			sessionFlow("Logout"),
		},
	}

	suite, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)

	// Exactly one result per flow, order preserved.
	require.Len(t, suite.Results, 3)
	assert.Equal(t, "Login", suite.Results[0].TestName)
	assert.Equal(t, "Web checkout", suite.Results[1].TestName)
	assert.Equal(t, "Logout", suite.Results[2].TestName)
	assert.True(t, suite.Success())
	assert.NotEmpty(t, suite.RunID)

	// Session flows ran on the session adapter in order.
	assert.Equal(t, []string{"Login", "Logout"}, session.ExecutedFlows())
	assert.Equal(t, []string{"Web checkout"}, browser.ExecutedFlows())
}

func TestExecuteStrategy_InitFailureIsFatal(t *testing.T) {
	bad := mock.New(mock.Config{
		Engine:  flow.EngineSession,
		InitErr: core.ErrInitialization.WithMessage("device offline"),
	})
	good := mock.New(mock.Config{Engine: flow.EngineBrowser})
	c, _ := newCoordinator(t, bad, good)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("Login"), browserFlow("Web")},
	}

	_, err := c.ExecuteStrategy(context.Background(), strat)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInitialization)

	// No flow executed anywhere.
	assert.Empty(t, bad.ExecutedFlows())
	assert.Empty(t, good.ExecutedFlows())

	// Cleanup still ran for every adapter the run touched.
	assert.Equal(t, 1, bad.CleanupCalls())
	assert.Equal(t, 1, good.CleanupCalls())
}

func TestExecuteStrategy_CleanupRunsExactlyOncePerAdapter(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	c, _ := newCoordinator(t, session)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("A"), sessionFlow("B")},
	}

	_, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)
	assert.Equal(t, 1, session.CleanupCalls())
}

func TestExecuteStrategy_NoStateLeaksBetweenRuns(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	c, _ := newCoordinator(t, session)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("Only")},
	}

	first, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)
	second, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, second.Results, 1)

	// The adapter was re-initialized and re-cleaned per run.
	assert.Equal(t, 2, session.InitCalls())
	assert.Equal(t, 2, session.CleanupCalls())
}

func TestExecuteStrategy_EscapedErrorBecomesErrorResult(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	broken := mock.New(mock.Config{
		Engine:    flow.EngineBrowser,
		EscapeErr: errors.New("browser crashed mid-flow"),
	})
	c, _ := newCoordinator(t, session, broken)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows: []flow.Flow{
			sessionFlow("Login"),
			browserFlow("Web"),
			sessionFlow("Logout"),
		},
	}

	suite, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)

	require.Len(t, suite.Results, 3)
	assert.Equal(t, core.StatusError, suite.Results[1].Status)
	assert.Contains(t, suite.Results[1].Error, "browser crashed")

	// The escaped error did not stop the run.
	assert.Equal(t, []string{"Login", "Logout"}, session.ExecutedFlows())
	assert.Equal(t, 1, suite.Summary.Errored)
	assert.Equal(t, 2, suite.Summary.Passed)
}

func TestExecuteStrategy_MissingAdapterBecomesErrorResult(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	c, _ := newCoordinator(t, session)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("Login"), browserFlow("Web")},
	}

	suite, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)

	require.Len(t, suite.Results, 2)
	assert.Equal(t, core.StatusError, suite.Results[1].Status)
	assert.Contains(t, suite.Results[1].Error, "no adapter registered")
}

func TestExecuteStrategy_FailedFlowDoesNotStopTheRun(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession, FailOnStep: 2})
	c, _ := newCoordinator(t, session)

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("A"), sessionFlow("B")},
	}

	suite, err := c.ExecuteStrategy(context.Background(), strat)
	require.NoError(t, err)

	require.Len(t, suite.Results, 2)
	assert.Equal(t, core.StatusFailed, suite.Results[0].Status)
	assert.Contains(t, suite.Results[0].Error, "step 2")
	// Both flows were dispatched despite the first failing.
	assert.Equal(t, []string{"A", "B"}, session.ExecutedFlows())
}

func TestExecuteStrategy_RejectsInvalidStrategy(t *testing.T) {
	c, _ := newCoordinator(t, mock.New(mock.Config{Engine: flow.EngineSession}))

	strat := flow.Strategy{
		TestFlows: []flow.Flow{{Name: "Bad", Engine: "teleport", Steps: []string{"x"}}},
	}
	_, err := c.ExecuteStrategy(context.Background(), strat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
}

func TestExecuteStrategy_CancelledContextSkipsRemainingFlows(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession, StepDelay: 20 * time.Millisecond})
	reg := adapter.NewRegistry()
	reg.Register(session)
	cfg := coordinatorConfig(t)
	cfg.FlowSettleMillis = 10
	c := New(reg, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	strat := flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		TestFlows:     []flow.Flow{sessionFlow("First"), sessionFlow("Second"), sessionFlow("Third")},
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	suite, err := c.ExecuteStrategy(ctx, strat)
	require.NoError(t, err)
	require.Len(t, suite.Results, 3)

	// The tail of the run is skipped results, and cleanup still ran.
	assert.Equal(t, core.StatusSkipped, suite.Results[2].Status)
	assert.Equal(t, 1, session.CleanupCalls())
}

func TestExecuteStrategy_RunRegistryTracksRuns(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	c, _ := newCoordinator(t, session)

	suite, err := c.ExecuteStrategy(context.Background(), flow.Strategy{
		PrimaryEngine: flow.EngineSession,
		Rationale:     "smoke",
		TestFlows:     []flow.Flow{sessionFlow("Login")},
	})
	require.NoError(t, err)

	rec, ok := c.Run(suite.RunID)
	require.True(t, ok)
	assert.True(t, rec.Done())
	assert.Equal(t, "smoke", rec.Rationale)
	require.NotNil(t, rec.Suite)
	assert.Equal(t, suite.RunID, rec.Suite.RunID)
}

func TestRunRegistry_EvictsOldFinishedRuns(t *testing.T) {
	reg := newRunRegistry(time.Hour)
	current := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return current }

	reg.start("old", flow.Strategy{})
	reg.finish("old")

	// Two hours later a new run arrives; the old one is evicted.
	current = current.Add(2 * time.Hour)
	reg.start("new", flow.Strategy{})

	_, ok := reg.get("old")
	assert.False(t, ok)
	_, ok = reg.get("new")
	assert.True(t, ok)
}

func TestHealthReport_CoversAllRegisteredBackends(t *testing.T) {
	session := mock.New(mock.Config{Engine: flow.EngineSession})
	browser := mock.New(mock.Config{Engine: flow.EngineBrowser})
	c, cfg := newCoordinator(t, session, browser)

	require.NoError(t, session.Initialize(context.Background(), cfg))

	health := c.HealthReport(context.Background())
	require.Len(t, health, 2)
	assert.Equal(t, adapter.HealthHealthy, health[flow.EngineSession].Status)
	assert.Equal(t, adapter.HealthUnhealthy, health[flow.EngineBrowser].Status)
}
