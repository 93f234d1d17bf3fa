package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

func harnessConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	return cfg
}

func TestRunActions_AllPass(t *testing.T) {
	cfg := harnessConfig(t)
	f := flow.Flow{
		Name:   "Login",
		Engine: flow.EngineSession,
		Steps:  []string{`launch the app`, `tap "Login"`, `verify "Welcome"`},
	}

	var executed []flow.ActionKind
	result := RunActions(context.Background(), f, flow.EngineSession, cfg, RunHooks{
		Execute: func(_ context.Context, _ int, a flow.Action) error {
			executed = append(executed, a.Kind)
			return nil
		},
		CaptureScreen: func(context.Context) ([]byte, error) {
			return []byte("png"), nil
		},
	})

	assert.Equal(t, core.StatusPassed, result.Status)
	assert.Equal(t, []flow.ActionKind{flow.ActionLaunch, flow.ActionTap, flow.ActionVerify}, executed)
	// Step screenshots for tap and verify, none for launch.
	assert.Len(t, result.Screenshots, 2)
	require.NotNil(t, result.Performance)
	assert.Equal(t, 3, result.Performance.TotalActions)
	assert.Equal(t, 3, result.Performance.ExecutedActions)
}

func TestRunActions_StopsAtFirstFailure(t *testing.T) {
	cfg := harnessConfig(t)
	f := flow.Flow{
		Name:   "Broken",
		Engine: flow.EngineBrowser,
		Steps:  []string{`launch https://example.com`, `tap "Login"`, `verify "Welcome"`},
	}

	var attempted int
	result := RunActions(context.Background(), f, flow.EngineBrowser, cfg, RunHooks{
		Execute: func(_ context.Context, idx int, a flow.Action) error {
			attempted++
			if a.Kind == flow.ActionTap {
				return core.ErrElementNotFound
			}
			return nil
		},
		CaptureScreen: func(context.Context) ([]byte, error) {
			return []byte("png"), nil
		},
	})

	assert.Equal(t, core.StatusFailed, result.Status)
	// The verify action after the failed tap is never attempted.
	assert.Equal(t, 2, attempted)
	assert.Contains(t, result.Error, "step 2")

	// Exactly one failure-tagged screenshot.
	require.Len(t, result.Screenshots, 1)
	assert.Contains(t, result.Screenshots[0], fmt.Sprintf("_%s_", core.TagFailure))

	// Metrics still collected after a failure.
	require.NotNil(t, result.Performance)
	assert.Equal(t, 3, result.Performance.TotalActions)
	assert.Equal(t, 1, result.Performance.ExecutedActions)
}

func TestRunActions_ScreenshotFailureIsNonFatal(t *testing.T) {
	cfg := harnessConfig(t)
	f := flow.Flow{Name: "NoShots", Steps: []string{`tap "OK"`}}

	result := RunActions(context.Background(), f, flow.EngineSession, cfg, RunHooks{
		Execute: func(context.Context, int, flow.Action) error { return nil },
		CaptureScreen: func(context.Context) ([]byte, error) {
			return nil, errors.New("screen gone")
		},
	})

	assert.Equal(t, core.StatusPassed, result.Status)
	assert.Empty(t, result.Screenshots)
}

func TestRunActions_FailureScreenshotRespectsPolicy(t *testing.T) {
	cfg := harnessConfig(t)
	cfg.ScreenshotOnFailure = false
	f := flow.Flow{Name: "Policy", Steps: []string{`tap "Missing"`}}

	result := RunActions(context.Background(), f, flow.EngineSession, cfg, RunHooks{
		Execute: func(context.Context, int, flow.Action) error {
			return core.ErrElementNotFound
		},
		CaptureScreen: func(context.Context) ([]byte, error) {
			return []byte("png"), nil
		},
	})

	assert.Equal(t, core.StatusFailed, result.Status)
	assert.Empty(t, result.Screenshots)
}

func TestRunActions_ScreenshotNamesCarryTestName(t *testing.T) {
	cfg := harnessConfig(t)
	f := flow.Flow{Name: "My Flow", Steps: []string{`tap "OK"`}}

	result := RunActions(context.Background(), f, flow.EngineSession, cfg, RunHooks{
		Execute:       func(context.Context, int, flow.Action) error { return nil },
		CaptureScreen: func(context.Context) ([]byte, error) { return []byte("png"), nil },
	})

	require.Len(t, result.Screenshots, 1)
	base := result.Screenshots[0]
	assert.True(t, strings.Contains(base, "My_Flow_step_0_"), "got %s", base)
	assert.True(t, strings.HasSuffix(base, ".png"))
}
