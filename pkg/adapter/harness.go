package adapter

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// RunHooks supplies the backend-specific pieces of the shared
// execute-test-flow shape. Execute runs one action; CaptureScreen, when
// non-nil, returns PNG bytes of the current screen.
type RunHooks struct {
	Execute       func(ctx context.Context, idx int, action flow.Action) error
	CaptureScreen func(ctx context.Context) ([]byte, error)
}

// screenshotKinds are the action kinds that get a step screenshot after
// succeeding.
func wantsStepScreenshot(kind flow.ActionKind) bool {
	switch kind {
	case flow.ActionTap, flow.ActionInput, flow.ActionVerify:
		return true
	default:
		return false
	}
}

// RunActions executes a flow's parsed actions in order with the shape
// shared by the in-process backends: one action per step, a step
// screenshot after successful tap/input/verify actions, and a hard stop
// on the first failure with a failure-tagged screenshot. No action is
// ever retried. Performance metrics are collected once, at the end,
// regardless of outcome.
func RunActions(ctx context.Context, f flow.Flow, engine flow.Engine, cfg *config.Config, hooks RunHooks) *core.TestResult {
	start := time.Now()
	actions := flow.ParseSteps(f.Steps)

	status := core.StatusPassed
	var errMsg string
	var screenshots []string
	executed := 0
	var actionTime time.Duration

	for i, action := range actions {
		actionStart := time.Now()
		err := hooks.Execute(ctx, i, action)
		actionTime += time.Since(actionStart)

		if err != nil {
			actionErr := core.NewActionError(i+1, action, err)
			log.Error().Str("flow", f.Name).Str("engine", string(engine)).
				Int("step", i+1).Err(err).Msg("action failed")
			status = core.StatusFailed
			errMsg = actionErr.Error()
			if cfg.ScreenshotOnFailure {
				if path := saveScreenshot(ctx, cfg, hooks, f.Name, core.TagFailure, i); path != "" {
					screenshots = append(screenshots, path)
				}
			}
			break
		}

		executed++
		if wantsStepScreenshot(action.Kind) {
			if path := saveScreenshot(ctx, cfg, hooks, f.Name, core.TagStep, i); path != "" {
				screenshots = append(screenshots, path)
			}
		}
	}

	perf := &core.PerformanceMetrics{
		TotalActions:    len(actions),
		ExecutedActions: executed,
	}
	if executed > 0 {
		perf.AvgActionTime = actionTime / time.Duration(executed)
	}

	result := core.NewTestResult(f.Name, engine, status, start, time.Now())
	result.Error = errMsg
	result.Screenshots = screenshots
	result.Performance = perf
	return result
}

// saveScreenshot captures and writes one screenshot. Capture or write
// failures are logged and swallowed: artifacts are best-effort and never
// fail a flow.
func saveScreenshot(ctx context.Context, cfg *config.Config, hooks RunHooks, testName string, tag core.ScreenshotTag, stepIdx int) string {
	if hooks.CaptureScreen == nil {
		return ""
	}

	data, err := hooks.CaptureScreen(ctx)
	if err != nil || len(data) == 0 {
		log.Warn().Str("test", testName).Str("tag", string(tag)).Err(err).
			Msg("screenshot capture failed")
		return ""
	}

	dir := cfg.ScreenshotPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Str("dir", dir).Err(err).Msg("screenshot dir not writable")
		return ""
	}

	path := filepath.Join(dir, core.ScreenshotFilename(testName, tag, stepIdx, time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("screenshot write failed")
		return ""
	}
	return path
}
