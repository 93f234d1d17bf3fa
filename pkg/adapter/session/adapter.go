package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// findPoll is the interval between element lookups within one
// strategy's attempt window.
const findPoll = 200 * time.Millisecond

// locator is one (strategy, value) pair of the fallback chain.
type locator struct {
	using string
	value string
}

// Adapter executes flows against one persistent device session.
type Adapter struct {
	adapter.Lifecycle

	client        *Client
	platform      string
	attemptWindow time.Duration
}

// New creates a session adapter for the given automation server.
func New(serverURL string) *Adapter {
	return &Adapter{
		client:        NewClient(serverURL),
		attemptWindow: config.DefaultSelectorAttemptMillis * time.Millisecond,
	}
}

// Engine returns the engine tag this adapter serves.
func (a *Adapter) Engine() flow.Engine {
	return flow.EngineSession
}

// Initialize checks server readiness and opens the session. Idempotent.
func (a *Adapter) Initialize(ctx context.Context, cfg *config.Config) error {
	if a.Initialized() {
		return nil
	}

	ready, raw, err := a.client.Status(ctx)
	if err != nil {
		return core.ErrInitialization.WithMessage("session server unreachable").WithCause(err)
	}
	if !ready {
		return core.ErrInitialization.WithMessage(fmt.Sprintf("session server not ready: %s", raw))
	}

	a.platform = cfg.SessionPlatform
	a.attemptWindow = cfg.SelectorAttemptWindow()

	caps := map[string]interface{}{
		"platformName": cfg.SessionPlatform,
	}
	if len(cfg.Devices) > 0 {
		caps["appium:udid"] = cfg.Devices[0]
	}
	if err := a.client.Connect(ctx, caps); err != nil {
		return core.ErrInitialization.WithMessage("failed to create session").WithCause(err)
	}

	a.MarkInitialized()
	log.Info().Str("session", a.client.SessionID()).Str("platform", a.platform).
		Msg("session adapter initialized")
	return nil
}

// ExecuteTestFlow runs the flow's actions against the device session.
func (a *Adapter) ExecuteTestFlow(ctx context.Context, f flow.Flow, cfg *config.Config) (*core.TestResult, error) {
	if err := a.BeginExecution(); err != nil {
		return nil, err
	}
	defer a.EndExecution()

	result := adapter.RunActions(ctx, f, flow.EngineSession, cfg, adapter.RunHooks{
		Execute:       a.executeAction,
		CaptureScreen: a.client.Screenshot,
	})
	return result, nil
}

// executeAction dispatches one action against the session handle.
func (a *Adapter) executeAction(ctx context.Context, _ int, action flow.Action) error {
	switch action.Kind {
	case flow.ActionLaunch:
		if strings.HasPrefix(action.Target, "http://") || strings.HasPrefix(action.Target, "https://") {
			return a.client.NavigateTo(ctx, action.Target)
		}
		return a.client.ActivateApp(ctx, action.Target)

	case flow.ActionTap:
		elementID, err := a.resolveElement(ctx, action.Target)
		if err != nil {
			return err
		}
		return a.client.Click(ctx, elementID)

	case flow.ActionInput:
		elementID, err := a.resolveElement(ctx, action.Target)
		if err != nil {
			return err
		}
		// Clear is best-effort; read-only fields reject it.
		_ = a.client.Clear(ctx, elementID)
		return a.client.SendKeys(ctx, elementID, action.Value)

	case flow.ActionVerify:
		_, err := a.resolveElement(ctx, action.Target)
		return err

	case flow.ActionWait:
		return sleepCtx(ctx, action.WaitDuration())

	case flow.ActionScroll:
		return a.swipe(ctx, scrollDirection(action.Target))

	case flow.ActionSwipe:
		return a.swipe(ctx, swipeDirection(action.Target))

	case flow.ActionCustom:
		log.Debug().Str("step", action.Target).Msg("custom step passed through")
		return nil

	default:
		return fmt.Errorf("unsupported action kind: %s", action.Kind)
	}
}

// locators builds the ordered fallback chain for a target. Real UIs
// expose the same semantic element through different attributes, so the
// chain trades determinism for resilience; order is the contract.
func (a *Adapter) locators(target string) []locator {
	chain := []locator{
		{"accessibility id", target},
		{"name", target},
	}

	if a.platform == "ios" {
		escaped := escapePredicate(target)
		chain = append(chain, locator{
			"-ios predicate string",
			fmt.Sprintf(`label CONTAINS[c] "%s" OR name CONTAINS[c] "%s"`, escaped, escaped),
		})
	} else {
		escaped := escapeUiSelector(target)
		chain = append(chain, locator{
			"-android uiautomator",
			fmt.Sprintf(`new UiSelector().textContains("%s")`, escaped),
		})
	}

	chain = append(chain, locator{
		"xpath",
		fmt.Sprintf(`//*[contains(@text,%q) or contains(@content-desc,%q) or contains(@label,%q)]`,
			target, target, target),
	})
	return chain
}

// resolveElement tries each locator strategy in order, polling within a
// bounded attempt window per strategy, and returns the first element
// that resolves and reports visible. Exhausting the chain fails the
// action with ElementNotFound.
func (a *Adapter) resolveElement(ctx context.Context, target string) (string, error) {
	for _, loc := range a.locators(target) {
		deadline := time.Now().Add(a.attemptWindow)
		for {
			elementID, err := a.client.FindElement(ctx, loc.using, loc.value)
			if err == nil && elementID != "" {
				visible, visErr := a.client.IsDisplayed(ctx, elementID)
				if visErr != nil || visible {
					return elementID, nil
				}
			}

			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if time.Now().After(deadline) {
				break
			}
			time.Sleep(findPoll)
		}
	}

	return "", core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %q", target))
}

// swipe synthesizes a pointer gesture from the viewport dimensions and
// a named direction. Vectors run between 20% and 80% of the relevant
// dimension, centered on the other axis.
func (a *Adapter) swipe(ctx context.Context, direction string) error {
	width, height := a.client.ScreenSize()
	if width == 0 || height == 0 {
		w, h, err := a.client.WindowSize(ctx)
		if err != nil {
			return fmt.Errorf("swipe: unknown viewport size: %w", err)
		}
		width, height = w, h
	}

	var startX, startY, endX, endY int
	switch direction {
	case "up":
		startX, startY, endX, endY = width/2, height*8/10, width/2, height*2/10
	case "down":
		startX, startY, endX, endY = width/2, height*2/10, width/2, height*8/10
	case "left":
		startX, startY, endX, endY = width*8/10, height/2, width*2/10, height/2
	case "right":
		startX, startY, endX, endY = width*2/10, height/2, width*8/10, height/2
	default:
		return fmt.Errorf("swipe: unknown direction %q", direction)
	}

	return a.client.PerformActions(ctx, pointerGesture(startX, startY, endX, endY))
}

// pointerGesture builds a W3C touch drag sequence.
func pointerGesture(startX, startY, endX, endY int) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type": "pointer",
			"id":   "finger1",
			"parameters": map[string]interface{}{
				"pointerType": "touch",
			},
			"actions": []map[string]interface{}{
				{"type": "pointerMove", "duration": 0, "x": startX, "y": startY},
				{"type": "pointerDown", "button": 0},
				{"type": "pause", "duration": 100},
				{"type": "pointerMove", "duration": 500, "origin": "viewport", "x": endX, "y": endY},
				{"type": "pointerUp", "button": 0},
			},
		},
	}
}

// IsAvailable reports whether the adapter holds a live session.
func (a *Adapter) IsAvailable() bool {
	return a.Initialized() && a.client.HasSession()
}

// GetHealthStatus queries the automation server's status endpoint.
// Healthy iff reachable and ready.
func (a *Adapter) GetHealthStatus(ctx context.Context) adapter.Health {
	ready, raw, err := a.client.Status(ctx)
	if err != nil {
		return adapter.Health{Status: adapter.HealthError, Details: err.Error()}
	}
	if !ready {
		return adapter.Health{Status: adapter.HealthUnhealthy, Details: raw}
	}
	return adapter.Health{Status: adapter.HealthHealthy}
}

// Cleanup ends the session and resets the adapter for reuse.
func (a *Adapter) Cleanup(ctx context.Context) error {
	defer a.Reset()
	if a.client.HasSession() {
		if err := a.client.Disconnect(ctx); err != nil {
			return core.ErrCleanup.WithCause(err)
		}
	}
	return nil
}

// scrollDirection derives a gesture direction from a scroll step.
// Scrolling down moves content up, so the finger swipes up.
func scrollDirection(target string) string {
	lower := strings.ToLower(target)
	switch {
	case strings.Contains(lower, "up"):
		return "down"
	case strings.Contains(lower, "left"):
		return "right"
	case strings.Contains(lower, "right"):
		return "left"
	default:
		return "up"
	}
}

// swipeDirection extracts a named direction from a swipe step.
func swipeDirection(target string) string {
	lower := strings.ToLower(target)
	for _, d := range []string{"up", "down", "left", "right"} {
		if strings.Contains(lower, d) {
			return d
		}
	}
	return "left"
}

// escapeUiSelector escapes quotes and backslashes for UiSelector strings.
func escapeUiSelector(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// escapePredicate escapes quotes and backslashes for iOS predicates.
func escapePredicate(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// sleepCtx sleeps for d or until the context is cancelled. A wait
// action is a literal sleep, not a polling wait-for-condition.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
