// Package browser implements the in-process browser backend on top of
// chromedp. One browser process lives for the adapter's lifetime; each
// flow gets its own tab with console, page-error, and failed-request
// listeners feeding the result's log stream.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// startupTimeout bounds the browser launch probe during Initialize.
const startupTimeout = 30 * time.Second

// candidate is one selector strategy of the fallback chain.
type candidate struct {
	desc string
	sel  string
	opt  chromedp.QueryOption
}

// Adapter drives flows through a headless browser.
type Adapter struct {
	adapter.Lifecycle

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	attemptWindow time.Duration
	tolerance     float64
	baselineDir   string
}

// New creates an uninitialized browser adapter.
func New() *Adapter {
	return &Adapter{
		attemptWindow: config.DefaultSelectorAttemptMillis * time.Millisecond,
		tolerance:     config.DefaultVisualDiffTolerance,
	}
}

// Engine returns the engine tag this adapter serves.
func (a *Adapter) Engine() flow.Engine {
	return flow.EngineBrowser
}

// Initialize launches the browser process and verifies it answers.
// Idempotent.
func (a *Adapter) Initialize(ctx context.Context, cfg *config.Config) error {
	if a.Initialized() {
		return nil
	}

	a.attemptWindow = cfg.SelectorAttemptWindow()
	if cfg.VisualDiffTolerance > 0 {
		a.tolerance = cfg.VisualDiffTolerance
	}
	a.baselineDir = filepath.Join(cfg.OutputDir, "baselines")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1280, 800),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	probeCtx, probeCancel := context.WithTimeout(browserCtx, startupTimeout)
	defer probeCancel()
	if err := chromedp.Run(probeCtx); err != nil {
		browserCancel()
		allocCancel()
		return core.ErrInitialization.WithMessage("browser failed to start").WithCause(err)
	}

	a.allocCancel = allocCancel
	a.browserCtx = browserCtx
	a.browserCancel = browserCancel
	a.MarkInitialized()
	log.Info().Msg("browser adapter initialized")
	return nil
}

// ExecuteTestFlow runs the flow in a fresh tab of the shared browser.
func (a *Adapter) ExecuteTestFlow(ctx context.Context, f flow.Flow, cfg *config.Config) (*core.TestResult, error) {
	if err := a.BeginExecution(); err != nil {
		return nil, err
	}
	defer a.EndExecution()

	tabCtx, tabCancel := chromedp.NewContext(a.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	logs := newEventLog()
	chromedp.ListenTarget(tabCtx, logs.handle)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}

	var frameDir string
	if cfg.VideoRecording {
		frameDir = a.startScreencast(tabCtx, f.Name, cfg)
	}

	result := adapter.RunActions(ctx, f, flow.EngineBrowser, cfg, adapter.RunHooks{
		Execute: func(_ context.Context, _ int, action flow.Action) error {
			return a.executeAction(tabCtx, action, f.Name, cfg)
		},
		CaptureScreen: func(context.Context) ([]byte, error) {
			var buf []byte
			err := chromedp.Run(tabCtx, chromedp.CaptureScreenshot(&buf))
			return buf, err
		},
	})

	if frameDir != "" {
		_ = chromedp.Run(tabCtx, page.StopScreencast())
		result.Video = frameDir
	}
	for _, line := range logs.lines() {
		result.AddLog(line)
	}
	return result, nil
}

// executeAction dispatches one action against the tab.
func (a *Adapter) executeAction(tabCtx context.Context, action flow.Action, flowName string, cfg *config.Config) error {
	switch action.Kind {
	case flow.ActionLaunch:
		url, err := normalizeURL(action.Target)
		if err != nil {
			return err
		}
		return chromedp.Run(tabCtx, chromedp.Navigate(url))

	case flow.ActionTap:
		c, err := a.resolve(tabCtx, action.Target)
		if err != nil {
			return err
		}
		return chromedp.Run(tabCtx, chromedp.Click(c.sel, c.opt))

	case flow.ActionInput:
		c, err := a.resolve(tabCtx, action.Target)
		if err != nil {
			return err
		}
		return chromedp.Run(tabCtx,
			chromedp.Focus(c.sel, c.opt),
			chromedp.Clear(c.sel, c.opt),
			chromedp.SendKeys(c.sel, action.Value, c.opt),
		)

	case flow.ActionVerify:
		if isVisualCheck(action.Target) {
			return a.verifyVisual(tabCtx, flowName, action.Target, cfg)
		}
		_, err := a.resolve(tabCtx, action.Target)
		return err

	case flow.ActionWait:
		return chromedp.Run(tabCtx, chromedp.Sleep(action.WaitDuration()))

	case flow.ActionScroll:
		return chromedp.Run(tabCtx, chromedp.Evaluate(scrollScript(action.Target), nil))

	case flow.ActionSwipe:
		return chromedp.Run(tabCtx, chromedp.Evaluate(swipeScript(action.Target), nil))

	case flow.ActionCustom:
		log.Debug().Str("step", action.Target).Msg("custom step passed through")
		return nil

	default:
		return fmt.Errorf("unsupported action kind: %s", action.Kind)
	}
}

// candidates builds the selector fallback chain for a target. Order is
// the contract: attribute hooks beat text matching, and the raw target
// is only ever tried as a selector of last resort.
func candidates(target string) []candidate {
	return []candidate{
		{"data-testid", fmt.Sprintf(`[data-testid=%q]`, target), chromedp.ByQuery},
		{"exact text", fmt.Sprintf(`//*[normalize-space(text())=%q]`, target), chromedp.BySearch},
		{"aria-label", fmt.Sprintf(`[aria-label=%q]`, target), chromedp.ByQuery},
		{"title", fmt.Sprintf(`[title=%q]`, target), chromedp.ByQuery},
		{"clickable text", fmt.Sprintf(
			`//button[contains(.,%q)] | //a[contains(.,%q)] | //label[contains(.,%q)]`,
			target, target, target), chromedp.BySearch},
		{"raw selector", target, chromedp.ByQuery},
	}
}

// resolve tries each selector strategy in order, requiring visibility,
// with a bounded attempt window per strategy.
func (a *Adapter) resolve(tabCtx context.Context, target string) (candidate, error) {
	for _, c := range candidates(target) {
		attemptCtx, cancel := context.WithTimeout(tabCtx, a.attemptWindow)
		err := chromedp.Run(attemptCtx, chromedp.WaitVisible(c.sel, c.opt))
		cancel()
		if err == nil {
			return c, nil
		}
		if tabCtx.Err() != nil {
			return candidate{}, tabCtx.Err()
		}
		log.Debug().Str("target", target).Str("strategy", c.desc).Msg("selector strategy missed")
	}
	return candidate{}, core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %q", target))
}

// verifyVisual captures the page and compares it to the stored baseline.
// A missing baseline is adopted from the current capture and passes.
func (a *Adapter) verifyVisual(tabCtx context.Context, flowName, target string, cfg *config.Config) error {
	var buf []byte
	if err := chromedp.Run(tabCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("visual check capture: %w", err)
	}

	baseline := filepath.Join(a.baselineDir,
		fmt.Sprintf("%s_%s.png", core.SanitizeName(flowName), core.TagVisual))
	current, err := os.ReadFile(baseline)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(a.baselineDir, 0o755); mkErr != nil {
			return fmt.Errorf("visual baseline dir: %w", mkErr)
		}
		if wrErr := os.WriteFile(baseline, buf, 0o644); wrErr != nil {
			return fmt.Errorf("visual baseline write: %w", wrErr)
		}
		log.Info().Str("baseline", baseline).Msg("visual baseline adopted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("visual baseline read: %w", err)
	}

	mismatch, err := ComparePNG(current, buf)
	if err != nil {
		return fmt.Errorf("visual diff: %w", err)
	}
	if mismatch > a.tolerance {
		return fmt.Errorf("visual check %q failed: %.1f%% mismatch exceeds %.1f%% tolerance",
			target, mismatch, a.tolerance)
	}
	return nil
}

// startScreencast begins frame capture into a per-flow directory.
// Failures only disable recording; they never fail the flow.
func (a *Adapter) startScreencast(tabCtx context.Context, flowName string, cfg *config.Config) string {
	frameDir := filepath.Join(cfg.VideoPath(), core.SanitizeName(flowName)+"_frames")
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		log.Warn().Str("dir", frameDir).Err(err).Msg("screencast dir not writable")
		return ""
	}

	var mu sync.Mutex
	frame := 0
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		mu.Lock()
		idx := frame
		frame++
		mu.Unlock()

		data, err := base64.StdEncoding.DecodeString(e.Data)
		if err == nil {
			path := filepath.Join(frameDir, fmt.Sprintf("frame_%05d.png", idx))
			_ = os.WriteFile(path, data, 0o644)
		}
		go func() {
			_ = chromedp.Run(tabCtx, page.ScreencastFrameAck(e.SessionID))
		}()
	})

	err := chromedp.Run(tabCtx, page.StartScreencast().
		WithFormat(page.ScreencastFormatPng).
		WithEveryNthFrame(2))
	if err != nil {
		log.Warn().Err(err).Msg("screencast unavailable")
		return ""
	}
	return frameDir
}

// IsAvailable reports whether the browser process is up.
func (a *Adapter) IsAvailable() bool {
	return a.Initialized() && a.browserCtx != nil
}

// chromeNames are the executables probed when the browser is not yet
// running.
var chromeNames = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	"chrome", "headless-shell",
}

// GetHealthStatus probes the live browser with a trivial evaluation,
// or just checks for a usable executable before initialization.
func (a *Adapter) GetHealthStatus(ctx context.Context) adapter.Health {
	if !a.Initialized() || a.browserCtx == nil {
		for _, name := range chromeNames {
			if path, err := exec.LookPath(name); err == nil {
				return adapter.Health{Status: adapter.HealthHealthy, Details: path}
			}
		}
		return adapter.Health{Status: adapter.HealthError, Details: "no chrome executable found"}
	}

	probeCtx, cancel := context.WithTimeout(a.browserCtx, 5*time.Second)
	defer cancel()
	var out int
	if err := chromedp.Run(probeCtx, chromedp.Evaluate("1+1", &out)); err != nil {
		return adapter.Health{Status: adapter.HealthError, Details: err.Error()}
	}
	return adapter.Health{Status: adapter.HealthHealthy}
}

// Cleanup shuts the browser down and resets the adapter.
func (a *Adapter) Cleanup(ctx context.Context) error {
	defer a.Reset()
	if a.browserCancel != nil {
		a.browserCancel()
		a.browserCancel = nil
	}
	if a.allocCancel != nil {
		a.allocCancel()
		a.allocCancel = nil
	}
	a.browserCtx = nil
	return nil
}

// eventLog accumulates page events from a tab's listener goroutine.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func newEventLog() *eventLog {
	return &eventLog{}
}

func (l *eventLog) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, line)
}

func (l *eventLog) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// handle translates DevTools events into log lines.
func (l *eventLog) handle(ev interface{}) {
	switch e := ev.(type) {
	case *cdruntime.EventConsoleAPICalled:
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			parts = append(parts, formatRemoteObject(arg))
		}
		l.add(fmt.Sprintf("console.%s: %s", e.Type, strings.Join(parts, " ")))
	case *cdruntime.EventExceptionThrown:
		l.add("page error: " + e.ExceptionDetails.Error())
	case *network.EventLoadingFailed:
		l.add(fmt.Sprintf("request failed: %s (%s)", e.ErrorText, e.Type))
	}
}

func formatRemoteObject(o *cdruntime.RemoteObject) string {
	if o == nil {
		return ""
	}
	if len(o.Value) > 0 {
		return string(o.Value)
	}
	return o.Description
}

// normalizeURL turns a launch target into a navigable URL. Bare hosts
// get an https scheme; anything with whitespace is not a URL.
func normalizeURL(target string) (string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if !strings.ContainsAny(target, " \t") && strings.Contains(target, ".") {
		return "https://" + target, nil
	}
	return "", fmt.Errorf("launch target %q is not a URL", target)
}

// isVisualCheck reports whether a verify target asks for a screenshot
// comparison rather than an element lookup.
func isVisualCheck(target string) bool {
	lower := strings.ToLower(target)
	for _, kw := range []string{"visual", "looks like", "baseline", "layout"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// scrollScript scrolls by 60% of the viewport in the named direction.
func scrollScript(target string) string {
	lower := strings.ToLower(target)
	switch {
	case strings.Contains(lower, "up"):
		return "window.scrollBy(0, -Math.round(window.innerHeight*0.6))"
	case strings.Contains(lower, "left"):
		return "window.scrollBy(-Math.round(window.innerWidth*0.6), 0)"
	case strings.Contains(lower, "right"):
		return "window.scrollBy(Math.round(window.innerWidth*0.6), 0)"
	default:
		return "window.scrollBy(0, Math.round(window.innerHeight*0.6))"
	}
}

// swipeScript maps a touch swipe onto the equivalent scroll: swiping
// left reveals content to the right.
func swipeScript(target string) string {
	lower := strings.ToLower(target)
	switch {
	case strings.Contains(lower, "up"):
		return "window.scrollBy(0, Math.round(window.innerHeight*0.6))"
	case strings.Contains(lower, "down"):
		return "window.scrollBy(0, -Math.round(window.innerHeight*0.6))"
	case strings.Contains(lower, "right"):
		return "window.scrollBy(-Math.round(window.innerWidth*0.6), 0)"
	default:
		return "window.scrollBy(Math.round(window.innerWidth*0.6), 0)"
	}
}
