package declarative

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/testbridge-dev/testbridge-runner/pkg/adapter"
	"github.com/testbridge-dev/testbridge-runner/pkg/config"
	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// outputCap bounds captured runner output per flow. Runners can be
// extremely chatty; everything past the cap is dropped.
const outputCap = 256 * 1024

// logTail is how many trailing output lines are kept on the result.
const logTail = 50

var screenshotPathRe = regexp.MustCompile(`\S+\.png`)

// Adapter runs flows through an external declarative runner binary,
// one fresh process per flow.
type Adapter struct {
	adapter.Lifecycle

	binary  string
	workDir string

	mu        sync.Mutex
	flowFiles []string
}

// New creates a declarative adapter for the given runner binary.
func New(binary string) *Adapter {
	return &Adapter{binary: binary}
}

// Engine returns the engine tag this adapter serves.
func (a *Adapter) Engine() flow.Engine {
	return flow.EngineDeclarative
}

// Initialize verifies the runner binary is present and prepares a
// working directory for compiled flow files. Idempotent.
func (a *Adapter) Initialize(ctx context.Context, cfg *config.Config) error {
	if a.Initialized() {
		return nil
	}

	if a.binary == "" {
		a.binary = cfg.RunnerBinary
	}
	resolved, err := exec.LookPath(a.binary)
	if err != nil {
		return core.ErrInitialization.
			WithMessage(fmt.Sprintf("runner binary %q not found", a.binary)).
			WithCause(err)
	}

	workDir, err := os.MkdirTemp("", "testbridge-flows-")
	if err != nil {
		return core.ErrInitialization.WithMessage("cannot create flow directory").WithCause(err)
	}
	a.workDir = workDir

	a.MarkInitialized()
	log.Info().Str("runner", resolved).Str("workdir", workDir).
		Msg("declarative adapter initialized")
	return nil
}

// ExecuteTestFlow compiles the flow, writes it to a temp file, and runs
// the runner binary on it. Exit code zero is a pass, anything else a
// failure. The process is scoped to ctx and killed on cancellation.
func (a *Adapter) ExecuteTestFlow(ctx context.Context, f flow.Flow, cfg *config.Config) (*core.TestResult, error) {
	if err := a.BeginExecution(); err != nil {
		return nil, err
	}
	defer a.EndExecution()

	start := time.Now()

	doc, err := CompileFlow(f)
	if err != nil {
		return nil, fmt.Errorf("compile flow %q: %w", f.Name, err)
	}

	path := filepath.Join(a.workDir, core.FlowFilename(f.Name, ".yaml", start))
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return nil, fmt.Errorf("write flow file: %w", err)
	}
	a.mu.Lock()
	a.flowFiles = append(a.flowFiles, path)
	a.mu.Unlock()

	args := []string{"test"}
	if cfg.RunnerOutputDir != "" {
		if err := os.MkdirAll(cfg.RunnerOutputDir, 0o755); err == nil {
			args = append(args, "--debug-output", cfg.RunnerOutputDir)
		}
	}
	args = append(args, path)

	var out boundedBuffer
	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.Debug().Str("flow", f.Name).Str("file", path).Msg("starting runner process")
	runErr := cmd.Run()

	status := core.StatusPassed
	var errMsg string
	if runErr != nil {
		status = core.StatusFailed
		errMsg = fmt.Sprintf("runner exited: %v", runErr)
		if ctx.Err() != nil {
			errMsg = fmt.Sprintf("runner interrupted: %v", ctx.Err())
		}
		log.Error().Str("flow", f.Name).Err(runErr).Msg("runner process failed")
	}

	result := core.NewTestResult(f.Name, flow.EngineDeclarative, status, start, time.Now())
	result.Error = errMsg
	result.Screenshots = recoverScreenshots(out.String(), cfg.RunnerOutputDir, start)
	for _, line := range tailLines(out.String(), logTail) {
		result.AddLog(line)
	}

	// The runner reports no per-step outcomes on failure, so executed
	// counts are only exact for passing flows.
	actions := flow.ParseSteps(f.Steps)
	perf := &core.PerformanceMetrics{TotalActions: len(actions)}
	if status == core.StatusPassed && len(actions) > 0 {
		perf.ExecutedActions = len(actions)
		perf.AvgActionTime = time.Since(start) / time.Duration(len(actions))
	}
	result.Performance = perf

	return result, nil
}

// IsAvailable reports whether the adapter is initialized.
func (a *Adapter) IsAvailable() bool {
	return a.Initialized()
}

// GetHealthStatus checks that the runner binary resolves on this host.
func (a *Adapter) GetHealthStatus(ctx context.Context) adapter.Health {
	binary := a.binary
	if binary == "" {
		binary = config.DefaultRunnerBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return adapter.Health{Status: adapter.HealthError, Details: err.Error()}
	}
	return adapter.Health{Status: adapter.HealthHealthy, Details: resolved}
}

// Cleanup removes the compiled flow files and resets the adapter.
func (a *Adapter) Cleanup(ctx context.Context) error {
	defer a.Reset()

	a.mu.Lock()
	a.flowFiles = nil
	a.mu.Unlock()

	if a.workDir != "" {
		if err := os.RemoveAll(a.workDir); err != nil {
			return core.ErrCleanup.WithCause(err)
		}
		a.workDir = ""
	}
	return nil
}

// recoverScreenshots finds screenshots the runner produced: paths it
// printed that exist on disk, plus images written into the runner
// output directory since the flow started.
func recoverScreenshots(output, outputDir string, since time.Time) []string {
	seen := map[string]bool{}
	var shots []string

	for _, match := range screenshotPathRe.FindAllString(output, -1) {
		candidate := strings.Trim(match, `"'()[]`)
		if seen[candidate] {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			seen[candidate] = true
			shots = append(shots, candidate)
		}
	}

	if outputDir != "" {
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			return shots
		}
		// Filesystem mtime granularity can be one second.
		cutoff := since.Truncate(time.Second)
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
				continue
			}
			path := filepath.Join(outputDir, entry.Name())
			if seen[path] {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				continue
			}
			seen[path] = true
			shots = append(shots, path)
		}
	}

	return shots
}

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	// Restore original order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// boundedBuffer is an io.Writer that stops retaining bytes past
// outputCap. Writes always report success so the process never blocks
// on a full pipe.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := outputCap - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
