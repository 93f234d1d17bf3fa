package core

import (
	"time"

	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// PerformanceMetrics holds the basic measurements collected once per
// flow, after the last action, regardless of outcome.
type PerformanceMetrics struct {
	TotalActions    int           `json:"totalActions"`
	ExecutedActions int           `json:"executedActions"`
	AvgActionTime   time.Duration `json:"avgActionTime"`
}

// TestResult captures the complete outcome of executing one flow.
// Created once per flow execution and immutable after the adapter
// returns it; the coordinator owns it for aggregation.
type TestResult struct {
	TestName    string              `json:"testName"`
	Engine      flow.Engine         `json:"engine"`
	Status      TestStatus          `json:"status"`
	Duration    time.Duration       `json:"duration"`
	StartTime   time.Time           `json:"startTime"`
	EndTime     time.Time           `json:"endTime"`
	Error       string              `json:"error,omitempty"`
	Screenshots []string            `json:"screenshots,omitempty"` // Append-only, never reordered
	Video       string              `json:"video,omitempty"`
	Logs        []string            `json:"logs,omitempty"`
	Performance *PerformanceMetrics `json:"performance,omitempty"`
}

// NewTestResult builds a result and computes the duration from the
// start/end timestamps. All adapters construct their results through
// this so every entry in a suite has the same shape.
func NewTestResult(name string, engine flow.Engine, status TestStatus, start, end time.Time) *TestResult {
	return &TestResult{
		TestName:  name,
		Engine:    engine,
		Status:    status,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
}

// AddScreenshot appends a screenshot path. Screenshots are append-only.
func (r *TestResult) AddScreenshot(path string) {
	if path != "" {
		r.Screenshots = append(r.Screenshots, path)
	}
}

// AddLog appends a log line to the result's log stream.
func (r *TestResult) AddLog(line string) {
	if line != "" {
		r.Logs = append(r.Logs, line)
	}
}

// Summary holds counts by status and the wall-clock window of a run.
type Summary struct {
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errored   int           `json:"errored"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
}

// Coverage is a heuristic, keyword-driven approximation of category
// pass-rates. It is NOT measured code or path coverage and must not be
// read as ground truth; see the aggregator for how it is estimated.
type Coverage struct {
	Functional    float64 `json:"functional"`
	Visual        float64 `json:"visual"`
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
}

// Artifacts collects the file outputs of a whole run.
type Artifacts struct {
	Screenshots []string `json:"screenshots,omitempty"`
	Videos      []string `json:"videos,omitempty"`
	Reports     []string `json:"reports,omitempty"`
}

// TestSuiteResult is the aggregated outcome of one strategy execution.
// Built once per coordinator run.
type TestSuiteResult struct {
	RunID     string        `json:"runId"`
	Summary   Summary       `json:"summary"`
	Results   []*TestResult `json:"results"`
	Coverage  Coverage      `json:"coverage"`
	Artifacts Artifacts     `json:"artifacts"`
}

// Success returns true if every flow in the suite passed.
func (s *TestSuiteResult) Success() bool {
	for _, r := range s.Results {
		if !r.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Results) > 0
}
