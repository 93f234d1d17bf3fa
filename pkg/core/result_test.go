package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

func TestNewTestResult_ComputesDuration(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)

	r := NewTestResult("Login Flow", flow.EngineBrowser, StatusPassed, start, end)

	assert.Equal(t, "Login Flow", r.TestName)
	assert.Equal(t, flow.EngineBrowser, r.Engine)
	assert.Equal(t, 42*time.Second, r.Duration)
	assert.Equal(t, start, r.StartTime)
	assert.Equal(t, end, r.EndTime)
}

func TestTestResult_ScreenshotsAppendOnly(t *testing.T) {
	r := NewTestResult("t", flow.EngineSession, StatusPassed, time.Now(), time.Now())

	r.AddScreenshot("a.png")
	r.AddScreenshot("") // ignored
	r.AddScreenshot("b.png")

	assert.Equal(t, []string{"a.png", "b.png"}, r.Screenshots)
}

func TestTestStatus(t *testing.T) {
	assert.True(t, StatusPassed.IsSuccess())
	assert.False(t, StatusFailed.IsSuccess())
	assert.False(t, StatusError.IsSuccess())

	for _, s := range []TestStatus{StatusPassed, StatusFailed, StatusSkipped, StatusError} {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	assert.False(t, TestStatus("running").IsTerminal())
}

func TestSuiteResult_Success(t *testing.T) {
	now := time.Now()
	passed := NewTestResult("a", flow.EngineBrowser, StatusPassed, now, now)
	failed := NewTestResult("b", flow.EngineBrowser, StatusFailed, now, now)

	empty := &TestSuiteResult{}
	assert.False(t, empty.Success())

	allPass := &TestSuiteResult{Results: []*TestResult{passed}}
	assert.True(t, allPass.Success())

	mixed := &TestSuiteResult{Results: []*TestResult{passed, failed}}
	assert.False(t, mixed.Success())
}
