// Package report aggregates per-flow results into a suite result and
// writes run reports.
package report

import (
	"strings"

	"github.com/testbridge-dev/testbridge-runner/pkg/core"
)

// Penalties are subtracted from the overall pass rate when a coverage
// category has no matching tests. The defaults reproduce the original
// weighting: functional coverage is never penalized, the more
// specialized categories degrade progressively.
type Penalties struct {
	Functional    float64
	Visual        float64
	Performance   float64
	Accessibility float64
}

// DefaultPenalties returns the standard category penalties.
func DefaultPenalties() Penalties {
	return Penalties{Functional: 0, Visual: 20, Performance: 30, Accessibility: 40}
}

// Keyword sets used to attribute a test to a coverage category by name.
var (
	visualKeywords        = []string{"visual", "ui", "layout", "screenshot"}
	performanceKeywords   = []string{"performance", "perf", "load", "speed"}
	accessibilityKeywords = []string{"accessibility", "a11y"}
)

// Aggregator folds flow results into a TestSuiteResult.
type Aggregator struct {
	penalties Penalties
}

// NewAggregator creates an aggregator with the given penalties.
func NewAggregator(p Penalties) *Aggregator {
	return &Aggregator{penalties: p}
}

// Aggregate builds the suite result: status counts, the wall-clock
// window spanning all flows, and the heuristic coverage estimate.
func (a *Aggregator) Aggregate(runID string, results []*core.TestResult) *core.TestSuiteResult {
	suite := &core.TestSuiteResult{
		RunID:   runID,
		Results: results,
		Summary: summarize(results),
	}
	suite.Coverage = a.estimateCoverage(results)

	for _, r := range results {
		suite.Artifacts.Screenshots = append(suite.Artifacts.Screenshots, r.Screenshots...)
		if r.Video != "" {
			suite.Artifacts.Videos = append(suite.Artifacts.Videos, r.Video)
		}
	}
	return suite
}

// summarize counts results by status and computes the run window.
func summarize(results []*core.TestResult) core.Summary {
	s := core.Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case core.StatusPassed:
			s.Passed++
		case core.StatusFailed:
			s.Failed++
		case core.StatusSkipped:
			s.Skipped++
		case core.StatusError:
			s.Errored++
		}

		if !r.StartTime.IsZero() && (s.StartTime.IsZero() || r.StartTime.Before(s.StartTime)) {
			s.StartTime = r.StartTime
		}
		if r.EndTime.After(s.EndTime) {
			s.EndTime = r.EndTime
		}
	}
	if !s.StartTime.IsZero() {
		s.Duration = s.EndTime.Sub(s.StartTime)
	}
	return s
}

// estimateCoverage approximates per-category coverage. Every test
// counts as functional; the other categories match by name keyword,
// with performance also matching tests that carried metrics. A category
// with matches scores its own pass rate; one without falls back to the
// overall pass rate minus its penalty. All values live in [0,100].
func (a *Aggregator) estimateCoverage(results []*core.TestResult) core.Coverage {
	overall := passRate(results, func(*core.TestResult) bool { return true })

	return core.Coverage{
		Functional: clamp(categoryScore(results, overall, a.penalties.Functional,
			func(*core.TestResult) bool { return true })),
		Visual: clamp(categoryScore(results, overall, a.penalties.Visual,
			func(r *core.TestResult) bool { return nameMatches(r, visualKeywords) })),
		Performance: clamp(categoryScore(results, overall, a.penalties.Performance,
			func(r *core.TestResult) bool {
				return nameMatches(r, performanceKeywords) || hasMetrics(r)
			})),
		Accessibility: clamp(categoryScore(results, overall, a.penalties.Accessibility,
			func(r *core.TestResult) bool { return nameMatches(r, accessibilityKeywords) })),
	}
}

func categoryScore(results []*core.TestResult, overall, penalty float64, match func(*core.TestResult) bool) float64 {
	matched := 0
	for _, r := range results {
		if match(r) {
			matched++
		}
	}
	if matched == 0 {
		score := overall - penalty
		if score < 0 {
			return 0
		}
		return score
	}
	return passRate(results, match)
}

func passRate(results []*core.TestResult, match func(*core.TestResult) bool) float64 {
	matched, passed := 0, 0
	for _, r := range results {
		if !match(r) {
			continue
		}
		matched++
		if r.Status.IsSuccess() {
			passed++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(passed) / float64(matched) * 100
}

func nameMatches(r *core.TestResult, keywords []string) bool {
	name := strings.ToLower(r.TestName)
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func hasMetrics(r *core.TestResult) bool {
	return r.Performance != nil && r.Performance.AvgActionTime > 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
