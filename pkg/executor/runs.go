package executor

import (
	"sync"
	"time"

	"github.com/testbridge-dev/testbridge-runner/pkg/core"
	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// defaultRunRetention is how long finished runs stay queryable.
const defaultRunRetention = time.Hour

// RunRecord is the registry's view of one strategy execution.
type RunRecord struct {
	ID        string
	Rationale string
	Started   time.Time
	Finished  time.Time
	Suite     *core.TestSuiteResult
}

// Done reports whether the run has finished.
func (r *RunRecord) Done() bool {
	return !r.Finished.IsZero()
}

// runRegistry tracks strategy runs in-process. Finished runs are
// evicted once they exceed the retention window, so the registry does
// not grow for the lifetime of the process.
type runRegistry struct {
	mu        sync.Mutex
	retention time.Duration
	runs      map[string]*RunRecord
	now       func() time.Time
}

func newRunRegistry(retention time.Duration) *runRegistry {
	return &runRegistry{
		retention: retention,
		runs:      make(map[string]*RunRecord),
		now:       time.Now,
	}
}

func (r *runRegistry) start(id string, strat flow.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	r.runs[id] = &RunRecord{
		ID:        id,
		Rationale: strat.Rationale,
		Started:   r.now(),
	}
}

func (r *runRegistry) complete(id string, suite *core.TestSuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.runs[id]; ok {
		rec.Suite = suite
	}
}

func (r *runRegistry) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.runs[id]; ok {
		rec.Finished = r.now()
	}
}

func (r *runRegistry) get(id string) (*RunRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[id]
	return rec, ok
}

// evictLocked drops finished runs older than the retention window.
// Callers hold r.mu.
func (r *runRegistry) evictLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, rec := range r.runs {
		if rec.Done() && rec.Finished.Before(cutoff) {
			delete(r.runs, id)
		}
	}
}
