package reporter

import (
	"sync"

	"coherence/internal/runner"
)

// RunProgress describes a run that has started but may not have finished.
type RunProgress struct {
	RunID     string                  `json:"run_id"`
	Total     int                     `json:"total"`
	Completed []runner.ScenarioResult `json:"completed"`
	Finished  bool                    `json:"finished"`
}

// Structured keeps every run in memory without writing anything. It backs
// the MCP server, which must not write to stdio.
type Structured struct {
	mu      sync.RWMutex
	runs    map[string]*RunProgress
	suites  map[string]runner.SuiteResult
	order   []string
	current string
}

var _ runner.Reporter = (*Structured)(nil)

// NewStructured creates an empty in-memory reporter.
func NewStructured() *Structured {
	return &Structured{
		runs:   make(map[string]*RunProgress),
		suites: make(map[string]runner.SuiteResult),
	}
}

// ReportStart registers a new run.
func (r *Structured) ReportStart(runID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[runID] = &RunProgress{RunID: runID, Total: total}
	r.order = append(r.order, runID)
	r.current = runID
}

// ReportScenarioResult records a completed scenario of the current run.
func (r *Structured) ReportScenarioResult(result runner.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if progress, ok := r.runs[r.current]; ok {
		progress.Completed = append(progress.Completed, result)
	}
}

// ReportSuiteResult stores the final result of a run.
func (r *Structured) ReportSuiteResult(suite runner.SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suites[suite.RunID] = suite
	if progress, ok := r.runs[suite.RunID]; ok {
		progress.Finished = true
	}
}

// Result returns the final result of runID.
func (r *Structured) Result(runID string) (runner.SuiteResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	suite, ok := r.suites[runID]
	return suite, ok
}

// Latest returns the most recently finished run.
func (r *Structured) Latest() (runner.SuiteResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if suite, ok := r.suites[r.order[i]]; ok {
			return suite, true
		}
	}
	return runner.SuiteResult{}, false
}

// Progress returns a snapshot of runID, finished or not.
func (r *Structured) Progress(runID string) (RunProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	progress, ok := r.runs[runID]
	if !ok {
		return RunProgress{}, false
	}
	snapshot := *progress
	snapshot.Completed = append([]runner.ScenarioResult(nil), progress.Completed...)
	return snapshot, true
}

// RunIDs returns every known run in start order.
func (r *Structured) RunIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
