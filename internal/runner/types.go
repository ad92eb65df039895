package runner

import (
	"fmt"
	"time"

	"coherence/internal/portal"
)

// Status is the outcome of a scenario.
type Status string

const (
	// StatusPassed indicates the chain completed successfully
	StatusPassed Status = "PASSED"
	// StatusFailed indicates a step failed or timed out
	StatusFailed Status = "FAILED"
	// StatusSkipped indicates the scenario was marked skip
	StatusSkipped Status = "SKIPPED"
	// StatusError indicates the scenario could not be run
	StatusError Status = "ERROR"
)

// Config controls a suite run.
type Config struct {
	// Parallel is the number of scenarios run concurrently
	Parallel int
	// FailFast stops scheduling scenarios after the first failure
	FailFast bool
	// PollInterval is the delay between two polls of a live portal
	PollInterval time.Duration
	// DefaultTimeout is the per-step budget for scenarios without a timeout
	DefaultTimeout time.Duration
	// Clock replaces wall-clock time inside portals
	Clock portal.Clock
}

// StepResult records one terminated step.
type StepResult struct {
	Name     string        `json:"name"`
	Root     bool          `json:"root,omitempty"`
	Result   string        `json:"result"`
	Message  string        `json:"message,omitempty"`
	Polls    int           `json:"polls"`
	Duration time.Duration `json:"duration"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Result      Status        `json:"result"`
	Message     string        `json:"message,omitempty"`
	CallStack   string        `json:"call_stack,omitempty"`
	Polls       int           `json:"polls"`
	Steps       []StepResult  `json:"steps,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
}

// SuiteResult is the outcome of a run over several scenarios.
type SuiteResult struct {
	RunID     string           `json:"run_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	NotRun    int              `json:"not_run,omitempty"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Succeeded reports whether no scenario failed or errored.
func (s *SuiteResult) Succeeded() bool {
	return s.Failed == 0 && s.Errors == 0
}

func (s *SuiteResult) count(result ScenarioResult) {
	switch result.Result {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusError:
		s.Errors++
	}
}

// Reporter receives progress while a suite runs. Calls may come from
// several goroutines but are never concurrent.
type Reporter interface {
	ReportStart(runID string, total int)
	ReportScenarioResult(result ScenarioResult)
	ReportSuiteResult(result SuiteResult)
}

// Metrics receives execution counters.
type Metrics interface {
	RecordStep(scenario, step, result string)
	RecordPoll(scenario string)
	RecordScenario(result string, duration time.Duration)
}

// TimeoutError reports a scenario that exceeded its overall deadline.
type TimeoutError struct {
	Scenario string
	Deadline time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("scenario %s exceeded its deadline of %v", e.Scenario, e.Deadline)
}
