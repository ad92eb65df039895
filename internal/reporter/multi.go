package reporter

import "coherence/internal/runner"

// Multi forwards every call to each of its reporters in order.
type Multi []runner.Reporter

var _ runner.Reporter = Multi(nil)

// NewMulti combines reporters, skipping nil ones.
func NewMulti(reporters ...runner.Reporter) Multi {
	m := make(Multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m Multi) ReportStart(runID string, total int) {
	for _, r := range m {
		r.ReportStart(runID, total)
	}
}

func (m Multi) ReportScenarioResult(result runner.ScenarioResult) {
	for _, r := range m {
		r.ReportScenarioResult(result)
	}
}

func (m Multi) ReportSuiteResult(suite runner.SuiteResult) {
	for _, r := range m {
		r.ReportSuiteResult(suite)
	}
}
