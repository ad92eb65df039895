package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"coherence/internal/portal"
	"coherence/internal/scenario"
	"coherence/internal/steps"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu      sync.Mutex
	runID   string
	total   int
	results []ScenarioResult
	suite   *SuiteResult
}

func (r *recordingReporter) ReportStart(runID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = runID
	r.total = total
}

func (r *recordingReporter) ReportScenarioResult(result ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingReporter) ReportSuiteResult(result SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suite = &result
}

type countingMetrics struct {
	mu        sync.Mutex
	steps     map[string]int
	polls     int
	scenarios map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{steps: map[string]int{}, scenarios: map[string]int{}}
}

func (m *countingMetrics) RecordStep(scenario, step, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[scenario+"/"+step+"/"+result]++
}

func (m *countingMetrics) RecordPoll(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
}

func (m *countingMetrics) RecordScenario(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[result]++
}

var fastConfig = Config{PollInterval: time.Millisecond, DefaultTimeout: time.Second}

func conversation(name string) scenario.Scenario {
	return scenario.Scenario{
		Name:  name,
		Users: []scenario.User{{Username: "alice"}, {Username: "bob"}},
		Steps: []scenario.Step{
			{ID: "say", Action: "post_message", Args: map[string]interface{}{"as": "alice", "channel": "c", "text": "hi"}},
			{ID: "hear", Action: "await_event", Args: map[string]interface{}{"as": "bob", "contains": "hi"}},
		},
	}
}

func failing(name string) scenario.Scenario {
	return scenario.Scenario{
		Name:  name,
		Steps: []scenario.Step{{ID: "boom", Action: "fail", Args: map[string]interface{}{"message": "broken"}}},
	}
}

func TestRunner_RunScenario_Passed(t *testing.T) {
	metrics := newCountingMetrics()
	r := New(steps.DefaultRegistry(), nil, WithMetrics(metrics))

	result := r.RunScenario(context.Background(), fastConfig, conversation("greeting"))

	assert.Equal(t, StatusPassed, result.Result, result.Message)
	assert.Empty(t, result.CallStack)
	assert.Equal(t, 3, result.Polls)
	require.Len(t, result.Steps, 3)
	assert.True(t, result.Steps[0].Root)
	assert.Equal(t, "greeting", result.Steps[0].Name)
	assert.Equal(t, "say", result.Steps[1].Name)
	assert.Equal(t, "hear", result.Steps[2].Name)
	assert.Equal(t, "success", result.Steps[2].Result)
	assert.Greater(t, result.Duration, time.Duration(0))

	assert.Equal(t, 1, metrics.steps["greeting/say/success"])
	assert.Equal(t, 1, metrics.steps["greeting/hear/success"])
	assert.Equal(t, 3, metrics.polls)
	assert.Equal(t, 1, metrics.scenarios["PASSED"])
}

func TestRunner_RunScenario_Failed(t *testing.T) {
	r := New(steps.DefaultRegistry(), nil)

	result := r.RunScenario(context.Background(), fastConfig, failing("broken"))

	assert.Equal(t, StatusFailed, result.Result)
	assert.Equal(t, "broken", result.Message)
	assert.Equal(t, "broken\n.then(boom)", result.CallStack)
}

func TestRunner_RunScenario_StepTimeout(t *testing.T) {
	r := New(steps.DefaultRegistry(), nil)
	s := scenario.Scenario{
		Name:    "silence",
		Timeout: 20 * time.Millisecond,
		Users:   []scenario.User{{Username: "bot"}},
		Steps:   []scenario.Step{{ID: "await-reply", Action: "await_event"}},
	}

	result := r.RunScenario(context.Background(), fastConfig, s)

	assert.Equal(t, StatusFailed, result.Result)
	assert.Equal(t, portal.TimeoutMessagePrefix+"await-reply", result.Message)
	assert.Equal(t, "silence\n.then(await-reply)", result.CallStack)
}

func TestRunner_RunScenario_Skipped(t *testing.T) {
	s := failing("later")
	s.Skip = true

	result := New(steps.DefaultRegistry(), nil).RunScenario(context.Background(), fastConfig, s)
	assert.Equal(t, StatusSkipped, result.Result)
	assert.Zero(t, result.Polls)
}

func TestRunner_RunScenario_BuildError(t *testing.T) {
	s := scenario.Scenario{Name: "bad", Steps: []scenario.Step{{Action: "teleport"}}}

	result := New(steps.DefaultRegistry(), nil).RunScenario(context.Background(), fastConfig, s)
	assert.Equal(t, StatusError, result.Result)
	assert.Contains(t, result.Message, "unknown action")
}

func TestRunner_RunScenario_Cancelled(t *testing.T) {
	s := scenario.Scenario{
		Name:  "forever",
		Users: []scenario.User{{Username: "bot"}},
		Steps: []scenario.Step{{Action: "await_event"}},
		Cleanup: []scenario.Step{
			{Action: "store", Args: map[string]interface{}{"key": "cleaned", "value": true}},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cfg := fastConfig
	cfg.DefaultTimeout = 0
	result := New(steps.DefaultRegistry(), nil).RunScenario(ctx, cfg, s)

	assert.Equal(t, StatusError, result.Result)
	assert.Contains(t, result.Message, "cancelled")
}

func TestRunner_Run_Sequential(t *testing.T) {
	reporter := &recordingReporter{}
	r := New(steps.DefaultRegistry(), reporter)

	suite, err := r.Run(context.Background(), fastConfig, []scenario.Scenario{
		conversation("one"),
		failing("two"),
		conversation("three"),
	})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(suite.RunID)
	assert.NoError(t, parseErr)
	assert.Equal(t, suite.RunID, reporter.runID)
	assert.Equal(t, 3, reporter.total)

	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 2, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Zero(t, suite.NotRun)
	assert.False(t, suite.Succeeded())
	assert.Equal(t, []string{"one", "two", "three"}, names(suite.Scenarios))
	assert.Len(t, reporter.results, 3)
	require.NotNil(t, reporter.suite)
	assert.Equal(t, suite.RunID, reporter.suite.RunID)
}

func TestRunner_Run_FailFast(t *testing.T) {
	r := New(steps.DefaultRegistry(), nil)
	cfg := fastConfig
	cfg.FailFast = true

	suite, err := r.Run(context.Background(), cfg, []scenario.Scenario{
		failing("first"),
		conversation("second"),
		conversation("third"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first"}, names(suite.Scenarios))
	assert.Equal(t, 2, suite.NotRun)
	assert.Equal(t, 1, suite.Failed)
}

func TestRunner_Run_Parallel(t *testing.T) {
	reporter := &recordingReporter{}
	r := New(steps.DefaultRegistry(), reporter)
	cfg := fastConfig
	cfg.Parallel = 4

	var scenarios []scenario.Scenario
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		scenarios = append(scenarios, conversation(name))
	}

	suite, err := r.Run(context.Background(), cfg, scenarios)
	require.NoError(t, err)

	assert.Equal(t, 6, suite.Passed)
	assert.True(t, suite.Succeeded())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, names(suite.Scenarios), "results keep input order")
	assert.Len(t, reporter.results, 6)
}

func TestRunner_Run_Empty(t *testing.T) {
	suite, err := New(steps.DefaultRegistry(), nil).Run(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Zero(t, suite.Total)
	assert.True(t, suite.Succeeded())
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite, err := New(steps.DefaultRegistry(), nil).Run(ctx, fastConfig, []scenario.Scenario{conversation("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, suite.NotRun)
}

func TestScenarioDeadline(t *testing.T) {
	s := conversation("x")

	assert.Equal(t, 3*time.Second, ScenarioDeadline(s, time.Second))

	s.Timeout = 2 * time.Second
	assert.Equal(t, 6*time.Second, ScenarioDeadline(s, time.Second))

	assert.Equal(t, portal.NoTimeout, ScenarioDeadline(conversation("y"), 0))
	assert.Equal(t, portal.NoTimeout, ScenarioDeadline(conversation("z"), portal.NoTimeout))
}

func TestTimeoutError(t *testing.T) {
	err := TimeoutError{Scenario: "slow", Deadline: 3 * time.Second}
	assert.Equal(t, "scenario slow exceeded its deadline of 3s", err.Error())
}

func names(results []ScenarioResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}
