package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coherence/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func sampleSuite() runner.SuiteResult {
	return runner.SuiteResult{
		RunID:    "run-1",
		Duration: 1500 * time.Millisecond,
		Total:    3,
		Passed:   1,
		Failed:   1,
		Skipped:  1,
		Scenarios: []runner.ScenarioResult{
			{
				Name:     "greeting",
				Result:   runner.StatusPassed,
				Polls:    3,
				Duration: 20 * time.Millisecond,
				Steps: []runner.StepResult{
					{Name: "greeting", Root: true, Result: "success", Polls: 1},
					{Name: "say", Result: "success", Polls: 1},
					{Name: "hear", Result: "success", Polls: 1},
				},
			},
			{
				Name:      "refund",
				Result:    runner.StatusFailed,
				Message:   "expected topic to equal nope, got refund",
				CallStack: "refund\n.then(ask)\n.then(check)",
				Polls:     4,
			},
			{Name: "later", Result: runner.StatusSkipped},
		},
	}
}

func TestConsole_ScenarioLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{})
	suite := sampleSuite()

	c.ReportStart("run-1", 3)
	for _, s := range suite.Scenarios {
		c.ReportScenarioResult(s)
	}
	out := buf.String()

	assert.Contains(t, out, "🧪 Starting coherence run run-1")
	assert.Contains(t, out, "🎯 greeting... ✅")
	assert.Contains(t, out, "🎯 refund... ❌")
	assert.Contains(t, out, "   ❌ expected topic to equal nope, got refund")
	assert.Contains(t, out, "      refund\n      .then(ask)\n      .then(check)")
	assert.Contains(t, out, "🎯 later... ⏭️")
	assert.NotContains(t, out, "Step: say", "steps are only listed in verbose mode")
}

func TestConsole_Verbose(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, ConsoleOptions{Verbose: true}).ReportScenarioResult(sampleSuite().Scenarios[0])

	out := buf.String()
	assert.Contains(t, out, "✅ Step: say (1 polls")
	assert.Contains(t, out, "✅ Step: hear")
	assert.NotContains(t, out, "Step: greeting", "the root step is not listed")
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, ConsoleOptions{}).ReportSuiteResult(sampleSuite())
	out := buf.String()

	assert.Contains(t, out, "🏁 Test Suite Complete")
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "refund")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "✅ Passed: 1")
	assert.Contains(t, out, "❌ Failed: 1")
	assert.Contains(t, out, "⏭️  Skipped: 1")
	assert.Contains(t, out, "📏 Success Rate: 33.3%")
	assert.Contains(t, out, "💔 Some tests failed")
}

func TestConsole_AllPassed(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, ConsoleOptions{}).ReportSuiteResult(runner.SuiteResult{Total: 0})
	assert.Contains(t, buf.String(), "🎉 All tests passed!")
	assert.NotContains(t, buf.String(), "╭", "no table without scenarios")
}

func TestEncoded_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSON(&buf)
	r.ReportStart("run-1", 3)
	r.ReportScenarioResult(sampleSuite().Scenarios[0])
	assert.Zero(t, buf.Len(), "nothing is written before the suite completes")

	r.ReportSuiteResult(sampleSuite())

	var decoded runner.SuiteResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Scenarios, 3)
	assert.Equal(t, runner.StatusFailed, decoded.Scenarios[1].Result)
}

func TestEncoded_YAML(t *testing.T) {
	var buf bytes.Buffer
	NewYAML(&buf).ReportSuiteResult(sampleSuite())

	out := buf.String()
	assert.Contains(t, out, "run_id: run-1")
	assert.Contains(t, out, "call_stack:")

	var decoded runner.SuiteResult
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Total)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatConsole, false},
		{"console", FormatConsole, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []Format{FormatConsole, FormatJSON, FormatYAML} {
		r, err := New(format, &buf, ConsoleOptions{})
		require.NoError(t, err)
		assert.NotNil(t, r)
	}
	_, err := New("xml", &buf, ConsoleOptions{})
	assert.Error(t, err)
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "reports", "run.json")
	require.NoError(t, SaveReport(jsonPath, sampleSuite()))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded runner.SuiteResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)

	yamlPath := filepath.Join(dir, "run.yml")
	require.NoError(t, SaveReport(yamlPath, sampleSuite()))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id: run-1")

	err = SaveReport(filepath.Join(dir, "run.txt"), sampleSuite())
	assert.ErrorContains(t, err, "cannot infer report format")
}

func TestStructured(t *testing.T) {
	r := NewStructured()

	_, ok := r.Latest()
	assert.False(t, ok)

	suite := sampleSuite()
	r.ReportStart(suite.RunID, 3)
	r.ReportScenarioResult(suite.Scenarios[0])

	progress, ok := r.Progress("run-1")
	require.True(t, ok)
	assert.Equal(t, 3, progress.Total)
	assert.Len(t, progress.Completed, 1)
	assert.False(t, progress.Finished)

	_, ok = r.Result("run-1")
	assert.False(t, ok, "no result before the suite completes")

	r.ReportSuiteResult(suite)

	result, ok := r.Result("run-1")
	require.True(t, ok)
	assert.Equal(t, 1, result.Failed)

	progress, _ = r.Progress("run-1")
	assert.True(t, progress.Finished)

	r.ReportStart("run-2", 1)
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "run-1", latest.RunID, "run-2 has not finished")
	assert.Equal(t, []string{"run-1", "run-2"}, r.RunIDs())

	_, ok = r.Progress("missing")
	assert.False(t, ok)
}

type countingReporter struct {
	starts, scenarios, suites int
}

func (c *countingReporter) ReportStart(string, int) { c.starts++ }
func (c *countingReporter) ReportScenarioResult(runner.ScenarioResult) { c.scenarios++ }
func (c *countingReporter) ReportSuiteResult(runner.SuiteResult) { c.suites++ }

func TestMulti(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	m := NewMulti(a, nil, b)
	assert.Len(t, m, 2)

	m.ReportStart("r", 1)
	m.ReportScenarioResult(runner.ScenarioResult{})
	m.ReportSuiteResult(runner.SuiteResult{})

	for _, c := range []*countingReporter{a, b} {
		assert.Equal(t, 1, c.starts)
		assert.Equal(t, 1, c.scenarios)
		assert.Equal(t, 1, c.suites)
	}
}
