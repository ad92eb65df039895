package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"coherence/internal/runner"
	pkgstrings "coherence/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleOptions tune console output.
type ConsoleOptions struct {
	// Verbose prints every terminated step of every scenario
	Verbose bool
	// Color enables ANSI colors in the summary table
	Color bool
}

// Console writes human-readable progress to a terminal.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	opts ConsoleOptions
}

var _ runner.Reporter = (*Console)(nil)

// NewConsole creates a console reporter writing to out.
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	return &Console{out: out, opts: opts}
}

// ReportStart prints the run header.
func (c *Console) ReportStart(runID string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "🧪 Starting coherence run %s\n", runID)
	fmt.Fprintf(c.out, "📋 Scenarios: %d\n\n", total)
}

// ReportScenarioResult prints one line for the scenario and, for failures,
// the message and call stack.
func (c *Console) ReportScenarioResult(result runner.ScenarioResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "🎯 %s... %s (%v)\n", result.Name, symbol(result.Result), round(result.Duration))

	if c.opts.Verbose {
		for _, step := range result.Steps {
			if step.Root {
				continue
			}
			fmt.Fprintf(c.out, "   %s Step: %s (%d polls, %v)\n", stepSymbol(step.Result), step.Name, step.Polls, round(step.Duration))
			if step.Message != "" {
				fmt.Fprintf(c.out, "      📝 %s\n", step.Message)
			}
		}
	}

	if result.Result != runner.StatusFailed && result.Result != runner.StatusError {
		return
	}
	if result.Message != "" {
		fmt.Fprintf(c.out, "   ❌ %s\n", result.Message)
	}
	if result.CallStack != "" {
		fmt.Fprintf(c.out, "   🔍 Call stack:\n%s\n", pkgstrings.Indent(result.CallStack, "      "))
	}
}

// ReportSuiteResult prints the summary table and totals.
func (c *Console) ReportSuiteResult(suite runner.SuiteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n🏁 Test Suite Complete\n")

	if len(suite.Scenarios) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(c.out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Scenario", "Result", "Polls", "Duration", "Message"})
		for _, s := range suite.Scenarios {
			t.AppendRow(table.Row{
				s.Name,
				c.colorize(s.Result),
				s.Polls,
				round(s.Duration),
				pkgstrings.SingleLine(s.Message, pkgstrings.DefaultMessageMaxLen),
			})
		}
		t.Render()
	}

	fmt.Fprintf(c.out, "⏱️  Duration: %v\n", round(suite.Duration))
	fmt.Fprintf(c.out, "📊 Results:\n")
	fmt.Fprintf(c.out, "   ✅ Passed: %d\n", suite.Passed)
	if suite.Failed > 0 {
		fmt.Fprintf(c.out, "   ❌ Failed: %d\n", suite.Failed)
	}
	if suite.Errors > 0 {
		fmt.Fprintf(c.out, "   💥 Errors: %d\n", suite.Errors)
	}
	if suite.Skipped > 0 {
		fmt.Fprintf(c.out, "   ⏭️  Skipped: %d\n", suite.Skipped)
	}
	if suite.NotRun > 0 {
		fmt.Fprintf(c.out, "   🚫 Not run: %d\n", suite.NotRun)
	}
	fmt.Fprintf(c.out, "   📈 Total: %d\n", suite.Total)
	fmt.Fprintf(c.out, "   📏 Success Rate: %.1f%%\n", successRate(suite))

	if suite.Succeeded() {
		fmt.Fprintf(c.out, "\n🎉 All tests passed!\n")
	} else {
		fmt.Fprintf(c.out, "\n💔 Some tests failed\n")
	}
}

func (c *Console) colorize(status runner.Status) string {
	if !c.opts.Color {
		return string(status)
	}
	switch status {
	case runner.StatusPassed:
		return text.FgGreen.Sprint(status)
	case runner.StatusFailed, runner.StatusError:
		return text.FgRed.Sprint(status)
	default:
		return text.FgYellow.Sprint(status)
	}
}

func successRate(suite runner.SuiteResult) float64 {
	if suite.Total == 0 {
		return 0
	}
	return float64(suite.Passed) / float64(suite.Total) * 100
}

func symbol(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return "✅"
	case runner.StatusFailed:
		return "❌"
	case runner.StatusSkipped:
		return "⏭️"
	case runner.StatusError:
		return "💥"
	default:
		return "❓"
	}
}

func stepSymbol(result string) string {
	switch result {
	case "success":
		return "✅"
	case "failure":
		return "❌"
	default:
		return "⏳"
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
