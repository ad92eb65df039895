package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"coherence/internal/portal"
	"coherence/internal/scenario"
	"coherence/internal/steps"
	"coherence/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	subsystem = "Runner"

	// DefaultPollInterval is used when Config.PollInterval is not set
	DefaultPollInterval = 50 * time.Millisecond
)

// Runner executes scenarios by polling one portal per scenario.
type Runner struct {
	registry *steps.Registry
	reporter Reporter
	metrics  Metrics

	reportMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records execution counters on m.
func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a runner resolving actions through registry and reporting to
// reporter. A nil reporter discards progress.
func New(registry *steps.Registry, reporter Reporter, opts ...Option) *Runner {
	r := &Runner{registry: registry, reporter: reporter}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = discardReporter{}
	}
	if r.metrics == nil {
		r.metrics = discardMetrics{}
	}
	return r
}

// Run executes scenarios according to cfg. Results keep the order of
// scenarios; scenarios never started because of fail-fast or cancellation
// are left out and counted as NotRun. The returned error is non-nil only when
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context, cfg Config, scenarios []scenario.Scenario) (*SuiteResult, error) {
	cfg = withDefaults(cfg)
	suite := &SuiteResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Total:     len(scenarios),
	}

	logging.Info(subsystem, "Run %s: %d scenarios, parallel=%d fail-fast=%t", suite.RunID, len(scenarios), cfg.Parallel, cfg.FailFast)
	r.reporter.ReportStart(suite.RunID, len(scenarios))

	results := make([]*ScenarioResult, len(scenarios))
	var stop atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)

	for i := range scenarios {
		if stop.Load() || gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if stop.Load() {
				return nil
			}
			result := r.RunScenario(gctx, cfg, scenarios[i])
			results[i] = &result

			r.reportMu.Lock()
			suite.count(result)
			r.reporter.ReportScenarioResult(result)
			r.reportMu.Unlock()

			if cfg.FailFast && (result.Result == StatusFailed || result.Result == StatusError) {
				if !stop.Swap(true) {
					logging.Info(subsystem, "Fail-fast triggered by scenario %s", result.Name)
				}
			}
			return nil
		})
	}
	// Scenario goroutines never return errors
	_ = g.Wait()

	for _, result := range results {
		if result != nil {
			suite.Scenarios = append(suite.Scenarios, *result)
		}
	}
	suite.NotRun = suite.Total - len(suite.Scenarios)
	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)

	r.reporter.ReportSuiteResult(*suite)
	logging.Info(subsystem, "Run %s finished in %v: %d passed, %d failed, %d skipped, %d errors",
		suite.RunID, suite.Duration, suite.Passed, suite.Failed, suite.Skipped, suite.Errors)

	if err := ctx.Err(); err != nil {
		return suite, err
	}
	return suite, nil
}

// RunScenario builds and polls a single scenario until it terminates.
func (r *Runner) RunScenario(ctx context.Context, cfg Config, s scenario.Scenario) (result ScenarioResult) {
	cfg = withDefaults(cfg)
	result = ScenarioResult{
		Name:        s.Name,
		Description: s.Description,
		StartTime:   time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartTime)
		r.metrics.RecordScenario(string(result.Result), result.Duration)
	}()

	if s.Skip {
		logging.Info(subsystem, "Skipping scenario %s", s.Name)
		result.Result = StatusSkipped
		return result
	}

	observer := func(report portal.StepReport) {
		result.Steps = append(result.Steps, StepResult{
			Name:     report.Name,
			Root:     report.Root,
			Result:   report.Result.Result(),
			Message:  report.Result.Message,
			Polls:    report.Polls,
			Duration: report.Elapsed,
		})
		if !report.Root {
			r.metrics.RecordStep(s.Name, report.Name, report.Result.Result())
		}
	}

	p, ws, err := scenario.Build(s, r.registry, scenario.BuildOptions{
		DefaultTimeout: cfg.DefaultTimeout,
		Clock:          cfg.Clock,
		Observer:       observer,
	})
	if err != nil {
		result.Result = StatusError
		result.Message = err.Error()
		return result
	}

	deadline := ScenarioDeadline(s, cfg.DefaultTimeout)
	var (
		scenarioCtx context.Context
		cancel      context.CancelFunc
	)
	if deadline == portal.NoTimeout {
		scenarioCtx, cancel = context.WithCancel(ctx)
	} else {
		scenarioCtx, cancel = context.WithTimeout(ctx, deadline)
	}
	defer cancel()

	logging.Debug(subsystem, "Running scenario %s (step timeout %v, deadline %v)", s.Name, p.Timeout(), deadline)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		outcome := p.Test(ws)
		result.Polls++
		r.metrics.RecordPoll(s.Name)

		if outcome.IsTerminal() {
			result.Message = outcome.Message
			result.CallStack = outcome.CallStack
			if outcome.Code == portal.ResultSuccess {
				result.Result = StatusPassed
			} else {
				result.Result = StatusFailed
			}
			return result
		}

		select {
		case <-scenarioCtx.Done():
			r.abandon(p, ws)
			result.CallStack = p.BuildSimpleStackMessage()
			if errors.Is(scenarioCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				result.Result = StatusFailed
				result.Message = TimeoutError{Scenario: s.Name, Deadline: deadline}.Error()
			} else {
				result.Result = StatusError
				result.Message = fmt.Sprintf("scenario %s cancelled: %v", s.Name, ctx.Err())
			}
			return result
		case <-ticker.C:
		}
	}
}

// abandon runs the clean-up hook of a portal that will not be polled again.
func (r *Runner) abandon(p *portal.TestPortal, ws portal.Workspace) {
	cleanUp := p.CleanUp()
	if cleanUp == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(subsystem, fmt.Errorf("%v", rec), "%s: clean-up panicked", p.Name())
		}
	}()
	cleanUp(ws)
}

// ScenarioDeadline bounds a whole scenario: one step budget for the root step
// and for every chained step.
func ScenarioDeadline(s scenario.Scenario, defaultTimeout time.Duration) time.Duration {
	stepTimeout := scenario.EffectiveTimeout(s, defaultTimeout)
	if stepTimeout <= 0 {
		return portal.NoTimeout
	}
	units := time.Duration(len(s.Steps) + 1)
	if stepTimeout > portal.NoTimeout/units {
		return portal.NoTimeout
	}
	return stepTimeout * units
}

func withDefaults(cfg Config) Config {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return cfg
}

type discardReporter struct{}

func (discardReporter) ReportStart(string, int) {}
func (discardReporter) ReportScenarioResult(ScenarioResult) {}
func (discardReporter) ReportSuiteResult(SuiteResult) {}

type discardMetrics struct{}

func (discardMetrics) RecordStep(string, string, string) {}
func (discardMetrics) RecordPoll(string) {}
func (discardMetrics) RecordScenario(string, time.Duration) {}
