package scenario

import (
	"fmt"
	"time"

	"coherence/internal/portal"
	"coherence/internal/steps"
	"coherence/internal/workspace"
	"coherence/pkg/logging"
)

const (
	subsystem = "Scenario"

	// DefaultCleanupTimeout bounds each clean-up step
	DefaultCleanupTimeout = 5 * time.Second

	// DefaultCleanupPollInterval is the delay between polls of a pending clean-up step
	DefaultCleanupPollInterval = 50 * time.Millisecond
)

// BuildOptions tune how a scenario is turned into a portal.
type BuildOptions struct {
	// DefaultTimeout is the per-step budget when the scenario sets none
	DefaultTimeout time.Duration
	// Clock replaces wall-clock time for timeouts and waits
	Clock portal.Clock
	// Observer is notified of every terminated step
	Observer portal.StepObserver
	// CleanupTimeout bounds each clean-up step
	CleanupTimeout time.Duration
	// CleanupPollInterval is the delay between polls of a pending clean-up step
	CleanupPollInterval time.Duration
}

// EffectiveTimeout returns the step budget applied to s.
func EffectiveTimeout(s Scenario, defaultTimeout time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}

// Build creates a fresh workspace populated with the scenario's users and a
// portal chaining its steps. Clean-up steps become the portal's clean-up hook.
func Build(s Scenario, registry *steps.Registry, opts BuildOptions) (*portal.TestPortal, *workspace.SlackUserWorkspace, error) {
	ws := workspace.NewSlackUserWorkspace()
	for _, u := range s.Users {
		user := workspace.NewSlackUser(u.Username, u.Token)
		user.LoadEvents(u.Events...)
		if err := ws.AddSlackUserClient(user); err != nil {
			return nil, nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	portalOpts := []portal.Option{
		portal.WithName(s.Name),
		portal.WithTimeout(EffectiveTimeout(s, opts.DefaultTimeout)),
		portal.WithObservedUser(s.Observe),
	}
	if opts.Clock != nil {
		portalOpts = append(portalOpts, portal.WithClock(opts.Clock))
	}
	if opts.Observer != nil {
		portalOpts = append(portalOpts, portal.WithStepObserver(opts.Observer))
	}
	p := portal.New(portalOpts...)

	for key, value := range s.Data {
		p.DataStore()[key] = value
	}

	for i, def := range s.Steps {
		step, err := registry.Build(def.DisplayName(), def.Action, def.Args, opts.Clock)
		if err != nil {
			return nil, nil, fmt.Errorf("scenario %s: step %d: %w", s.Name, i+1, err)
		}
		p.ThenStep(step)
	}

	if len(s.Cleanup) > 0 {
		cleanup := make([]portal.Step, 0, len(s.Cleanup))
		for i, def := range s.Cleanup {
			step, err := registry.Build(def.DisplayName(), def.Action, def.Args, opts.Clock)
			if err != nil {
				return nil, nil, fmt.Errorf("scenario %s: cleanup step %d: %w", s.Name, i+1, err)
			}
			cleanup = append(cleanup, step)
		}
		p.SetCleanUp(cleanupHook(s.Name, cleanup, p.DataStore(), opts))
	}

	return p, ws, nil
}

// cleanupHook runs steps in order, polling each until it terminates or its
// poll budget is spent. Failures are logged and do not stop later steps.
func cleanupHook(name string, cleanup []portal.Step, data portal.DataStore, opts BuildOptions) portal.CleanUpFunc {
	timeout := opts.CleanupTimeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	interval := opts.CleanupPollInterval
	if interval <= 0 {
		interval = DefaultCleanupPollInterval
	}
	maxPolls := int(timeout / interval)
	if maxPolls < 1 {
		maxPolls = 1
	}

	return func(ws portal.Workspace) {
		for _, step := range cleanup {
			result := pollCleanupStep(step, ws, data, maxPolls, interval)

			switch result.Code {
			case portal.ResultSuccess:
				logging.Debug(subsystem, "%s: clean-up step %s succeeded", name, step.Name())
			case portal.ResultFailure:
				logging.Warn(subsystem, "%s: clean-up step %s failed: %s", name, step.Name(), result.Message)
			default:
				logging.Warn(subsystem, "%s: clean-up step %s did not finish within %v", name, step.Name(), timeout)
			}
		}
	}
}

// pollCleanupStep polls step until it terminates or maxPolls is spent. A panic
// becomes a failure so the remaining clean-up steps still run.
func pollCleanupStep(step portal.Step, ws portal.Workspace, data portal.DataStore, maxPolls int, interval time.Duration) (result portal.TestResult) {
	defer func() {
		if r := recover(); r != nil {
			result = portal.Failuref("step %s panicked: %v", step.Name(), r)
		}
	}()

	result = portal.Pending()
	for poll := 0; poll < maxPolls; poll++ {
		if poll > 0 {
			time.Sleep(interval)
		}
		result = step.Run(ws, data)
		if result.IsTerminal() {
			break
		}
	}
	return result
}
