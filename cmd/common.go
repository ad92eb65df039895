package cmd

import (
	"fmt"
	"io"
	"os"

	"coherence/internal/config"
	"coherence/internal/runner"
	"coherence/internal/scenario"
	"coherence/internal/steps"
	"coherence/pkg/logging"
)

// loadSettings reads config.yaml below configPath and applies the
// persistent flag overrides.
func loadSettings() (config.CoherenceConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if scenarioPathFlag != "" {
		cfg.ScenarioPath = scenarioPathFlag
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// initLogging configures process-wide logging from cfg. Logs go to w so
// they never mix with reports written to stdout.
func initLogging(cfg config.CoherenceConfig, w io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(logging.Format(cfg.LogFormat), level, w)
	return nil
}

// loadScenarios loads, filters and validates the scenarios at path.
func loadScenarios(path string, filter scenario.Filter, registry *steps.Registry) ([]scenario.Scenario, error) {
	scenarios, err := scenario.NewLoader().LoadScenarios(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	scenarios = scenario.FilterScenarios(scenarios, filter)
	if err := scenario.ValidateAll(scenarios, registry); err != nil {
		return nil, fmt.Errorf("invalid scenarios:\n%w", err)
	}
	return scenarios, nil
}

func runnerConfig(cfg config.CoherenceConfig) runner.Config {
	return runner.Config{
		Parallel:       cfg.Parallel,
		FailFast:       cfg.FailFast,
		PollInterval:   cfg.PollInterval,
		DefaultTimeout: cfg.DefaultTimeout,
	}
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
