package config

import "time"

const (
	// DefaultPollInterval is the delay between two polls of a live portal
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultStepTimeout is the per-step budget for scenarios without a timeout
	DefaultStepTimeout = 30 * time.Second

	// DefaultScenarioDir is the scenario directory name inside the config directory
	DefaultScenarioDir = "scenarios"
)

// GetDefaultConfig returns the default configuration for coherence.
func GetDefaultConfig() CoherenceConfig {
	return CoherenceConfig{
		PollInterval:   DefaultPollInterval,
		DefaultTimeout: DefaultStepTimeout,
		Parallel:       1,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}
