package config

import "time"

// CoherenceConfig is the top-level configuration structure for coherence.
type CoherenceConfig struct {
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`   // Delay between portal polls (default: 50ms)
	DefaultTimeout time.Duration `yaml:"defaultTimeout,omitempty"` // Per-step budget when a scenario sets none (default: 30s)
	Parallel       int           `yaml:"parallel,omitempty"`       // Scenarios run concurrently (default: 1)
	FailFast       bool          `yaml:"failFast,omitempty"`       // Stop scheduling after the first failure
	LogLevel       string        `yaml:"logLevel,omitempty"`       // debug, info, warn or error (default: info)
	LogFormat      string        `yaml:"logFormat,omitempty"`      // text or json (default: text)
	ScenarioPath   string        `yaml:"scenarioPath,omitempty"`   // File or directory of scenario YAML (default: <config>/scenarios)
	MetricsAddr    string        `yaml:"metricsAddr,omitempty"`    // Address for the Prometheus endpoint; empty disables it
	NotifyWebhook  string        `yaml:"notifyWebhook,omitempty"`  // Incoming-webhook URL for failure notifications
}
