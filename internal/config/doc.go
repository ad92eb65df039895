// Package config loads coherence's configuration.
//
// Configuration lives in a single directory, by default ~/.config/coherence,
// which holds config.yaml and, unless configured otherwise, a scenarios/
// subdirectory:
//
//	~/.config/coherence/
//	├── config.yaml
//	└── scenarios/
//	    ├── greeting.yaml
//	    └── support/
//	        └── escalation.yaml
//
// A config.yaml sets any subset of the fields below; the rest keep their
// defaults.
//
//	pollInterval: 100ms
//	defaultTimeout: 45s
//	parallel: 4
//	failFast: true
//	logLevel: debug
//	logFormat: json
//	scenarioPath: scenarios
//	metricsAddr: ":9090"
//	notifyWebhook: https://hooks.slack.com/services/T000/B000/XXXX
//
// Command-line flags take precedence over every value loaded here.
package config
