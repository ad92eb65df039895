// Package logging provides the subsystem-tagged logger used across coherence.
//
// It is a thin layer over log/slog. Every record carries a subsystem
// attribute so output from the portal, the runner and the CLI can be told
// apart and filtered.
//
// # Levels
//
//   - Debug: step transitions, poll counts, file watcher activity
//   - Info: scenario start and finish, server lifecycle
//   - Warn: timeouts, skipped scenarios, recoverable problems
//   - Error: failures that abort an operation
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Runner", "Running %d scenarios", len(scenarios))
//	logging.Error("Notify", err, "Failed to deliver summary")
//
// JSON output is available for log shippers:
//
//	logging.Init(logging.FormatJSON, logging.LevelDebug, os.Stderr)
//
// # Subsystems
//
//   - Portal: step chain execution
//   - Steps: built-in step bodies
//   - Scenario: scenario loading and watching
//   - Runner: suite scheduling
//   - Metrics: Prometheus endpoint
//   - Notify: webhook delivery
//   - Shell: interactive session
//   - MCP: MCP server
//   - CLI: command handling
//
// Until Init is called, log calls are discarded. Tests that want to assert
// on output call InitForCLI with a bytes.Buffer.
package logging
