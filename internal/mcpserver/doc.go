// Package mcpserver exposes coherence to AI assistants over the Model
// Context Protocol.
//
// The server speaks MCP over stdio and offers four tools:
//
//   - coherence_list_scenarios lists the scenarios found under the configured
//     path, optionally filtered by tag.
//   - coherence_validate_scenarios loads and validates every scenario.
//   - coherence_run_scenarios runs the matching scenarios and returns the
//     suite result as JSON. Runs are serialized.
//   - coherence_get_results returns the result of a previous run, the latest
//     one by default.
//
// Results are kept in memory by a reporter.Structured, so nothing is written
// to stdout besides protocol messages.
package mcpserver
