// Package reporter renders runner progress and results.
//
// Console prints one line per scenario and a summary table; JSON and YAML
// write the suite result once the run completes; Structured keeps results in
// memory for the MCP server. Multi fans out to several reporters. SaveReport
// writes a suite result to disk in the format implied by the file extension.
package reporter
