package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coherence/internal/runner"
	"coherence/pkg/logging"

	"sigs.k8s.io/yaml"
)

const subsystem = "Reporter"

// Format selects how a suite result is encoded.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want console, json or yaml)", name)
	}
}

// Encoded writes nothing while the suite runs and the encoded suite result
// once it completes.
type Encoded struct {
	mu     sync.Mutex
	out    io.Writer
	format Format
}

var _ runner.Reporter = (*Encoded)(nil)

// NewJSON creates a reporter printing the suite result as indented JSON.
func NewJSON(out io.Writer) *Encoded {
	return &Encoded{out: out, format: FormatJSON}
}

// NewYAML creates a reporter printing the suite result as YAML.
func NewYAML(out io.Writer) *Encoded {
	return &Encoded{out: out, format: FormatYAML}
}

func (e *Encoded) ReportStart(string, int) {}

func (e *Encoded) ReportScenarioResult(runner.ScenarioResult) {}

func (e *Encoded) ReportSuiteResult(suite runner.SuiteResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := Encode(e.format, suite)
	if err != nil {
		logging.Error(subsystem, err, "Failed to encode suite result")
		return
	}
	if _, err := e.out.Write(data); err != nil {
		logging.Error(subsystem, err, "Failed to write suite result")
	}
}

// Encode renders suite in format. YAML output uses the JSON field names.
func Encode(format Format, suite runner.SuiteResult) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(suite, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(suite)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report to YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("format %q cannot be encoded", format)
	}
}

// New creates the reporter printing to out in format.
func New(format Format, out io.Writer, opts ConsoleOptions) (runner.Reporter, error) {
	switch format {
	case FormatConsole:
		return NewConsole(out, opts), nil
	case FormatJSON:
		return NewJSON(out), nil
	case FormatYAML:
		return NewYAML(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// SaveReport writes suite to path as JSON (.json) or YAML (.yaml, .yml),
// creating parent directories as needed.
func SaveReport(path string, suite runner.SuiteResult) error {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return fmt.Errorf("cannot infer report format from %s: use a .json, .yaml or .yml extension", path)
	}

	data, err := Encode(format, suite)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	logging.Debug(subsystem, "Report for run %s saved to %s", suite.RunID, path)
	return nil
}
