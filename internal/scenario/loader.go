package scenario

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"coherence/pkg/logging"

	"gopkg.in/yaml.v3"
)

const loaderSubsystem = "ScenarioLoader"

// Loader reads scenarios from YAML files.
type Loader struct{}

// NewLoader creates a scenario loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadScenarios loads scenarios from a file or, recursively, from every
// .yaml and .yml file below a directory. Scenario names must be unique.
func (l *Loader) LoadScenarios(path string) ([]Scenario, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario path does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario path: %w", err)
	}

	logging.Debug(loaderSubsystem, "Loading scenarios from %s", path)

	var scenarios []Scenario
	if info.IsDir() {
		scenarios, err = l.loadScenariosFromDirectory(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenarios from directory: %w", err)
		}
	} else {
		scenario, err := l.LoadScenarioFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}

	seen := make(map[string]string, len(scenarios))
	for _, s := range scenarios {
		if other, exists := seen[s.Name]; exists {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", s.Name, other, s.SourcePath)
		}
		seen[s.Name] = s.SourcePath
	}

	logging.Debug(loaderSubsystem, "Loaded %d scenarios", len(scenarios))
	return scenarios, nil
}

func (l *Loader) loadScenariosFromDirectory(dirPath string) ([]Scenario, error) {
	var scenarios []Scenario

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsYAMLFile(path) {
			return nil
		}

		scenario, err := l.LoadScenarioFile(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, scenario)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return scenarios, nil
}

// LoadScenarioFile loads a single scenario from a YAML file.
func (l *Loader) LoadScenarioFile(filePath string) (Scenario, error) {
	var scenario Scenario

	content, err := os.ReadFile(filePath)
	if err != nil {
		return scenario, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(content, &scenario); err != nil {
		return scenario, fmt.Errorf("failed to parse YAML in %s: %w", filePath, err)
	}
	scenario.SourcePath = filePath

	if scenario.Name == "" {
		return scenario, fmt.Errorf("invalid scenario in %s: scenario name is required", filePath)
	}
	if len(scenario.Steps) == 0 {
		return scenario, fmt.Errorf("invalid scenario in %s: scenario must have at least one step", filePath)
	}

	logging.Debug(loaderSubsystem, "Loaded scenario %s (%d steps) from %s", scenario.Name, len(scenario.Steps), filePath)
	return scenario, nil
}

// IsYAMLFile checks if a file has a YAML extension
func IsYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Filter selects scenarios by name and tags.
type Filter struct {
	// Name matches scenario names exactly or as a shell glob
	Name string
	// Tags keeps scenarios carrying at least one of the tags
	Tags []string
}

// FilterScenarios returns the scenarios matching filter, in order.
func FilterScenarios(scenarios []Scenario, filter Filter) []Scenario {
	var filtered []Scenario

	for _, s := range scenarios {
		if filter.Name != "" && !matchName(filter.Name, s.Name) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(s, filter.Tags) {
			continue
		}
		filtered = append(filtered, s)
	}

	logging.Debug(loaderSubsystem, "Filtered %d scenarios to %d", len(scenarios), len(filtered))
	return filtered
}

// Names returns the names of scenarios, in order.
func Names(scenarios []Scenario) []string {
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	return names
}

func matchName(pattern, name string) bool {
	if pattern == name {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

func hasAnyTag(s Scenario, tags []string) bool {
	for _, tag := range tags {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}
