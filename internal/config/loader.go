package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"coherence/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/coherence"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
// A missing file is not an error. A relative scenarioPath is resolved
// against configPath.
func LoadConfig(configPath string) (CoherenceConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			config.ScenarioPath = filepath.Join(configPath, DefaultScenarioDir)
			return config, nil
		}
		return CoherenceConfig{}, NewConfigurationError(configFilePath, "io", err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return CoherenceConfig{}, NewConfigurationErrorWithDetails(configFilePath, "parse", "malformed YAML", err.Error(),
			[]string{"Durations are written as Go duration strings, e.g. 250ms or 1m30s"})
	}

	switch {
	case config.ScenarioPath == "":
		config.ScenarioPath = filepath.Join(configPath, DefaultScenarioDir)
	case !filepath.IsAbs(config.ScenarioPath):
		config.ScenarioPath = filepath.Join(configPath, config.ScenarioPath)
	}

	if errs := Validate(config); errs.HasErrors() {
		return CoherenceConfig{}, NewConfigurationErrorWithDetails(configFilePath, "validation", "invalid configuration", errs.Error(), nil)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
