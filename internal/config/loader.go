package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ipcrunner/pkg/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the harness configuration from configPath. An empty path
// means DefaultConfigFileName in the current directory, and in that case a
// missing file is not an error. Values in the file override the defaults.
func LoadConfig(configPath string) (HarnessConfig, error) {
	config := GetDefaultConfig()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFileName
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Debug("ConfigLoader", "No %s found, using defaults", configPath)
			return config, nil
		}
		return HarnessConfig{}, NewConfigurationError(configPath, "io", "cannot read configuration file", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return HarnessConfig{}, NewConfigurationErrorWithSuggestions(configPath, "parse", "malformed YAML", err,
			[]string{"durations use Go syntax, e.g. 200ms or 1s"})
	}

	if err := Validate(config); err != nil {
		return HarnessConfig{}, NewConfigurationError(configPath, "validation", "invalid configuration", err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configPath)
	return config, nil
}

// Resolve makes the work directory absolute so that spawned processes and
// artifact lookups agree regardless of the caller's cwd.
func Resolve(config HarnessConfig) (HarnessConfig, error) {
	abs, err := filepath.Abs(config.WorkDir)
	if err != nil {
		return config, fmt.Errorf("failed to resolve workdir %q: %w", config.WorkDir, err)
	}
	config.WorkDir = abs
	return config, nil
}
