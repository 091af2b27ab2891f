package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/logger"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// maxConfigFileSize caps how much of a config file is read
const maxConfigFileSize = 10 * 1024 * 1024

// GlobalConfig contains all configuration sections for the agent
type GlobalConfig struct {
	LogConfig          logger.FileLogConfig `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	SamplerConfig      SamplerConfig        `json:"sampler_config,omitempty" yaml:"sampler_config,omitempty"`
	CensusConfig       CensusConfig         `json:"census_config,omitempty" yaml:"census_config,omitempty"`
	ProfileConfig      ProfileConfig        `json:"profile_config,omitempty" yaml:"profile_config,omitempty"`
	AlertConfig        AlertConfig          `json:"alert_config,omitempty" yaml:"alert_config,omitempty"`
	NotificationConfig NotificationConfig   `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	StorageConfig      StorageConfig        `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	UpdateConfig       UpdateConfig         `json:"update_config,omitempty" yaml:"update_config,omitempty"`
	APIConfig          APIConfig            `json:"api_config,omitempty" yaml:"api_config,omitempty"`
	SelfGuardConfig    SelfGuardConfig      `json:"self_guard_config,omitempty" yaml:"self_guard_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:          logger.NewDefaultFileLogConfig(),
		SamplerConfig:      NewDefaultSamplerConfig(),
		CensusConfig:       NewDefaultCensusConfig(),
		ProfileConfig:      NewDefaultProfileConfig(),
		AlertConfig:        NewDefaultAlertConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		UpdateConfig:       NewDefaultUpdateConfig(),
		APIConfig:          NewDefaultAPIConfig(),
		SelfGuardConfig:    NewDefaultSelfGuardConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// It determines the config file path using GetConfigPath, supports both JSON and YAML formats.
// YAML is used if the file extension is .yaml or .yml.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if providedPath != "" && !fileExists(providedPath) {
		return nil, errors.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		logger.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := loadConfigFileContent(filePath)
	if err != nil {
		return nil, errors.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errors.WrapError(err, "failed to parse config content")
	}

	logger.Debug().Str("path", filePath).Msg("Loaded config file")
	return cfg, nil
}

// loadConfigFileContent reads the config file, refusing oversized files
func loadConfigFileContent(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, errors.NewValidationError("config_file", filePath, "config file too large")
	}
	return os.ReadFile(filePath)
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if isYAMLFile(ext) {
		return parseYAMLConfig(data, filePath, cfg)
	}
	return parseJSONConfig(data, filePath, cfg)
}

// isYAMLFile checks if the file extension indicates a YAML file
func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}

// parseYAMLConfig parses YAML configuration
func parseYAMLConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
	}
	return nil
}

// parseJSONConfig parses JSON configuration
func parseJSONConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}
