package config

import (
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application
// configuration from various sources, including YAML files and environment
// variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Defaults come from NewConfig().

	// 2. Expand ${VAR} placeholders in the embedded YAML before parsing, so
	// deployment-specific paths can be injected through the environment.
	expander := NewOsEnvironmentExpander()
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBufferError(moduleName, "failed to expand environment variables in embedded config", err)
	}

	// 3. Parse the expanded YAML into a temporary Config and merge it over the
	// defaults, so absent keys keep their default values.
	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBufferError(moduleName, "failed to unmarshal embedded config", err)
	}
	mergeConfig(cfg, &yamlConfig)

	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeBurstbufConfig(&destConfig.Burstbuf, &sourceConfig.Burstbuf)
}

// mergeBurstbufConfig merges source into dest.
func mergeBurstbufConfig(dest, source *BurstbufConfig) {
	// Merge StateConfig
	if source.State.SaveLocation != "" {
		dest.State.SaveLocation = source.State.SaveLocation
	}
	if source.State.FileBaseName != "" {
		dest.State.FileBaseName = source.State.FileBaseName
	}
	if source.State.IgnoreRecoveryErrors {
		dest.State.IgnoreRecoveryErrors = true
	}

	// Merge AgentConfig
	if source.Agent.IntervalSeconds != 0 {
		dest.Agent.IntervalSeconds = source.Agent.IntervalSeconds
	}
	if source.Agent.StalePurgeCycles != 0 {
		dest.Agent.StalePurgeCycles = source.Agent.StalePurgeCycles
	}

	// Merge SystemConfig
	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	// Merge pool sections wholesale; per-pool keys are bound later.
	if source.Pools != nil {
		dest.Pools = source.Pools
	}
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults and merging
// from embedded YAML, then sets the global logger level.
//
// Parameters:
//
//	params: ConfigParams containing dependencies like embedded config and env file path.
//
// Returns:
//
//	A pointer to the initialized Config and an error if configuration loading fails.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, exception.NewBufferError(moduleName, "failed to load configuration", err)
	}

	// Set log level
	logger.SetLogLevel(cfg.Burstbuf.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Burstbuf.System.Logging.Level)

	// Validate pool sections early so a malformed pool fails startup, not a
	// later capacity query.
	if _, err := cfg.PoolConfigs(); err != nil {
		return nil, exception.NewBufferError(moduleName, "failed to bind pool configuration", err)
	}

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// AgentInterval returns the agent polling period as a time.Duration.
func (c *Config) AgentInterval() time.Duration {
	return time.Duration(c.Burstbuf.Agent.IntervalSeconds) * time.Second
}
