package config

// Package config provides structures and utilities for managing the burstbuf
// engine configuration.

import (
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/configbinder"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// StateConfig holds configuration for state persistence and recovery.
type StateConfig struct {
	// SaveLocation is the directory holding the checkpoint files.
	SaveLocation string `yaml:"save_location"`
	// FileBaseName is the canonical checkpoint file name; rotation uses
	// "<name>", "<name>.old" and "<name>.new" under SaveLocation.
	FileBaseName string `yaml:"file_base_name"`
	// IgnoreRecoveryErrors requests lenient startup: unreadable checkpoint data
	// is logged and discarded instead of aborting startup. Discarded data is lost.
	IgnoreRecoveryErrors bool `yaml:"ignore_recovery_errors"`
}

// AgentConfig holds configuration for the background polling agent.
type AgentConfig struct {
	// IntervalSeconds is the agent polling period.
	IntervalSeconds int `yaml:"interval_seconds"`
	// StalePurgeCycles is the number of agent intervals after which an
	// allocation that has not been seen is purged by housekeeping. 0 disables
	// stale purging.
	StalePurgeCycles int `yaml:"stale_purge_cycles"`
}

// PoolConfig holds per-pool capacity settings. Pool sections are carried as
// loosely typed maps in the YAML and bound on demand via configbinder.
type PoolConfig struct {
	// CapacityMB is the total capacity of the pool in MB.
	CapacityMB uint64 `yaml:"capacity_mb"`
	// GranularityMB is the allocation granularity of the pool in MB.
	GranularityMB uint64 `yaml:"granularity_mb"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// BurstbufConfig holds all configuration under the "burstbuf" top-level key.
type BurstbufConfig struct {
	// State contains state persistence and recovery settings.
	State StateConfig `yaml:"state"`
	// Agent contains background agent settings.
	Agent AgentConfig `yaml:"agent"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Pools holds per-pool configuration sections, bound via PoolConfigs.
	Pools map[string]interface{} `yaml:"pools"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Burstbuf contains the top-level configuration for the burstbuf engine.
	Burstbuf BurstbufConfig `yaml:"burstbuf"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Burstbuf: BurstbufConfig{
			State: StateConfig{
				SaveLocation: "/var/spool/burstbuf",
				FileBaseName: "burst_buffer_state",
			},
			Agent: AgentConfig{
				IntervalSeconds: 30, // Default polling period.
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
		},
	}
}

// PoolConfigs binds the loosely typed pool sections onto PoolConfig structs.
//
// Returns:
//
//	A map from pool name to its bound configuration, and an error if any
//	section cannot be bound.
func (c *Config) PoolConfigs() (map[string]PoolConfig, error) {
	pools := make(map[string]PoolConfig, len(c.Burstbuf.Pools))
	for name, raw := range c.Burstbuf.Pools {
		props, ok := raw.(map[string]interface{})
		if !ok {
			props = map[string]interface{}{}
		}
		var pc PoolConfig
		if err := configbinder.BindProperties(props, &pc); err != nil {
			return nil, err
		}
		pools[name] = pc
	}
	return pools, nil
}
