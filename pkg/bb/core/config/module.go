// Package config provides core configuration structures and utilities for the burstbuf engine.
// This module defines Fx providers for configuration-related components.
package config

import "go.uber.org/fx"

// NewStateConfigProvider extracts and provides *StateConfig from *Config.
// This allows persistence components to depend only on the state configuration.
func NewStateConfigProvider(cfg *Config) *StateConfig {
	return &cfg.Burstbuf.State
}

// NewAgentConfigProvider extracts and provides *AgentConfig from *Config.
func NewAgentConfigProvider(cfg *Config) *AgentConfig {
	return &cfg.Burstbuf.Agent
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewStateConfigProvider),
	fx.Provide(NewAgentConfigProvider),
	// Provides an instance of EnvironmentExpander (specifically OsEnvironmentExpander)
	// as the EnvironmentExpander interface, making it available for dependency injection.
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
