// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the ToolBridge server configuration.
//
// All environment-derived settings are collected into one explicit Config
// struct at startup and passed into component constructors, so the protocol
// engine is testable without process-wide environment mutation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when the environment does not override them.
const (
	DefaultListenAddress        = "127.0.0.1:8090"
	DefaultStateTTL             = 10 * time.Minute
	DefaultAPIKeyPrefix         = "tbk_"
	DefaultAPIKeyBytes          = 32
	DefaultHTTPTimeout          = 5 * time.Second
	DefaultIntrospectionTimeout = 10 * time.Second
	DefaultDatabasePath         = "toolbridge.db"
)

// Config holds the full server configuration.
type Config struct {
	// ListenAddress is the host:port the API server binds to.
	ListenAddress string `mapstructure:"listen_address"`

	// RedirectBaseURL is the externally reachable base URL of this server,
	// used to build the OAuth redirect URI registered with providers.
	RedirectBaseURL string `mapstructure:"redirect_base_url"`

	// StateSigningKey is the HMAC key protecting the state token carried
	// through the browser redirect. Must be at least 32 bytes.
	StateSigningKey string `mapstructure:"state_signing_key"`

	// StateTTL is the lifetime of an in-flight authorization attempt.
	StateTTL time.Duration `mapstructure:"state_ttl"`

	// APIKeyPrefix is the fixed prefix of issued opaque API keys.
	APIKeyPrefix string `mapstructure:"api_key_prefix"`

	// APIKeyBytes is the number of random bytes in issued API keys.
	APIKeyBytes int `mapstructure:"api_key_bytes"`

	// HTTPTimeout bounds discovery, registration, and token exchange calls.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// IntrospectionTimeout bounds tool-listing calls to target servers,
	// which depend on a third party's responsiveness.
	IntrospectionTimeout time.Duration `mapstructure:"introspection_timeout"`

	// DatabasePath is the SQLite database file. ":memory:" is accepted for
	// ephemeral deployments.
	DatabasePath string `mapstructure:"database_path"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from the environment (TOOLBRIDGE_* variables) and
// an optional config file path, applying defaults for unset values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOOLBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("state_ttl", DefaultStateTTL)
	v.SetDefault("api_key_prefix", DefaultAPIKeyPrefix)
	v.SetDefault("api_key_bytes", DefaultAPIKeyBytes)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("introspection_timeout", DefaultIntrospectionTimeout)
	v.SetDefault("database_path", DefaultDatabasePath)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.RedirectBaseURL == "" {
		return fmt.Errorf("redirect_base_url is required")
	}
	if len(c.StateSigningKey) < 32 {
		return fmt.Errorf("state_signing_key must be at least 32 bytes")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("state_ttl must be positive")
	}
	if c.APIKeyBytes < 16 {
		return fmt.Errorf("api_key_bytes must be at least 16")
	}
	if c.APIKeyPrefix == "" {
		return fmt.Errorf("api_key_prefix is required")
	}
	return nil
}

// RedirectURI returns the OAuth callback URL registered with providers.
func (c *Config) RedirectURI() string {
	return strings.TrimSuffix(c.RedirectBaseURL, "/") + "/api/v1/oauth/callback"
}
