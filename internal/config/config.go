// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/driftline-dev/driftline/internal/state"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// Config is the top-level driftline configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Classify ClassifyConfig `mapstructure:"classify"`
	States   StatesConfig   `mapstructure:"states"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// ServerConfig controls how the local capture API listens.
type ServerConfig struct {
	Listen         string   `mapstructure:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects the signal store backend and its location.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// ClassifyConfig tunes the classification pipeline.
type ClassifyConfig struct {
	// Threshold is the minimum centroid similarity for a match; a score
	// exactly equal to the threshold matches.
	Threshold float64 `mapstructure:"threshold"`
	// StoreUnclassified keeps captures that matched no subspace.
	StoreUnclassified bool `mapstructure:"store_unclassified"`
}

// StatesConfig sets the evidence bands for subspace state derivation.
type StatesConfig struct {
	Discovered float64 `mapstructure:"discovered"`
	Engaged    float64 `mapstructure:"engaged"`
	Saturated  float64 `mapstructure:"saturated"`
}

// Bands converts the configured thresholds to state bands.
func (s StatesConfig) Bands() state.Bands {
	return state.Bands{
		Discovered: s.Discovered,
		Engaged:    s.Engaged,
		Saturated:  s.Saturated,
	}
}

// SyncConfig tunes the offline-first sync queue.
type SyncConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	ScheduleDelay time.Duration `mapstructure:"schedule_delay"`
	Interval      time.Duration `mapstructure:"interval"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
}

// BackendConfig holds remote backend connection settings. Token may be a
// literal value or a keyring://service/key URI.
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// CatalogConfig locates the space/subspace catalog file.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
	// RefreshFromBackend overlays backend catalog definitions at startup
	// when a backend base_url is configured.
	RefreshFromBackend bool `mapstructure:"refresh_from_backend"`
}

// CleanupConfig controls eviction of old synced signals.
type CleanupConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix DRIFTLINE_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dlerr.Errorf(dlerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dlerr.Errorf(dlerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// SetupEnv binds DRIFTLINE_-prefixed environment variables to config keys,
// replacing dots with underscores (server.listen → DRIFTLINE_SERVER_LISTEN).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("DRIFTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every config default on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:18600")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "")
	v.SetDefault("classify.threshold", 0.15)
	v.SetDefault("classify.store_unclassified", false)
	v.SetDefault("states.discovered", 1.0)
	v.SetDefault("states.engaged", 3.0)
	v.SetDefault("states.saturated", 6.0)
	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("sync.schedule_delay", 30*time.Second)
	v.SetDefault("sync.interval", time.Minute)
	v.SetDefault("sync.initial_delay", 5*time.Second)
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.cooldown", 30*time.Second)
	v.SetDefault("catalog.refresh_from_backend", true)
	v.SetDefault("cleanup.max_age", 30*24*time.Hour)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateClassify()...)
	errs = append(errs, c.validateStates()...)
	errs = append(errs, c.validateSync()...)
	errs = append(errs, c.validateBackend()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	_ = host // host can be empty (e.g., ":8080"), which is valid
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateClassify() []error {
	var errs []error

	if c.Classify.Threshold < 0 || c.Classify.Threshold > 1 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: classify.threshold must be between 0 and 1, got %g",
			c.Classify.Threshold,
		))
	}

	return errs
}

func (c *Config) validateStates() []error {
	if err := c.States.Bands().Validate(); err != nil {
		return []error{dlerr.Wrap(err, dlerr.CodeConfigValidateInvalidValue, "config: states")}
	}
	return nil
}

func (c *Config) validateSync() []error {
	var errs []error

	if c.Sync.BatchSize <= 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: sync.batch_size must be greater than 0, got %d", c.Sync.BatchSize))
	}
	if c.Sync.ScheduleDelay <= 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: sync.schedule_delay must be greater than 0, got %s", c.Sync.ScheduleDelay))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: sync.interval must be greater than 0, got %s", c.Sync.Interval))
	}
	if c.Sync.InitialDelay <= 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: sync.initial_delay must be greater than 0, got %s", c.Sync.InitialDelay))
	}

	return errs
}

func (c *Config) validateBackend() []error {
	var errs []error

	if c.Backend.Timeout < 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: backend.timeout must not be negative, got %s", c.Backend.Timeout))
	}
	if c.Backend.Cooldown < 0 {
		errs = append(errs, dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"config: backend.cooldown must not be negative, got %s", c.Backend.Cooldown))
	}

	return errs
}
