// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	// Plant gateways often ship without a zoneinfo database.
	_ "time/tzdata"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for a workstation or a test bench.
	Development Environment = "development"
	// Production is for the plant-floor deployment.
	Production Environment = "production"
)

// Config is the master configuration for the Plantwatch service.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	Ingest IngestConfig `yaml:"ingest"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Query  QueryConfig  `yaml:"query"`
	API    APIConfig    `yaml:"api"`
	Feed   FeedConfig   `yaml:"feed"`
	Log    LogConfig    `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Only non-zero values override.
type ConfigOverrides struct {
	Ingest *IngestConfig `yaml:"ingest,omitempty"`
	Store  *StoreConfig  `yaml:"store,omitempty"`
	Query  *QueryConfig  `yaml:"query,omitempty"`
	API    *APIConfig    `yaml:"api,omitempty"`
	Feed   *FeedConfig   `yaml:"feed,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// IngestConfig configures the machine-facing TCP listener.
type IngestConfig struct {
	// Listen is the TCP address machines connect to.
	// Default: 0.0.0.0:65437
	Listen string `yaml:"listen"`

	// BufferSize is the largest message accepted, in bytes. A message
	// is whatever a single read returns, so this is also the read size.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// MaxSessions caps concurrently open connections. Zero means
	// unbounded.
	// Default: 256
	MaxSessions int `yaml:"max_sessions"`

	// ReadTimeout bounds how long a connection may stay silent.
	// Zero disables the deadline.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ReusePort sets SO_REUSEPORT on the listening socket so a new
	// process can bind while the old one drains.
	ReusePort bool `yaml:"reuse_port"`
}

// StoreConfig configures the SQLite reading store.
type StoreConfig struct {
	// Path is the database file.
	// Default: ${HOME}/.cache/plantwatch/readings.db
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// Timezone is the IANA zone ingestion timestamps are recorded in.
	// Default: Asia/Kolkata
	Timezone string `yaml:"timezone"`

	// Synchronous is the SQLite synchronous pragma, FULL or NORMAL.
	// Default: FULL
	Synchronous string `yaml:"synchronous"`
}

// CacheConfig configures the latest-state cache.
type CacheConfig struct {
	// WarmOnStart seeds the cache from the newest stored reading of
	// each machine before the listener opens.
	WarmOnStart bool `yaml:"warm_on_start"`
}

// QueryConfig configures the local query socket.
type QueryConfig struct {
	// SocketPath is the Unix socket the CLI talks to.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/plantwatch/query.sock
	SocketPath string `yaml:"socket_path"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Listen is the HTTP address. Empty disables the API.
	// Default: :8080
	Listen string `yaml:"listen"`
}

// FeedConfig configures the Kafka fan-out of stored readings.
type FeedConfig struct {
	// Brokers lists Kafka bootstrap addresses. Empty disables the feed.
	Brokers []string `yaml:"brokers"`

	// Topic receives one message per stored reading, keyed by
	// machine_id.
	// Default: plantwatch.readings
	Topic string `yaml:"topic"`

	// Buffer is how many readings may wait for the broker before new
	// ones are dropped.
	// Default: 1024
	Buffer int `yaml:"buffer"`
}

// LogConfig configures the service logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Ingest: IngestConfig{
			Listen:      "0.0.0.0:65437",
			BufferSize:  1024,
			MaxSessions: 256,
			ReadTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path:        "${HOME}/.cache/plantwatch/readings.db",
			PoolSize:    4,
			Timezone:    "Asia/Kolkata",
			Synchronous: "FULL",
		},
		Query: QueryConfig{
			SocketPath: "${XDG_RUNTIME_DIR:-/tmp}/plantwatch/query.sock",
		},
		API: APIConfig{
			Listen: ":8080",
		},
		Feed: FeedConfig{
			Topic:  "plantwatch.readings",
			Buffer: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the PLANTWATCH_CONFIG environment
// variable. There is no fallback: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PLANTWATCH_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PLANTWATCH_CONFIG environment variable not set; " +
			"set it to the path of your plantwatch.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// only reach the config through ${VAR} expansion in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into c. Files ending in
// .jsonc have comments and trailing commas stripped first; the result
// is JSON, which the YAML decoder accepts as-is.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if o := overrides.Ingest; o != nil {
		if o.Listen != "" {
			c.Ingest.Listen = o.Listen
		}
		if o.BufferSize != 0 {
			c.Ingest.BufferSize = o.BufferSize
		}
		if o.MaxSessions != 0 {
			c.Ingest.MaxSessions = o.MaxSessions
		}
		if o.ReadTimeout != 0 {
			c.Ingest.ReadTimeout = o.ReadTimeout
		}
		if o.ReusePort {
			c.Ingest.ReusePort = true
		}
	}

	if o := overrides.Store; o != nil {
		if o.Path != "" {
			c.Store.Path = o.Path
		}
		if o.PoolSize != 0 {
			c.Store.PoolSize = o.PoolSize
		}
		if o.Timezone != "" {
			c.Store.Timezone = o.Timezone
		}
		if o.Synchronous != "" {
			c.Store.Synchronous = o.Synchronous
		}
	}

	if o := overrides.Query; o != nil && o.SocketPath != "" {
		c.Query.SocketPath = o.SocketPath
	}

	if o := overrides.API; o != nil && o.Listen != "" {
		c.API.Listen = o.Listen
	}

	if o := overrides.Feed; o != nil {
		if len(o.Brokers) > 0 {
			c.Feed.Brokers = o.Brokers
		}
		if o.Topic != "" {
			c.Feed.Topic = o.Topic
		}
		if o.Buffer != 0 {
			c.Feed.Buffer = o.Buffer
		}
	}

	if o := overrides.Log; o != nil {
		if o.Level != "" {
			c.Log.Level = o.Level
		}
		if o.Format != "" {
			c.Log.Format = o.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Query.SocketPath = expandVars(c.Query.SocketPath, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Ingest.Listen == "" {
		errs = append(errs, fmt.Errorf("ingest.listen is required"))
	}
	if c.Ingest.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.buffer_size must be positive, got %d", c.Ingest.BufferSize))
	}
	if c.Ingest.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("ingest.max_sessions must not be negative (0 means unbounded), got %d", c.Ingest.MaxSessions))
	}
	if c.Ingest.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("ingest.read_timeout must not be negative (0 disables it), got %v", c.Ingest.ReadTimeout))
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must be positive, got %d", c.Store.PoolSize))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	synchronousValues := []string{"FULL", "NORMAL"}
	if !contains(synchronousValues, strings.ToUpper(c.Store.Synchronous)) {
		errs = append(errs, fmt.Errorf("store.synchronous must be one of: %v", synchronousValues))
	}

	if c.Query.SocketPath == "" {
		errs = append(errs, fmt.Errorf("query.socket_path is required"))
	}

	if len(c.Feed.Brokers) > 0 {
		if c.Feed.Topic == "" {
			errs = append(errs, fmt.Errorf("feed.topic is required when feed.brokers is set"))
		}
		if c.Feed.Buffer <= 0 {
			errs = append(errs, fmt.Errorf("feed.buffer must be positive, got %d", c.Feed.Buffer))
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: [text json]"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location resolves store.timezone.
func (c *Config) Location() (*time.Location, error) {
	location, err := time.LoadLocation(c.Store.Timezone)
	if err != nil {
		return nil, fmt.Errorf("store.timezone %q: %w", c.Store.Timezone, err)
	}
	return location, nil
}

// SlogLevel parses log.level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: want debug, info, warn, or error", l.Level)
	}
	return level, nil
}

// EnsurePaths creates the directories holding the database and the
// query socket.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Store.Path, c.Query.SocketPath} {
		if path == "" {
			continue
		}
		directory := filepath.Dir(path)
		if err := os.MkdirAll(directory, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
