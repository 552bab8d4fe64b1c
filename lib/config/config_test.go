// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Ingest.Listen != "0.0.0.0:65437" {
		t.Errorf("expected ingest.listen=0.0.0.0:65437, got %s", cfg.Ingest.Listen)
	}
	if cfg.Ingest.BufferSize != 1024 {
		t.Errorf("expected ingest.buffer_size=1024, got %d", cfg.Ingest.BufferSize)
	}
	if cfg.Store.Timezone != "Asia/Kolkata" {
		t.Errorf("expected store.timezone=Asia/Kolkata, got %s", cfg.Store.Timezone)
	}
	if len(cfg.Feed.Brokers) != 0 {
		t.Errorf("expected the feed to be disabled by default, got brokers %v", cfg.Feed.Brokers)
	}
}

func TestLoad_RequiresPlantwatchConfig(t *testing.T) {
	t.Setenv("PLANTWATCH_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when PLANTWATCH_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "PLANTWATCH_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithPlantwatchConfig(t *testing.T) {
	path := writeConfig(t, "plantwatch.yaml", `
environment: production
store:
  path: /var/lib/plantwatch/readings.db
`)
	t.Setenv("PLANTWATCH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}
	if cfg.Store.Path != "/var/lib/plantwatch/readings.db" {
		t.Errorf("expected store.path from file, got %s", cfg.Store.Path)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "plantwatch.yaml", `
environment: development

ingest:
  listen: 127.0.0.1:7000
  buffer_size: 2048
  max_sessions: 512
  read_timeout: 45s
  reuse_port: true

store:
  path: /data/readings.db
  pool_size: 8
  timezone: UTC
  synchronous: NORMAL

cache:
  warm_on_start: true

query:
  socket_path: /run/plantwatch/query.sock

api:
  listen: 127.0.0.1:9090

feed:
  brokers: [kafka-1:9092, kafka-2:9092]
  topic: plant.readings

log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Ingest.Listen != "127.0.0.1:7000" || cfg.Ingest.BufferSize != 2048 || cfg.Ingest.MaxSessions != 512 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Ingest.ReadTimeout != 45*time.Second {
		t.Errorf("expected read_timeout=45s, got %v", cfg.Ingest.ReadTimeout)
	}
	if !cfg.Ingest.ReusePort {
		t.Error("expected reuse_port=true")
	}
	if cfg.Store.PoolSize != 8 || cfg.Store.Timezone != "UTC" || cfg.Store.Synchronous != "NORMAL" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.Cache.WarmOnStart {
		t.Error("expected warm_on_start=true")
	}
	if cfg.Query.SocketPath != "/run/plantwatch/query.sock" {
		t.Errorf("expected socket_path from file, got %s", cfg.Query.SocketPath)
	}
	if cfg.API.Listen != "127.0.0.1:9090" {
		t.Errorf("expected api.listen from file, got %s", cfg.API.Listen)
	}
	if len(cfg.Feed.Brokers) != 2 || cfg.Feed.Topic != "plant.readings" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	// Unset keys keep their defaults.
	if cfg.Feed.Buffer != 1024 {
		t.Errorf("expected feed.buffer default 1024, got %d", cfg.Feed.Buffer)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected log.format default text, got %s", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_ZeroIngestLimits(t *testing.T) {
	path := writeConfig(t, "plantwatch.yaml", `
ingest:
  max_sessions: 0
  read_timeout: 0s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Ingest.MaxSessions != 0 {
		t.Errorf("expected max_sessions=0 (unbounded), got %d", cfg.Ingest.MaxSessions)
	}
	if cfg.Ingest.ReadTimeout != 0 {
		t.Errorf("expected read_timeout=0 (no deadline), got %v", cfg.Ingest.ReadTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected zero ingest limits: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "plantwatch.jsonc", `{
  // Bench setup.
  "environment": "development",
  "ingest": {
    "listen": "127.0.0.1:7001",
    "read_timeout": "5s", // short for the bench
  },
  /* no broker on the bench */
  "store": {"path": "/tmp/bench.db"},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Ingest.Listen != "127.0.0.1:7001" {
		t.Errorf("expected ingest.listen from jsonc, got %s", cfg.Ingest.Listen)
	}
	if cfg.Ingest.ReadTimeout != 5*time.Second {
		t.Errorf("expected read_timeout=5s, got %v", cfg.Ingest.ReadTimeout)
	}
	if cfg.Store.Path != "/tmp/bench.db" {
		t.Errorf("expected store.path from jsonc, got %s", cfg.Store.Path)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	path := writeConfig(t, "broken.yaml", "ingest: [unterminated\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "plantwatch.yaml", `
environment: production

store:
  path: /default/readings.db

development:
  store:
    path: /dev/readings.db

production:
  store:
    path: /prod/readings.db
    synchronous: NORMAL
  feed:
    brokers: [kafka:9092]
  log:
    format: json
    level: warn
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Store.Path != "/prod/readings.db" {
		t.Errorf("expected store.path=/prod/readings.db, got %s", cfg.Store.Path)
	}
	if cfg.Store.Synchronous != "NORMAL" {
		t.Errorf("expected synchronous=NORMAL, got %s", cfg.Store.Synchronous)
	}
	if len(cfg.Feed.Brokers) != 1 || cfg.Feed.Brokers[0] != "kafka:9092" {
		t.Errorf("expected production brokers, got %v", cfg.Feed.Brokers)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "warn" {
		t.Errorf("log = %+v", cfg.Log)
	}
	// Untouched keys survive the override.
	if cfg.Store.PoolSize != 4 {
		t.Errorf("expected pool_size=4, got %d", cfg.Store.PoolSize)
	}
}

func TestProductionDefaultsToJSONLogs(t *testing.T) {
	path := writeConfig(t, "plantwatch.yaml", "environment: production\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log.format=json in production, got %s", cfg.Log.Format)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("PLANTWATCH_STORE_PATH", "/env/readings.db")
	t.Setenv("PLANTWATCH_ENVIRONMENT", "production")

	path := writeConfig(t, "plantwatch.yaml", `
environment: development
store:
  path: /file/readings.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}
	if cfg.Store.Path != "/file/readings.db" {
		t.Errorf("expected store.path from file, got %s (env vars should not override)", cfg.Store.Path)
	}
}

func TestPathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/operator")
	t.Setenv("XDG_RUNTIME_DIR", "")

	path := writeConfig(t, "plantwatch.yaml", "environment: development\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Store.Path != "/home/operator/.cache/plantwatch/readings.db" {
		t.Errorf("store.path = %s", cfg.Store.Path)
	}
	if cfg.Query.SocketPath != "/tmp/plantwatch/query.sock" {
		t.Errorf("query.socket_path = %s", cfg.Query.SocketPath)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/plantwatch",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/plantwatch",
		},
		{
			input:    "${PLANTWATCH_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid environment", func(c *Config) { c.Environment = "staging" }, true},
		{"empty ingest listen", func(c *Config) { c.Ingest.Listen = "" }, true},
		{"zero buffer", func(c *Config) { c.Ingest.BufferSize = 0 }, true},
		{"unbounded sessions", func(c *Config) { c.Ingest.MaxSessions = 0 }, false},
		{"negative max sessions", func(c *Config) { c.Ingest.MaxSessions = -1 }, true},
		{"no read deadline", func(c *Config) { c.Ingest.ReadTimeout = 0 }, false},
		{"negative read timeout", func(c *Config) { c.Ingest.ReadTimeout = -time.Second }, true},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, true},
		{"zero pool", func(c *Config) { c.Store.PoolSize = 0 }, true},
		{"unknown timezone", func(c *Config) { c.Store.Timezone = "Mars/Olympus_Mons" }, true},
		{"lowercase synchronous", func(c *Config) { c.Store.Synchronous = "normal" }, false},
		{"invalid synchronous", func(c *Config) { c.Store.Synchronous = "SOMETIMES" }, true},
		{"empty socket path", func(c *Config) { c.Query.SocketPath = "" }, true},
		{"brokers without topic", func(c *Config) {
			c.Feed.Brokers = []string{"kafka:9092"}
			c.Feed.Topic = ""
		}, true},
		{"empty topic without brokers", func(c *Config) { c.Feed.Topic = "" }, false},
		{"invalid log level", func(c *Config) { c.Log.Level = "chatty" }, true},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Ingest.Listen = ""
	cfg.Store.Path = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"ingest.listen", "store.path", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	location, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	_, offset := time.Date(2026, 3, 2, 0, 0, 0, 0, location).Zone()
	if offset != 5*60*60+30*60 {
		t.Errorf("Asia/Kolkata offset = %d, want 19800", offset)
	}
}

func TestSlogLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := LogConfig{Level: input}.SlogLevel()
		if err != nil {
			t.Errorf("SlogLevel(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Store.Path = filepath.Join(tmpDir, "data", "readings.db")
	cfg.Query.SocketPath = filepath.Join(tmpDir, "run", "query.sock")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{filepath.Join(tmpDir, "data"), filepath.Join(tmpDir, "run")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
