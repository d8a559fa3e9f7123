// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ticketd/lib/snapshot"
	"github.com/bureau-foundation/ticketd/lib/userstore"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "TICKETD_CONFIG"

// minFrameSize keeps max_frame_size above the size of any small
// request.
const minFrameSize = 1024

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the complete ticketd configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// DataDir is the base directory for the user database and the
	// snapshot. Other paths may refer to it as ${TICKETD_DATA}.
	DataDir string `yaml:"data_dir"`

	Server   ServerConfig   `yaml:"server"`
	Users    UsersConfig    `yaml:"users"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server   *ServerConfig   `yaml:"server,omitempty"`
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty"`
	Logging  *LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig configures the TCP listener and the worker pool.
type ServerConfig struct {
	// Listen is the host:port to bind. Default: :4093
	Listen string `yaml:"listen"`

	// Workers is the number of goroutines running request cycles.
	Workers int `yaml:"workers"`

	// QueueSize bounds readable connections waiting for a worker.
	QueueSize int `yaml:"queue_size"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFrameSize bounds one request in bytes.
	MaxFrameSize int `yaml:"max_frame_size"`

	// Admins may clear the whole collection.
	Admins []string `yaml:"admins"`
}

// UsersConfig configures the SQLite user store.
type UsersConfig struct {
	Database string               `yaml:"database"`
	PoolSize int                  `yaml:"pool_size"`
	Argon2   userstore.HashParams `yaml:"argon2"`
}

// SnapshotConfig configures collection persistence.
type SnapshotConfig struct {
	Path string `yaml:"path"`

	// Compression is none, zstd, or lz4.
	Compression string `yaml:"compression"`

	// AgeRecipients enables encryption when non-empty.
	AgeRecipients []string `yaml:"age_recipients"`

	// AgeIdentityFile holds the identity that decrypts the snapshot.
	// Required when AgeRecipients is set.
	AgeIdentityFile string `yaml:"age_identity_file"`

	// AutosaveInterval saves periodically when positive.
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port for /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		DataDir:     "${HOME}/.local/share/ticketd",
		Server: ServerConfig{
			Listen:       ":4093",
			Workers:      8,
			QueueSize:    64,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxFrameSize: 16 << 20,
		},
		Users: UsersConfig{
			Database: "${TICKETD_DATA}/users.db",
			PoolSize: 4,
			Argon2:   userstore.DefaultHashParams(),
		},
		Snapshot: SnapshotConfig{
			Path:        "${TICKETD_DATA}/tickets.snapshot",
			Compression: string(snapshot.CompressionZstd),
		},
		Logging: LoggingConfig{Level: "debug"},
	}
}

// Load loads configuration from the path in TICKETD_CONFIG. There is
// no search path: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your ticketd.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files ending
// in .json or .jsonc may contain comments and trailing commas.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
// Production without a section of its own gets quieter logging.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{Logging: &LoggingConfig{Level: "info"}}
		}
	}
	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		if server.Listen != "" {
			c.Server.Listen = server.Listen
		}
		if server.Workers != 0 {
			c.Server.Workers = server.Workers
		}
		if server.QueueSize != 0 {
			c.Server.QueueSize = server.QueueSize
		}
		if server.ReadTimeout != 0 {
			c.Server.ReadTimeout = server.ReadTimeout
		}
		if server.WriteTimeout != 0 {
			c.Server.WriteTimeout = server.WriteTimeout
		}
		if server.MaxFrameSize != 0 {
			c.Server.MaxFrameSize = server.MaxFrameSize
		}
		if server.Admins != nil {
			c.Server.Admins = server.Admins
		}
	}

	if snapshotOverride := overrides.Snapshot; snapshotOverride != nil {
		if snapshotOverride.Path != "" {
			c.Snapshot.Path = snapshotOverride.Path
		}
		if snapshotOverride.Compression != "" {
			c.Snapshot.Compression = snapshotOverride.Compression
		}
		if snapshotOverride.AgeRecipients != nil {
			c.Snapshot.AgeRecipients = snapshotOverride.AgeRecipients
		}
		if snapshotOverride.AgeIdentityFile != "" {
			c.Snapshot.AgeIdentityFile = snapshotOverride.AgeIdentityFile
		}
		if snapshotOverride.AutosaveInterval != 0 {
			c.Snapshot.AutosaveInterval = snapshotOverride.AutosaveInterval
		}
	}

	if overrides.Logging != nil && overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.DataDir = expandVars(c.DataDir, vars)
	vars["TICKETD_DATA"] = c.DataDir

	c.Users.Database = expandVars(c.Users.Database, vars)
	c.Snapshot.Path = expandVars(c.Snapshot.Path, vars)
	c.Snapshot.AgeIdentityFile = expandVars(c.Snapshot.AgeIdentityFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. vars take
// precedence over the process environment.
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
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors and reports all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("server.listen: %w", err))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("server.workers must be positive"))
	}
	if c.Server.QueueSize <= 0 {
		errs = append(errs, errors.New("server.queue_size must be positive"))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Server.MaxFrameSize < minFrameSize {
		errs = append(errs, fmt.Errorf("server.max_frame_size must be at least %d", minFrameSize))
	}

	if c.Users.Database == "" {
		errs = append(errs, errors.New("users.database is required"))
	}
	if c.Users.PoolSize <= 0 {
		errs = append(errs, errors.New("users.pool_size must be positive"))
	}
	if err := c.Users.Argon2.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("users.argon2: %w", err))
	}

	if c.Snapshot.Path == "" {
		errs = append(errs, errors.New("snapshot.path is required"))
	}
	if _, err := snapshot.ParseCompression(c.Snapshot.Compression); err != nil {
		errs = append(errs, fmt.Errorf("snapshot.compression: %w", err))
	}
	for _, recipient := range c.Snapshot.AgeRecipients {
		if !strings.HasPrefix(recipient, "age1") {
			errs = append(errs, fmt.Errorf("snapshot.age_recipients: %q is not an age X25519 recipient", recipient))
		}
	}
	if len(c.Snapshot.AgeRecipients) > 0 && c.Snapshot.AgeIdentityFile == "" {
		errs = append(errs, errors.New("snapshot.age_identity_file is required when age_recipients is set"))
	}
	if c.Snapshot.AutosaveInterval < 0 {
		errs = append(errs, errors.New("snapshot.autosave_interval must not be negative"))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the directories holding the database and the
// snapshot.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.DataDir, filepath.Dir(c.Users.Database), filepath.Dir(c.Snapshot.Path)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
