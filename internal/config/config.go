// Package config provides Viper-based configuration loading for sotamapper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MapsConfig locates the map files.
type MapsConfig struct {
	// Dir is the directory holding one map file per map.
	Dir string `mapstructure:"dir"`
	// Pattern is the glob matched against file names in Dir.
	Pattern string `mapstructure:"pattern"`
}

// WatcherConfig holds player-state polling settings.
type WatcherConfig struct {
	// LogDir is the directory the game writes its chat logs to.
	LogDir string `mapstructure:"log_dir"`
	// LogPattern is the glob selecting chat log files inside LogDir.
	LogPattern string `mapstructure:"log_pattern"`
	// SnapshotDirs are the install directories searched for the snapshot file.
	SnapshotDirs []string `mapstructure:"snapshot_dirs"`
	// SnapshotName is the snapshot file name inside each install directory.
	SnapshotName string `mapstructure:"snapshot_name"`
	// TempDir receives the private copies of log and snapshot files.
	// Empty selects the OS temp directory.
	TempDir string `mapstructure:"temp_dir"`
	// Interval is the pause between polling ticks.
	Interval time.Duration `mapstructure:"interval"`
	// TimestampLayouts are tried in order when parsing log line timestamps.
	// Empty selects the built-in layouts.
	TimestampLayouts []string `mapstructure:"timestamp_layouts"`
}

// FeedConfig holds the player feed gRPC settings.
type FeedConfig struct {
	// Host is the bind/connect address for the feed.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the feed.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (f FeedConfig) Addr() string {
	return fmt.Sprintf("%s:%d", f.Host, f.Port)
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ScriptingConfig holds Lua hook settings.
type ScriptingConfig struct {
	// Dir holds *.lua hook scripts. Empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit bounds the VM instructions per hook call.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings for location history.
type DatabaseConfig struct {
	// Enabled turns on location history recording.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// WriteTimeout bounds each history insert.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, receives a copy of every log line.
	File string `mapstructure:"file"`
}

// Config is the top-level application configuration.
type Config struct {
	Maps      MapsConfig      `mapstructure:"maps"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		func() error { return validateMaps(c.Maps) },
		func() error { return validateWatcher(c.Watcher) },
		func() error { return validateFeed(c.Feed) },
		func() error { return validateMetrics(c.Metrics) },
		func() error { return validateScripting(c.Scripting) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validateLogging(c.Logging) },
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMaps(m MapsConfig) error {
	var errs []string
	if m.Dir == "" {
		errs = append(errs, "maps.dir must not be empty")
	}
	if m.Pattern == "" {
		errs = append(errs, "maps.pattern must not be empty")
	}
	return joinErrs(errs)
}

func validateWatcher(w WatcherConfig) error {
	var errs []string
	if w.LogDir == "" && len(w.SnapshotDirs) == 0 {
		errs = append(errs, "watcher.log_dir or watcher.snapshot_dirs must be set")
	}
	if w.LogDir != "" && w.LogPattern == "" {
		errs = append(errs, "watcher.log_pattern must not be empty")
	}
	if len(w.SnapshotDirs) > 0 && w.SnapshotName == "" {
		errs = append(errs, "watcher.snapshot_name must not be empty")
	}
	if w.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("watcher.interval must be positive, got %s", w.Interval))
	}
	return joinErrs(errs)
}

func validateFeed(f FeedConfig) error {
	var errs []string
	if f.Host == "" {
		errs = append(errs, "feed.host must not be empty")
	}
	if f.Port < 1 || f.Port > 65535 {
		errs = append(errs, fmt.Sprintf("feed.port must be 1-65535, got %d", f.Port))
	}
	return joinErrs(errs)
}

func validateMetrics(m MetricsConfig) error {
	if m.Enabled && m.Addr == "" {
		return fmt.Errorf("metrics.addr must not be empty when metrics are enabled")
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	return d.Validate()
}

// Validate checks the connection settings regardless of Enabled.
func (d DatabaseConfig) Validate() error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if d.WriteTimeout <= 0 {
		errs = append(errs, "database.write_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance carrying the defaults and the
// SOTAMAPPER_ environment overrides, with no config file attached.
//
// Postcondition: Returns a non-nil Viper.
func NewViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with SOTAMAPPER_ prefix
	v.SetEnvPrefix("SOTAMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("maps.dir", "maps")
	v.SetDefault("maps.pattern", "*.csv")

	v.SetDefault("watcher.log_pattern", "SotAChatLog_*.txt")
	v.SetDefault("watcher.snapshot_name", "CurrentPlayerData.txt")
	v.SetDefault("watcher.interval", "1s")

	v.SetDefault("feed.host", "127.0.0.1")
	v.SetDefault("feed.port", 50061)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9108")

	v.SetDefault("scripting.instruction_limit", 100000)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sotamapper")
	v.SetDefault("database.password", "sotamapper")
	v.SetDefault("database.name", "sotamapper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.write_timeout", "2s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
