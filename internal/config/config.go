// Package config holds the settings threaded through the compiler, the
// engine and the CLI.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional config file, QUERYMATE_* environment variables and command-line
// flags bound by the CLI.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for every key.
const EnvPrefix = "QUERYMATE"

// Keys.
const (
	KeyDefaultLimit      = "default_limit"
	KeyMaxLimit          = "max_limit"
	KeyDefaultOffset     = "default_offset"
	KeyIncludePagination = "include_pagination"
	KeyIncludePrimaryKey = "include_primary_key"
	KeyStrictTemporal    = "strict_temporal"
	KeyDialect           = "dialect"
	KeyLogLevel          = "log_level"
)

// Dialects understood by the SQL renderer.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Config is an explicit settings struct; nothing in the module reads global
// mutable state.
type Config struct {
	DefaultLimit      int    `mapstructure:"default_limit"`
	MaxLimit          int    `mapstructure:"max_limit"`
	DefaultOffset     int    `mapstructure:"default_offset"`
	IncludePagination bool   `mapstructure:"include_pagination"`
	IncludePrimaryKey bool   `mapstructure:"include_primary_key"`
	StrictTemporal    bool   `mapstructure:"strict_temporal"`
	Dialect           string `mapstructure:"dialect"`
	LogLevel          string `mapstructure:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DefaultLimit:      10,
		MaxLimit:          200,
		DefaultOffset:     0,
		IncludePagination: false,
		IncludePrimaryKey: true,
		StrictTemporal:    false,
		Dialect:           DialectSQLite,
		LogLevel:          "info",
	}
}

// NewViper returns a viper instance with defaults registered and
// QUERYMATE_* environment variables enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers Default() on v. Every key must have a default so
// that AutomaticEnv can see it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyDefaultLimit, d.DefaultLimit)
	v.SetDefault(KeyMaxLimit, d.MaxLimit)
	v.SetDefault(KeyDefaultOffset, d.DefaultOffset)
	v.SetDefault(KeyIncludePagination, d.IncludePagination)
	v.SetDefault(KeyIncludePrimaryKey, d.IncludePrimaryKey)
	v.SetDefault(KeyStrictTemporal, d.StrictTemporal)
	v.SetDefault(KeyDialect, d.Dialect)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

// Load reads an optional config file into v and returns the validated
// settings.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	if c.MaxLimit < 1 {
		return fmt.Errorf("config: %s must be at least 1, got %d", KeyMaxLimit, c.MaxLimit)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("config: %s must be in [1, %d], got %d", KeyDefaultLimit, c.MaxLimit, c.DefaultLimit)
	}
	if c.DefaultOffset < 0 {
		return fmt.Errorf("config: %s must be non-negative, got %d", KeyDefaultOffset, c.DefaultOffset)
	}
	switch c.Dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("config: unknown %s %q", KeyDialect, c.Dialect)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level (info if unparseable).
func (c Config) SlogLevel() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: unknown %s %q", KeyLogLevel, name)
	}
	return lvl, nil
}
