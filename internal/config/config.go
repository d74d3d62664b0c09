// Package config loads miniftpd configuration from a YAML file, MINIFTPD_*
// environment variables and command-line flags.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags that were set explicitly
//  2. Environment variables (MINIFTPD_*)
//  3. Configuration file
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds how long a graceful shutdown waits for
	// sessions to finish before their connections are closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig controls the slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig configures the FTP listener and its sessions.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen" yaml:"listen" validate:"required,listen_addr"`
	RootDir        string        `mapstructure:"root_dir" yaml:"root_dir" validate:"required"`
	Workers        int           `mapstructure:"workers" yaml:"workers" validate:"min=1"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`
	MaxPending     int           `mapstructure:"max_pending" yaml:"max_pending" validate:"min=0"`
	Passive        PassiveConfig `mapstructure:"passive" yaml:"passive"`
	BandwidthLimit ByteSize      `mapstructure:"bandwidth_limit" yaml:"bandwidth_limit" validate:"min=0"`
}

// PassiveConfig configures passive-mode data listeners.
type PassiveConfig struct {
	Address       string        `mapstructure:"address" yaml:"address" validate:"required,ipv4"`
	MinPort       int           `mapstructure:"min_port" yaml:"min_port" validate:"min=0,max=65535"`
	MaxPort       int           `mapstructure:"max_port" yaml:"max_port" validate:"min=0,max=65535"`
	AcceptTimeout time.Duration `mapstructure:"accept_timeout" yaml:"accept_timeout" validate:"min=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" validate:"omitempty,listen_addr"`
}

// ByteSize is a byte count that accepts human-readable values such as
// "512KiB" or "10MB" in configuration files.
type ByteSize int64

// ParseByteSize parses a size string. Units are powers of 1024.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

// String renders the size with a binary unit, e.g. "512KiB", when that form
// parses back to the same value, and as a plain byte count otherwise.
func (b ByteSize) String() string {
	if h, ok := b.human(); ok {
		return h
	}
	return strconv.FormatInt(int64(b), 10)
}

// human returns the unit form of b and whether it is exact. units.BytesSize
// keeps four significant digits, so 1234567 would become "1.177MiB".
func (b ByteSize) human() (string, bool) {
	h := units.BytesSize(float64(b))
	parsed, err := ParseByteSize(h)
	return h, err == nil && parsed == b
}

// MarshalYAML writes the size in its human-readable form, or as an integer
// when no unit form is exact.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	if h, ok := b.human(); ok && b != 0 {
		return h, nil
	}
	return int64(b), nil
}

// Load loads configuration from file, environment, and defaults. A missing
// config file is not an error. flags may be nil; otherwise the flags named in
// FlagKeys are bound to their configuration keys.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"listen":       "server.listen",
	"root":         "server.root_dir",
	"workers":      "server.workers",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"metrics":      "metrics.enabled",
	"metrics-addr": "metrics.listen",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// setupViper configures environment variables, defaults and the config file.
func setupViper(v *viper.Viper, configPath string) {
	// MINIFTPD_SERVER_ROOT_DIR=/srv/ftp
	v.SetEnvPrefix("MINIFTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key gets a default.
	setViperDefaults(v, GetDefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.root_dir", cfg.Server.RootDir)
	v.SetDefault("server.workers", cfg.Server.Workers)
	v.SetDefault("server.poll_interval", cfg.Server.PollInterval.String())
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout.String())
	v.SetDefault("server.max_pending", cfg.Server.MaxPending)
	v.SetDefault("server.passive.address", cfg.Server.Passive.Address)
	v.SetDefault("server.passive.min_port", cfg.Server.Passive.MinPort)
	v.SetDefault("server.passive.max_port", cfg.Server.Passive.MaxPort)
	v.SetDefault("server.passive.accept_timeout", cfg.Server.Passive.AcceptTimeout.String())
	v.SetDefault("server.bandwidth_limit", int64(cfg.Server.BandwidthLimit))
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout.String())
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// an explicit path that does not exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration values.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "512KiB" and plain numbers to
// ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/miniftpd, ~/.config/miniftpd, or
// the current directory when no home directory can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "miniftpd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "miniftpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
