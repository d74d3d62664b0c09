package config

import (
	"strings"
	"time"
)

const (
	defaultListen          = "127.0.0.1:2121"
	defaultWorkers         = 4
	defaultPollInterval    = time.Second
	defaultIdleTimeout     = 5 * time.Minute
	defaultPassiveAddress  = "127.0.0.1"
	defaultMetricsListen   = "127.0.0.1:9121"
	defaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved. Zero is a
// meaningful setting for idle_timeout, max_pending, accept_timeout and
// bandwidth_limit, so those are left alone.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Level == "WARNING" {
		cfg.Level = "WARN"
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Passive.Address == "" {
		cfg.Passive.Address = defaultPassiveAddress
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = defaultMetricsListen
	}
}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{IdleTimeout: defaultIdleTimeout},
	}
	ApplyDefaults(cfg)
	return cfg
}
