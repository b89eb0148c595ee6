// Package util provides configuration and filesystem helpers for pathwatch.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/user/pathwatch/internal/model"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogDir   string `mapstructure:"log_dir"`

	// Web API
	WebPort int `mapstructure:"web_port"`

	// Reverse-DNS cache
	DNSCacheSize     int           `mapstructure:"dns_cache_size"`
	DNSLookupTimeout time.Duration `mapstructure:"dns_lookup_timeout"`

	// Stats
	DefaultFocusSize int `mapstructure:"default_focus_size"`

	// Route-change policy: when set, hops that timed out are ignored in
	// the sequence comparison instead of contributing an unknown slot.
	RouteIgnoreTimeouts bool `mapstructure:"route_ignore_timeouts"`

	// Minimum interval before a rule that recovered may fire again.
	// Zero dispatches on every Normal->Active transition.
	AlertRenotifyInterval time.Duration `mapstructure:"alert_renotify_interval"`

	// Per-target probe defaults, used when a target omits its own values.
	ProbePacketType      string        `mapstructure:"probe_packet_type"`
	ProbePacketSize      int           `mapstructure:"probe_packet_size"`
	ProbeMaxHops         int           `mapstructure:"probe_max_hops"`
	ProbeTimeout         time.Duration `mapstructure:"probe_timeout"`
	ProbeInterProbeDelay time.Duration `mapstructure:"probe_inter_probe_delay"`
	TraceInterval        time.Duration `mapstructure:"trace_interval"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pathwatch")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogDir:   filepath.Join(dataDir, "logs"),

		WebPort: 8080,

		DNSCacheSize:     512,
		DNSLookupTimeout: 2 * time.Second,

		DefaultFocusSize: 10,

		RouteIgnoreTimeouts:   false,
		AlertRenotifyInterval: 0,

		ProbePacketType:      string(model.PacketICMP),
		ProbePacketSize:      56,
		ProbeMaxHops:         30,
		ProbeTimeout:         3 * time.Second,
		ProbeInterProbeDelay: 25 * time.Millisecond,
		TraceInterval:        10 * time.Second,
	}
}

// ProbeDefaults returns the probe configuration applied to new targets.
func (c *Config) ProbeDefaults() model.ProbeConfig {
	return model.ProbeConfig{
		PacketType:      model.PacketType(c.ProbePacketType),
		PacketSize:      c.ProbePacketSize,
		MaxHops:         c.ProbeMaxHops,
		Timeout:         c.ProbeTimeout,
		InterProbeDelay: c.ProbeInterProbeDelay,
		TraceInterval:   c.TraceInterval,
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(cfg.DataDir)
	viper.AddConfigPath(".")

	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_dir", cfg.LogDir)
	viper.SetDefault("web_port", cfg.WebPort)
	viper.SetDefault("dns_cache_size", cfg.DNSCacheSize)
	viper.SetDefault("dns_lookup_timeout", cfg.DNSLookupTimeout)
	viper.SetDefault("default_focus_size", cfg.DefaultFocusSize)
	viper.SetDefault("route_ignore_timeouts", cfg.RouteIgnoreTimeouts)
	viper.SetDefault("alert_renotify_interval", cfg.AlertRenotifyInterval)
	viper.SetDefault("probe_packet_type", cfg.ProbePacketType)
	viper.SetDefault("probe_packet_size", cfg.ProbePacketSize)
	viper.SetDefault("probe_max_hops", cfg.ProbeMaxHops)
	viper.SetDefault("probe_timeout", cfg.ProbeTimeout)
	viper.SetDefault("probe_inter_probe_delay", cfg.ProbeInterProbeDelay)
	viper.SetDefault("trace_interval", cfg.TraceInterval)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return info != nil && !info.IsDir()
}
