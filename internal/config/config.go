// Package config manages nat64d daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables, layered over in-code
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/anthropic-labs/nat64core/internal/nat64"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete nat64d configuration.
type Config struct {
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Filtering FilteringConfig `koanf:"filtering"`
	Pool4     []string        `koanf:"pool4"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// FilteringConfig mirrors nat64.FilteringConfig with koanf tags for the
// YAML/env layer (durations are written as strings such as "5m" and decoded
// into time.Duration); Resolve converts it to the core's native type.
type FilteringConfig struct {
	UDPTimeout                time.Duration `koanf:"udp_timeout"`
	ICMPTimeout               time.Duration `koanf:"icmp_timeout"`
	TCPTransTimeout           time.Duration `koanf:"tcp_trans_timeout"`
	TCPEstTimeout             time.Duration `koanf:"tcp_est_timeout"`
	TCPIncomingSynTimeout     time.Duration `koanf:"tcp_incoming_syn_timeout"`
	DropExternalInitiatedTCP  bool          `koanf:"drop_v4_initiated_tcp"`
	DropICMPv6Info            bool          `koanf:"drop_icmpv6_info"`
	AddressDependentFiltering bool          `koanf:"address_dependent_filtering"`
}

// Resolve converts the loaded configuration into the core's native
// FilteringConfig type.
func (f FilteringConfig) Resolve() nat64.FilteringConfig {
	return nat64.FilteringConfig{
		UDPTimeout:                f.UDPTimeout,
		ICMPTimeout:               f.ICMPTimeout,
		TCPTransTimeout:           f.TCPTransTimeout,
		TCPEstTimeout:             f.TCPEstTimeout,
		TCPIncomingSynTimeout:     f.TCPIncomingSynTimeout,
		DropExternalInitiatedTCP:  f.DropExternalInitiatedTCP,
		DropICMPv6Info:            f.DropICMPv6Info,
		AddressDependentFiltering: f.AddressDependentFiltering,
	}
}

// Pool4Addrs parses the configured pool4 address strings in registration
// order, the order pool4's fairness rule depends on.
func (c *Config) Pool4Addrs() ([]netip.Addr, error) {
	addrs := make([]netip.Addr, 0, len(c.Pool4))
	for i, s := range c.Pool4 {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("pool4[%d] %q: %w", i, s, err)
		}
		if !a.Is4() {
			return nil, fmt.Errorf("pool4[%d] %q: %w", i, s, ErrPool4NotIPv4)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults: the
// reference expiry timeouts (RFC 6146) and address-dependent filtering
// enabled.
func DefaultConfig() *Config {
	d := nat64.DefaultFilteringConfig()
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Filtering: FilteringConfig{
			UDPTimeout:                d.UDPTimeout,
			ICMPTimeout:               d.ICMPTimeout,
			TCPTransTimeout:           d.TCPTransTimeout,
			TCPEstTimeout:             d.TCPEstTimeout,
			TCPIncomingSynTimeout:     d.TCPIncomingSynTimeout,
			DropExternalInitiatedTCP:  d.DropExternalInitiatedTCP,
			DropICMPv6Info:            d.DropICMPv6Info,
			AddressDependentFiltering: d.AddressDependentFiltering,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for nat64d configuration.
// Variables are named NAT64D_<section>_<key>, e.g., NAT64D_METRICS_ADDR.
const envPrefix = "NAT64D_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NAT64D_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NAT64D_METRICS_ADDR           -> metrics.addr
//	NAT64D_LOG_LEVEL              -> log.level
//	NAT64D_FILTERING_UDP_TIMEOUT  -> filtering.udp_timeout
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NAT64D_FILTERING_UDP_TIMEOUT -> filtering.udp_timeout:
// only the first underscore separates the section from the key, so keys that
// themselves contain underscores keep them.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":                           defaults.Metrics.Addr,
		"metrics.path":                           defaults.Metrics.Path,
		"log.level":                              defaults.Log.Level,
		"log.format":                              defaults.Log.Format,
		"filtering.udp_timeout":                  defaults.Filtering.UDPTimeout.String(),
		"filtering.icmp_timeout":                 defaults.Filtering.ICMPTimeout.String(),
		"filtering.tcp_trans_timeout":            defaults.Filtering.TCPTransTimeout.String(),
		"filtering.tcp_est_timeout":               defaults.Filtering.TCPEstTimeout.String(),
		"filtering.tcp_incoming_syn_timeout":      defaults.Filtering.TCPIncomingSynTimeout.String(),
		"filtering.drop_v4_initiated_tcp":         defaults.Filtering.DropExternalInitiatedTCP,
		"filtering.drop_icmpv6_info":              defaults.Filtering.DropICMPv6Info,
		"filtering.address_dependent_filtering":   defaults.Filtering.AddressDependentFiltering,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrPool4NotIPv4 indicates a pool4 entry is not a valid IPv4 address.
	ErrPool4NotIPv4 = errors.New("pool4 entries must be IPv4 addresses")

	// ErrDuplicatePool4Addr indicates the same address was registered twice.
	ErrDuplicatePool4Addr = errors.New("duplicate pool4 address")
)

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if err := cfg.Filtering.Resolve().Validate(); err != nil {
		return err
	}

	addrs, err := cfg.Pool4Addrs()
	if err != nil {
		return err
	}

	seen := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePool4Addr, a)
		}
		seen[a] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
