package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropic-labs/nat64core/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Filtering.UDPTimeout != 5*time.Minute {
		t.Errorf("Filtering.UDPTimeout = %v, want %v", cfg.Filtering.UDPTimeout, 5*time.Minute)
	}

	if cfg.Filtering.TCPEstTimeout != 2*time.Hour {
		t.Errorf("Filtering.TCPEstTimeout = %v, want %v", cfg.Filtering.TCPEstTimeout, 2*time.Hour)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
filtering:
  udp_timeout: "2m"
  address_dependent_filtering: false
pool4:
  - "192.0.2.1"
  - "192.0.2.2"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Filtering.UDPTimeout != 2*time.Minute {
		t.Errorf("Filtering.UDPTimeout = %v, want %v", cfg.Filtering.UDPTimeout, 2*time.Minute)
	}

	if cfg.Filtering.AddressDependentFiltering {
		t.Error("Filtering.AddressDependentFiltering = true, want false")
	}

	if len(cfg.Pool4) != 2 || cfg.Pool4[0] != "192.0.2.1" || cfg.Pool4[1] != "192.0.2.2" {
		t.Errorf("Pool4 = %v, want [192.0.2.1 192.0.2.2]", cfg.Pool4)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override log.level. Everything else should
	// inherit from defaults.
	yamlContent := `
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Filtering.UDPTimeout != 5*time.Minute {
		t.Errorf("Filtering.UDPTimeout = %v, want default %v", cfg.Filtering.UDPTimeout, 5*time.Minute)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
		{
			name: "zero udp timeout",
			modify: func(cfg *config.Config) {
				cfg.Filtering.UDPTimeout = 0
			},
			wantErr: nil, // surfaced via nat64.FilteringConfig.Validate; only a non-nil error is asserted
		},
		{
			name: "non-ipv4 pool4 entry",
			modify: func(cfg *config.Config) {
				cfg.Pool4 = []string{"2001:db8::1"}
			},
			wantErr: config.ErrPool4NotIPv4,
		},
		{
			name: "duplicate pool4 entries",
			modify: func(cfg *config.Config) {
				cfg.Pool4 = []string{"192.0.2.1", "192.0.2.1"}
			},
			wantErr: config.ErrDuplicatePool4Addr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestPool4AddrsOrderPreserved(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Pool4 = []string{"192.0.2.3", "192.0.2.1", "192.0.2.2"}

	addrs, err := cfg.Pool4Addrs()
	if err != nil {
		t.Fatalf("Pool4Addrs() error: %v", err)
	}

	want := []string{"192.0.2.3", "192.0.2.1", "192.0.2.2"}
	if len(addrs) != len(want) {
		t.Fatalf("Pool4Addrs() returned %d addrs, want %d", len(addrs), len(want))
	}
	for i, a := range addrs {
		if a.String() != want[i] {
			t.Errorf("Pool4Addrs()[%d] = %s, want %s", i, a, want[i])
		}
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NAT64D_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NAT64D_METRICS_ADDR", ":9200")
	t.Setenv("NAT64D_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "nat64d.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
