package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
input:
  trigger_dir: /data/triggers
  ifos: ["H1", "L1"]
  cadence: 24h
fit:
  function: exponential
  threshold: 6.5
  bin_spacing: logarithmic
  bin_count: 8
prune:
  enabled: true
  bin_count: 2
  quota: 1
  window: 0.1
combine:
  days: 7
  max_gap_days: 10
  conservative_percentile: 0.84
quality:
  lower_limit: 1.0
  upper_limit: 10.0
  min_duration_for_check: 0.5
telegram:
  enabled: false
storage:
  data_dir: /data/fits
logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Fit.Function != "exponential" || cfg.Fit.BinCount != 8 {
		t.Errorf("Fit config not loaded: %+v", cfg.Fit)
	}
	if len(cfg.Input.IFOs) != 2 {
		t.Errorf("Expected 2 ifos, got %v", cfg.Input.IFOs)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	minimal := `
input:
  ifos: ["H1"]
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fit.Function != "exponential" {
		t.Errorf("Default fit function = %q, want exponential", cfg.Fit.Function)
	}
	if cfg.Combine.Days != 7 || cfg.Combine.MaxGapDays != 10 {
		t.Errorf("Combine defaults not applied: %+v", cfg.Combine)
	}
	if cfg.Combine.ConservativePercentile != 0.84 {
		t.Errorf("Default percentile = %g, want 0.84", cfg.Combine.ConservativePercentile)
	}
	if cfg.Prune.Window != 0.1 {
		t.Errorf("Default prune window = %g, want 0.1", cfg.Prune.Window)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no ifos", func(c *Config) { c.Input.IFOs = nil }},
		{"unknown fit function", func(c *Config) { c.Fit.Function = "gaussian" }},
		{"unknown spacing", func(c *Config) { c.Fit.BinSpacing = "cubic" }},
		{"edges conflict with log spacing", func(c *Config) { c.Fit.BinEdges = []float64{0, 1} }},
		{"irregular without edges", func(c *Config) {
			c.Fit.BinSpacing = "irregular"
			c.Fit.BinEdges = nil
		}},
		{"zero prune quota", func(c *Config) { c.Prune.Quota = 0 }},
		{"zero combine days", func(c *Config) { c.Combine.Days = 0 }},
		{"percentile out of range", func(c *Config) { c.Combine.ConservativePercentile = 1.0 }},
		{"inverted quality limits", func(c *Config) { c.Quality.LowerLimit = 20 }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}
