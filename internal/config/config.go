// Package config loads and validates the trigfit service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/gwobs/trigfit/internal/bins"
	"github.com/gwobs/trigfit/internal/tailfit"
)

// Config represents the complete application configuration.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Fit      FitConfig      `mapstructure:"fit"`
	Prune    PruneConfig    `mapstructure:"prune"`
	Combine  CombineConfig  `mapstructure:"combine"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig describes where the day's trigger files come from.
type InputConfig struct {
	TriggerDir string        `mapstructure:"trigger_dir"`
	IFOs       []string      `mapstructure:"ifos"`
	Cadence    time.Duration `mapstructure:"cadence"`
}

// FitConfig holds the per-bin tail-fit parameters.
type FitConfig struct {
	Function   string    `mapstructure:"function"`    // exponential, rayleigh or power
	Threshold  float64   `mapstructure:"threshold"`   // Statistic threshold for the tail
	BinSpacing string    `mapstructure:"bin_spacing"` // linear, logarithmic or irregular
	BinCount   int       `mapstructure:"bin_count"`   // For linear/logarithmic spacing
	BinEdges   []float64 `mapstructure:"bin_edges"`   // For irregular spacing
}

// PruneConfig holds the loud-event pruning parameters.
type PruneConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	BinCount int     `mapstructure:"bin_count"` // Prune-parameter bins (may differ from fit bins)
	Quota    int     `mapstructure:"quota"`     // Removals per prune bin
	Window   float64 `mapstructure:"window"`    // Clustering window in seconds
}

// CombineConfig holds the multi-day combination parameters.
type CombineConfig struct {
	Days                   int     `mapstructure:"days"`
	MaxGapDays             int     `mapstructure:"max_gap_days"`
	ConservativePercentile float64 `mapstructure:"conservative_percentile"`
}

// QualityConfig holds the fit-coefficient bound check parameters.
type QualityConfig struct {
	LowerLimit          float64 `mapstructure:"lower_limit"`
	UpperLimit          float64 `mapstructure:"upper_limit"`
	MinDurationForCheck float64 `mapstructure:"min_duration_for_check"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds record persistence configuration.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("TRIGFIT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.trigger_dir", "./triggers")
	v.SetDefault("input.cadence", "24h")

	v.SetDefault("fit.function", "exponential")
	v.SetDefault("fit.threshold", 6.5)
	v.SetDefault("fit.bin_spacing", "logarithmic")
	v.SetDefault("fit.bin_count", 8)

	v.SetDefault("prune.enabled", true)
	v.SetDefault("prune.bin_count", 2)
	v.SetDefault("prune.quota", 1)
	v.SetDefault("prune.window", 0.1)

	v.SetDefault("combine.days", 7)
	v.SetDefault("combine.max_gap_days", 10)
	v.SetDefault("combine.conservative_percentile", 0.84)

	v.SetDefault("quality.lower_limit", 1.0)
	v.SetDefault("quality.upper_limit", 10.0)
	v.SetDefault("quality.min_duration_for_check", 0.5)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid and mutually
// consistent. It runs once, before any computation begins.
func (c *Config) Validate() error {
	if c.Input.TriggerDir == "" {
		return fmt.Errorf("input.trigger_dir is required")
	}
	if len(c.Input.IFOs) == 0 {
		return fmt.Errorf("input.ifos must contain at least one detector")
	}
	if c.Input.Cadence < time.Minute {
		return fmt.Errorf("input.cadence must be at least 1 minute")
	}

	if _, err := tailfit.ParseFamily(c.Fit.Function); err != nil {
		return fmt.Errorf("fit.function: %w", err)
	}
	switch bins.Spacing(c.Fit.BinSpacing) {
	case bins.SpacingLinear, bins.SpacingLogarithmic:
		if c.Fit.BinCount < 1 {
			return fmt.Errorf("fit.bin_count must be at least 1 for %s spacing", c.Fit.BinSpacing)
		}
		if len(c.Fit.BinEdges) > 0 {
			return fmt.Errorf("fit.bin_edges conflicts with %s spacing", c.Fit.BinSpacing)
		}
	case bins.SpacingIrregular:
		if len(c.Fit.BinEdges) < 2 {
			return fmt.Errorf("fit.bin_edges must supply at least 2 edges for irregular spacing")
		}
	default:
		return fmt.Errorf("fit.bin_spacing must be one of: linear, logarithmic, irregular")
	}

	if c.Prune.Enabled {
		if c.Prune.BinCount < 1 {
			return fmt.Errorf("prune.bin_count must be at least 1")
		}
		if c.Prune.Quota < 1 {
			return fmt.Errorf("prune.quota must be at least 1")
		}
		if c.Prune.Window <= 0 {
			return fmt.Errorf("prune.window must be positive")
		}
	}

	if c.Combine.Days < 1 {
		return fmt.Errorf("combine.days must be at least 1")
	}
	if c.Combine.MaxGapDays < 1 {
		return fmt.Errorf("combine.max_gap_days must be at least 1")
	}
	if c.Combine.ConservativePercentile <= 0 || c.Combine.ConservativePercentile >= 1 {
		return fmt.Errorf("combine.conservative_percentile must be in (0, 1)")
	}

	if c.Quality.LowerLimit >= c.Quality.UpperLimit {
		return fmt.Errorf("quality.lower_limit must be below quality.upper_limit")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
