package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/verify"
)

// EnvPrefix prefixes every environment override, e.g. PBPMETRICS_ENGINE_WORKERS.
const EnvPrefix = "PBPMETRICS"

var envReplacer = strings.NewReplacer(".", "_")

// Config is the complete application configuration.
type Config struct {
	Rules   RulesConfig   `mapstructure:"rules"`
	Clutch  ClutchConfig  `mapstructure:"clutch"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RulesConfig is the period structure of the rule era being processed.
type RulesConfig struct {
	RegulationPeriods    int           `mapstructure:"regulation_periods"`
	PeriodLength         time.Duration `mapstructure:"period_length"`
	OvertimeLength       time.Duration `mapstructure:"overtime_length"`
	OvertimeMinuteBucket time.Duration `mapstructure:"overtime_minute_bucket"`
}

// ClutchConfig defines clutch time.
type ClutchConfig struct {
	FromPeriod int           `mapstructure:"from_period"`
	Window     time.Duration `mapstructure:"window"`
	Margin     int           `mapstructure:"margin"`
}

// VerifyConfig holds the grading thresholds.
type VerifyConfig struct {
	MinorTolerance    float64 `mapstructure:"minor_tolerance"`
	ModerateTolerance float64 `mapstructure:"moderate_tolerance"`
	RatioTolerance    float64 `mapstructure:"ratio_tolerance"`
	MinutesTolerance  float64 `mapstructure:"minutes_tolerance"`
}

type EngineConfig struct {
	Workers int `mapstructure:"workers"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig configures the reprocessing stream. An empty URL disables it.
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, when given, and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDBPath is ~/.pbpmetrics/metrics.db, or a relative path when there
// is no home directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".pbpmetrics", "metrics.db")
}

func setDefaults(v *viper.Viper) {
	r := boundary.DefaultRules()
	v.SetDefault("rules.regulation_periods", r.RegulationPeriods)
	v.SetDefault("rules.period_length", r.PeriodLength.String())
	v.SetDefault("rules.overtime_length", r.OvertimeLength.String())
	v.SetDefault("rules.overtime_minute_bucket", r.OvertimeMinute.String())

	v.SetDefault("clutch.from_period", r.ClutchFromPeriod)
	v.SetDefault("clutch.window", r.ClutchWindow.String())
	v.SetDefault("clutch.margin", r.ClutchMargin)

	th := verify.DefaultThresholds()
	v.SetDefault("verify.minor_tolerance", th.Minor)
	v.SetDefault("verify.moderate_tolerance", th.Moderate)
	v.SetDefault("verify.ratio_tolerance", th.Ratio)
	v.SetDefault("verify.minutes_tolerance", th.Minutes)

	v.SetDefault("engine.workers", runtime.GOMAXPROCS(0))
	v.SetDefault("storage.path", DefaultDBPath())
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.stream", "games.reprocess.basketball")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if err := c.BoundaryRules().Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if c.Clutch.FromPeriod < 1 {
		return fmt.Errorf("clutch.from_period must be at least 1")
	}
	if c.Verify.MinorTolerance < 0 || c.Verify.ModerateTolerance < c.Verify.MinorTolerance {
		return fmt.Errorf("verify tolerances must satisfy 0 <= minor <= moderate")
	}
	if c.Verify.RatioTolerance < 0 || c.Verify.MinutesTolerance < 0 {
		return fmt.Errorf("verify.ratio_tolerance and verify.minutes_tolerance must not be negative")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Redis.URL != "" && c.Redis.Stream == "" {
		return fmt.Errorf("redis.stream is required when redis.url is set")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}

// BoundaryRules converts the rules and clutch sections for the resolver.
func (c *Config) BoundaryRules() boundary.Rules {
	return boundary.Rules{
		RegulationPeriods: c.Rules.RegulationPeriods,
		PeriodLength:      c.Rules.PeriodLength,
		OvertimeLength:    c.Rules.OvertimeLength,
		OvertimeMinute:    c.Rules.OvertimeMinuteBucket,
		ClutchFromPeriod:  c.Clutch.FromPeriod,
		ClutchWindow:      c.Clutch.Window,
		ClutchMargin:      c.Clutch.Margin,
	}
}

// Thresholds converts the verify section for the verifier.
func (c *Config) Thresholds() verify.Thresholds {
	return verify.Thresholds{
		Minor:    c.Verify.MinorTolerance,
		Moderate: c.Verify.ModerateTolerance,
		Ratio:    c.Verify.RatioTolerance,
		Minutes:  c.Verify.MinutesTolerance,
	}
}
