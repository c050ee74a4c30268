// Package config loads rbmap tool settings from defaults, an optional YAML
// file and RBMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidSeeds       = errors.New("stress seeds must be positive")
	ErrInvalidOps         = errors.New("stress ops must be positive")
	ErrInvalidKeySpace    = errors.New("stress key space must be in [1, 2^32)")
	ErrInvalidRatio       = errors.New("stress remove and lookup ratios must be in [0, 1] and sum to at most 1")
	ErrInvalidCheckEvery  = errors.New("stress check_every must not be negative")
	ErrInvalidParallel    = errors.New("stress parallel must be positive")
	ErrInvalidSizes       = errors.New("bench sizes must be positive")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrInvalidLogFormat   = errors.New("unknown log format")
	ErrInvalidSampleRatio = errors.New("telemetry sample ratio must be in [0, 1]")
)

const (
	configName = "rbmap"
	envPrefix  = "RBMAP"
)

// Config holds all rbmap settings.
type Config struct {
	Stress    StressConfig    `mapstructure:"stress"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// StressConfig configures the randomized differential run.
type StressConfig struct {
	Seeds       int     `mapstructure:"seeds"`
	SeedBase    uint64  `mapstructure:"seed_base"`
	Ops         int     `mapstructure:"ops"`
	KeySpace    int     `mapstructure:"key_space"`
	RemoveRatio float64 `mapstructure:"remove_ratio"`
	LookupRatio float64 `mapstructure:"lookup_ratio"`
	CheckEvery  int     `mapstructure:"check_every"`
	Parallel    int     `mapstructure:"parallel"`
	SaveDir     string  `mapstructure:"save_failures"`
}

// BenchConfig configures the benchmark.
type BenchConfig struct {
	Sizes []int  `mapstructure:"sizes"`
	Seed  uint64 `mapstructure:"seed"`
	Chart string `mapstructure:"chart"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry export and the metrics endpoint.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// SlogLevel parses Level. Unknown names fall back to info; LoadConfig
// rejects them before they get here.
func (lc LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level

	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// LoadConfig loads configuration from configPath, or from rbmap.yaml in
// the working directory, ./config or /etc/rbmap when configPath is empty.
// A missing default file is not an error; a missing explicit file is.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/rbmap")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	if err := viperCfg.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("stress.seeds", DefaultStressSeeds)
	viperCfg.SetDefault("stress.seed_base", DefaultStressSeedBase)
	viperCfg.SetDefault("stress.ops", DefaultStressOps)
	viperCfg.SetDefault("stress.key_space", DefaultStressKeySpace)
	viperCfg.SetDefault("stress.remove_ratio", DefaultStressRemoveRatio)
	viperCfg.SetDefault("stress.lookup_ratio", DefaultStressLookupRatio)
	viperCfg.SetDefault("stress.check_every", DefaultStressCheckEvery)
	viperCfg.SetDefault("stress.parallel", runtime.NumCPU())
	viperCfg.SetDefault("stress.save_failures", DefaultStressSaveDir)

	viperCfg.SetDefault("bench.sizes", DefaultBenchSizes)
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
	viperCfg.SetDefault("bench.chart", DefaultBenchChart)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.environment", DefaultTelemetryEnvironment)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Stress.Validate(); err != nil {
		return err
	}

	if err := ValidateSizes(c.Bench.Sizes); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if !inUnit(c.Telemetry.SampleRatio) {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// Validate reports the first invalid stress setting.
func (sc StressConfig) Validate() error {
	switch {
	case sc.Seeds <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidSeeds, sc.Seeds)
	case sc.Ops <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidOps, sc.Ops)
	case sc.KeySpace <= 0 || uint64(sc.KeySpace) > math.MaxUint32:
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, sc.KeySpace)
	case !inUnit(sc.RemoveRatio) || !inUnit(sc.LookupRatio) || sc.RemoveRatio+sc.LookupRatio > 1:
		return fmt.Errorf("%w: remove %g, lookup %g", ErrInvalidRatio, sc.RemoveRatio, sc.LookupRatio)
	case sc.CheckEvery < 0:
		return fmt.Errorf("%w: %d", ErrInvalidCheckEvery, sc.CheckEvery)
	case sc.Parallel <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidParallel, sc.Parallel)
	}

	return nil
}

// ValidateSizes checks a list of benchmark sizes.
func ValidateSizes(sizes []int) error {
	if len(sizes) == 0 {
		return fmt.Errorf("%w: empty list", ErrInvalidSizes)
	}

	for _, size := range sizes {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidSizes, size)
		}
	}

	return nil
}

func inUnit(ratio float64) bool {
	return ratio >= 0 && ratio <= 1
}
