package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Rebuild RebuildConfig `yaml:"rebuild" mapstructure:"rebuild"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ResolveConfig configures entity resolution thresholds (0-100 similarity scale).
type ResolveConfig struct {
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	AutoMatchThreshold float64 `yaml:"auto_match_threshold" mapstructure:"auto_match_threshold"`
	SimilarLimit       int     `yaml:"similar_limit" mapstructure:"similar_limit"`
	AliasConfidence    float64 `yaml:"alias_confidence" mapstructure:"alias_confidence"`
}

// ScoringConfig points at the external scoring tables.
type ScoringConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// RebuildConfig configures opportunity rebuilds.
type RebuildConfig struct {
	MinSeverity float64 `yaml:"min_severity" mapstructure:"min_severity"`
	MinScore    float64 `yaml:"min_score" mapstructure:"min_score"`
	LockKey     int64   `yaml:"lock_key" mapstructure:"lock_key"`
	// MaxAttempts bounds retries of transient database failures per statement.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPENSITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("resolve.fuzzy_threshold", 85.0)
	v.SetDefault("resolve.auto_match_threshold", 95.0)
	v.SetDefault("resolve.similar_limit", 5)
	v.SetDefault("resolve.alias_confidence", 0.9)
	v.SetDefault("scoring.config_path", "benchmarks.yaml")
	v.SetDefault("rebuild.min_severity", 15.0)
	v.SetDefault("rebuild.min_score", 30.0)
	v.SetDefault("rebuild.lock_key", 7041977)
	v.SetDefault("rebuild.max_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validation modes.
const (
	ModeOffline = "offline" // no database needed (threshold checks only)
	ModeStore   = "store"   // commands that read or write the database
)

// Validate checks that the configuration is usable for the given mode.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case ModeOffline:
	case ModeStore:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	r := c.Resolve
	if r.FuzzyThreshold < 0 || r.FuzzyThreshold > 100 {
		errs = append(errs, "resolve.fuzzy_threshold must be between 0 and 100")
	}
	if r.AutoMatchThreshold < r.FuzzyThreshold || r.AutoMatchThreshold > 100 {
		errs = append(errs, "resolve.auto_match_threshold must be between fuzzy_threshold and 100")
	}
	if r.AliasConfidence < 0 || r.AliasConfidence > 1 {
		errs = append(errs, "resolve.alias_confidence must be between 0 and 1")
	}
	if c.Rebuild.MinScore < 0 || c.Rebuild.MinScore > 100 {
		errs = append(errs, "rebuild.min_score must be between 0 and 100")
	}
	if c.Rebuild.MaxAttempts < 1 {
		errs = append(errs, "rebuild.max_attempts must be >= 1")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
