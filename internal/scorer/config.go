// Package scorer computes propensity scores for (GC-or-owner, driver incident) pairs.
package scorer

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
)

// DefaultConfig returns the built-in scoring tables. Component caps sum to
// more than 100; the total is capped at 100.
func DefaultConfig() config.ScorerConfig {
	return config.ScorerConfig{
		Recency: config.RecencyConfig{
			Max:          30,
			FullDays:     30,
			HalfLifeDays: 90,
			HorizonDays:  180,
		},
		Severity: config.SeverityConfig{
			Max:            50,
			Fatality:       50,
			Major:          35,
			Mid:            20,
			Low:            5,
			HighPenalty:    50_000,
			ManyViolations: 5,
		},
		Frequency: config.FrequencyConfig{
			Max:        15,
			WindowDays: 730, // 24 months
			FullCount:  5,
			HighCount:  3,
			LowCount:   2,
		},
		Lagging: config.LaggingConfig{
			Max:              15,
			DefaultBenchmark: 4.0,
			// BLS DART rates for construction sectors.
			Benchmarks: map[string]float64{
				"23":     1.6,
				"236":    1.5,
				"237":    1.5,
				"238":    1.8,
				"238120": 2.4, // structural steel and precast
				"238160": 3.1, // roofing
				"238910": 1.9, // site preparation
			},
			FullRatio: 2.0,
			HighRatio: 1.5,
			LowRatio:  1.2,
		},
		Trade: config.TradeConfig{
			Max:            5,
			Partial:        3,
			HighRiskTrades: []string{"steel erection", "roofing", "excavation", "demolition", "scaffolding"},
		},
		Relationship: config.RelationshipConfig{
			Max:            5,
			Detailed:       4,
			Partial:        2,
			ConfirmedCount: 2,
		},
		News: config.NewsConfig{
			Max:        5,
			TitleHit:   2,
			SummaryHit: 1,
			NegativeKeywords: []string{
				"lawsuit", "violation", "death", "fatality", "accident",
				"injury", "default", "delay", "penalty",
			},
		},
		Rationale: config.RationaleConfig{
			Recency:      20,
			Severity:     5,
			Frequency:    5,
			Lagging:      8,
			Trade:        0,
			Relationship: 3,
			News:         2,
		},
		TalkTrack: config.TalkTrackConfig{
			Severity:  20,
			Frequency: 10,
			Lagging:   10,
			Labels: map[string]string{
				string(model.TalkTrackPostIncident):   "Post-incident stabilization",
				string(model.TalkTrackTrendAnalysis):  "Trend analysis & prevention",
				string(model.TalkTrackPortfolioRisk):  "Portfolio risk benchmarking",
				string(model.TalkTrackComplianceGaps): "Compliance gap assessment",
			},
		},
	}
}

// LoadConfig reads scoring tables from a YAML file layered over DefaultConfig.
// A missing file is not an error; the defaults are returned.
func LoadConfig(path string) (config.ScorerConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("scorer: config file not found, using defaults", zap.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return cfg, eris.Wrapf(err, "scorer: read config %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "scorer: parse config %s", path)
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	caps := []struct {
		name string
		v    float64
	}{
		{"recency.max", c.Recency.Max},
		{"severity.max", c.Severity.Max},
		{"frequency.max", c.Frequency.Max},
		{"lagging.max", c.Lagging.Max},
		{"trade.max", c.Trade.Max},
		{"relationship.max", c.Relationship.Max},
		{"news.max", c.News.Max},
	}
	for _, cp := range caps {
		if cp.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", cp.name))
		}
	}

	// Recency.
	if c.Recency.HalfLifeDays <= 0 {
		errs = append(errs, "recency.half_life_days must be > 0")
	}
	if c.Recency.FullDays < 0 || c.Recency.HorizonDays < c.Recency.FullDays {
		errs = append(errs, "recency.horizon_days must be >= full_days >= 0")
	}

	// Severity tiers must be ordered.
	s := c.Severity
	if s.Low < 0 || s.Mid < s.Low || s.Major < s.Mid || s.Fatality < s.Major {
		errs = append(errs, "severity tiers must satisfy fatality >= major >= mid >= low >= 0")
	}
	if s.HighPenalty < 0 {
		errs = append(errs, "severity.high_penalty must be >= 0")
	}

	// Frequency.
	f := c.Frequency
	if f.WindowDays <= 0 {
		errs = append(errs, "frequency.window_days must be > 0")
	}
	if f.LowCount <= 0 || f.HighCount < f.LowCount || f.FullCount < f.HighCount {
		errs = append(errs, "frequency counts must satisfy full_count >= high_count >= low_count > 0")
	}

	// Lagging.
	l := c.Lagging
	if l.DefaultBenchmark <= 0 {
		errs = append(errs, "lagging.default_benchmark must be > 0")
	}
	for _, code := range slices.Sorted(maps.Keys(l.Benchmarks)) {
		if l.Benchmarks[code] <= 0 {
			errs = append(errs, fmt.Sprintf("lagging.benchmarks[%s] must be > 0", code))
		}
	}
	if l.LowRatio <= 0 || l.HighRatio < l.LowRatio || l.FullRatio < l.HighRatio {
		errs = append(errs, "lagging ratios must satisfy full_ratio >= high_ratio >= low_ratio > 0")
	}

	if c.Trade.Partial < 0 || c.Trade.Partial > c.Trade.Max {
		errs = append(errs, "trade.partial must be between 0 and trade.max")
	}
	if hasBlank(c.Trade.HighRiskTrades) {
		errs = append(errs, "trade.high_risk_trades must not contain blank entries")
	}
	if hasBlank(c.News.NegativeKeywords) {
		errs = append(errs, "news.negative_keywords must not contain blank entries")
	}
	r := c.Relationship
	if r.Partial < 0 || r.Detailed < r.Partial || r.Max < r.Detailed {
		errs = append(errs, "relationship values must satisfy max >= detailed >= partial >= 0")
	}
	if r.ConfirmedCount < 2 {
		errs = append(errs, "relationship.confirmed_count must be >= 2")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// hasBlank reports whether any keyword is empty after trimming; a blank
// keyword would match every text.
func hasBlank(keywords []string) bool {
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			return true
		}
	}
	return false
}
