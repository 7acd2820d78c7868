package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	t.Run("valid default config", func(t *testing.T) {
		require.NoError(t, ValidateConfig(DefaultConfig()))
	})

	t.Run("negative cap", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.News.Max = -1
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "news.max must be >= 0")
	})

	t.Run("zero half life", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Recency.HalfLifeDays = 0
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "half_life_days must be > 0")
	})

	t.Run("horizon before full window", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Recency.HorizonDays = 10
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "horizon_days")
	})

	t.Run("severity tiers out of order", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Severity.Mid = 40
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "severity tiers")
	})

	t.Run("frequency counts out of order", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Frequency.HighCount = 6
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "frequency counts")
	})

	t.Run("non-positive benchmark", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Lagging.Benchmarks["999"] = 0
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lagging.benchmarks[999]")
	})

	t.Run("blank keywords", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Trade.HighRiskTrades = append(cfg.Trade.HighRiskTrades, "")
		cfg.News.NegativeKeywords = append(cfg.News.NegativeKeywords, "  ")
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trade.high_risk_trades must not contain blank entries")
		assert.Contains(t, err.Error(), "news.negative_keywords must not contain blank entries")
	})

	t.Run("errors in stable order", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Recency.Max = -1
		cfg.News.Max = -1
		cfg.Lagging.Benchmarks["998"] = 0
		cfg.Lagging.Benchmarks["999"] = -1
		first := ValidateConfig(cfg)
		require.Error(t, first)
		assert.Contains(t, first.Error(), "recency.max must be >= 0; news.max must be >= 0")
		assert.Contains(t, first.Error(), "lagging.benchmarks[998] must be > 0; lagging.benchmarks[999] must be > 0")
		for range 10 {
			assert.Equal(t, first.Error(), ValidateConfig(cfg).Error())
		}
	})

	t.Run("trade partial above cap", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Trade.Partial = 9
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trade.partial")
	})
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	yaml := `
lagging:
  benchmarks:
    "238160": 2.0
  default_benchmark: 3.5
trade:
  high_risk_trades: [roofing]
talk_track:
  labels:
    post_incident: "Stabilize after incident"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, cfg.Lagging.Benchmarks["238160"], 0.001)
	assert.InDelta(t, 1.6, cfg.Lagging.Benchmarks["23"], 0.001, "default keys survive")
	assert.InDelta(t, 3.5, cfg.Lagging.DefaultBenchmark, 0.001)
	assert.Equal(t, []string{"roofing"}, cfg.Trade.HighRiskTrades)
	assert.Equal(t, "Stabilize after incident", cfg.TalkTrack.Labels["post_incident"])
	assert.Equal(t, "Trend analysis & prevention", cfg.TalkTrack.Labels["trend_analysis"])
	// Untouched sections keep defaults.
	assert.InDelta(t, 30.0, cfg.Recency.Max, 0.001)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recency:\n  half_life_days: -1\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "half_life_days")
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recency: [1, 2"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer: parse config")
}
