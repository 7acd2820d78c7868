package config

// ScorerConfig holds the propensity scoring tables. Each component section
// carries its own cap (Max) so the caps can be tuned without code changes.
type ScorerConfig struct {
	Recency      RecencyConfig      `yaml:"recency" mapstructure:"recency"`
	Severity     SeverityConfig     `yaml:"severity" mapstructure:"severity"`
	Frequency    FrequencyConfig    `yaml:"frequency" mapstructure:"frequency"`
	Lagging      LaggingConfig      `yaml:"lagging" mapstructure:"lagging"`
	Trade        TradeConfig        `yaml:"trade" mapstructure:"trade"`
	Relationship RelationshipConfig `yaml:"relationship" mapstructure:"relationship"`
	News         NewsConfig         `yaml:"news" mapstructure:"news"`
	Rationale    RationaleConfig    `yaml:"rationale" mapstructure:"rationale"`
	TalkTrack    TalkTrackConfig    `yaml:"talk_track" mapstructure:"talk_track"`
}

// RecencyConfig: full score inside FullDays, exponential decay until HorizonDays.
type RecencyConfig struct {
	Max          float64 `yaml:"max" mapstructure:"max"`
	FullDays     int     `yaml:"full_days" mapstructure:"full_days"`
	HalfLifeDays float64 `yaml:"half_life_days" mapstructure:"half_life_days"`
	HorizonDays  int     `yaml:"horizon_days" mapstructure:"horizon_days"`
}

// SeverityConfig holds the tier values, checked fatality first.
type SeverityConfig struct {
	Max            float64 `yaml:"max" mapstructure:"max"`
	Fatality       float64 `yaml:"fatality" mapstructure:"fatality"`
	Major          float64 `yaml:"major" mapstructure:"major"` // catastrophe or willful
	Mid            float64 `yaml:"mid" mapstructure:"mid"`     // serious, high penalty, many violations
	Low            float64 `yaml:"low" mapstructure:"low"`
	HighPenalty    float64 `yaml:"high_penalty" mapstructure:"high_penalty"`
	ManyViolations int     `yaml:"many_violations" mapstructure:"many_violations"`
}

// FrequencyConfig scores repeat incidents inside a trailing window.
type FrequencyConfig struct {
	Max        float64 `yaml:"max" mapstructure:"max"`
	WindowDays int     `yaml:"window_days" mapstructure:"window_days"`
	FullCount  int     `yaml:"full_count" mapstructure:"full_count"`
	HighCount  int     `yaml:"high_count" mapstructure:"high_count"`
	LowCount   int     `yaml:"low_count" mapstructure:"low_count"`
}

// LaggingConfig compares a DART rate against NAICS benchmarks.
type LaggingConfig struct {
	Max              float64            `yaml:"max" mapstructure:"max"`
	DefaultBenchmark float64            `yaml:"default_benchmark" mapstructure:"default_benchmark"`
	Benchmarks       map[string]float64 `yaml:"benchmarks" mapstructure:"benchmarks"`
	FullRatio        float64            `yaml:"full_ratio" mapstructure:"full_ratio"`
	HighRatio        float64            `yaml:"high_ratio" mapstructure:"high_ratio"`
	LowRatio         float64            `yaml:"low_ratio" mapstructure:"low_ratio"`
}

// TradeConfig lists trades that carry elevated risk.
type TradeConfig struct {
	Max            float64  `yaml:"max" mapstructure:"max"`
	Partial        float64  `yaml:"partial" mapstructure:"partial"`
	HighRiskTrades []string `yaml:"high_risk_trades" mapstructure:"high_risk_trades"`
}

// RelationshipConfig scores how certain the sub-to-target link is.
type RelationshipConfig struct {
	Max            float64 `yaml:"max" mapstructure:"max"`
	Detailed       float64 `yaml:"detailed" mapstructure:"detailed"`
	Partial        float64 `yaml:"partial" mapstructure:"partial"`
	ConfirmedCount int     `yaml:"confirmed_count" mapstructure:"confirmed_count"`
}

// NewsConfig scores negative keyword hits on news incidents.
type NewsConfig struct {
	Max              float64  `yaml:"max" mapstructure:"max"`
	TitleHit         float64  `yaml:"title_hit" mapstructure:"title_hit"`
	SummaryHit       float64  `yaml:"summary_hit" mapstructure:"summary_hit"`
	NegativeKeywords []string `yaml:"negative_keywords" mapstructure:"negative_keywords"`
}

// RationaleConfig holds the per-component materiality thresholds. A bullet
// is emitted only when the component is strictly above its threshold.
type RationaleConfig struct {
	Recency      float64 `yaml:"recency" mapstructure:"recency"`
	Severity     float64 `yaml:"severity" mapstructure:"severity"`
	Frequency    float64 `yaml:"frequency" mapstructure:"frequency"`
	Lagging      float64 `yaml:"lagging" mapstructure:"lagging"`
	Trade        float64 `yaml:"trade" mapstructure:"trade"`
	Relationship float64 `yaml:"relationship" mapstructure:"relationship"`
	News         float64 `yaml:"news" mapstructure:"news"`
}

// TalkTrackConfig holds the selection thresholds and display labels.
type TalkTrackConfig struct {
	Severity  float64           `yaml:"severity" mapstructure:"severity"`
	Frequency float64           `yaml:"frequency" mapstructure:"frequency"`
	Lagging   float64           `yaml:"lagging" mapstructure:"lagging"`
	Labels    map[string]string `yaml:"labels" mapstructure:"labels"`
}
