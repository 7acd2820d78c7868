package scorer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
)

// Component names used as keys in Result.Components.
const (
	ComponentRecency      = "recency"
	ComponentSeverity     = "severity"
	ComponentFrequency    = "frequency"
	ComponentLagging      = "lagging"
	ComponentTrade        = "trade"
	ComponentRelationship = "relationship"
	ComponentNews         = "news"
)

// MaxScore caps the total propensity score.
const MaxScore = 100.0

// Store is the read-only data the scorer consults.
type Store interface {
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	CountIncidents(ctx context.Context, companyID int64, categories []model.Category, since time.Time) (int, error)
	LatestMetric(ctx context.Context, subID int64) (*model.LaggingMetric, error)
	RelationshipsForSub(ctx context.Context, subID int64) ([]model.Relationship, error)
}

// Evidence is everything about the driver incident's subcontractor that the
// components need. Any field may be empty.
type Evidence struct {
	Sub             *model.Company
	RecentIncidents int
	Metric          *model.LaggingMetric
	Relationships   []model.Relationship
}

// Result is the outcome of scoring one (target, incident) pair.
type Result struct {
	TargetID   int64              `json:"target_id"`
	IncidentID int64              `json:"incident_id"`
	Total      float64            `json:"total"`
	RawTotal   float64            `json:"-"` // unrounded; thresholds compare against it
	Components map[string]float64 `json:"components"`
	Rationale  []string           `json:"rationale"`
	TalkTrack  model.TalkTrack    `json:"talk_track"`
	Confidence float64            `json:"confidence"`
}

// Scorer computes propensity scores.
type Scorer struct {
	store Store
	cfg   config.ScorerConfig
	now   func() time.Time
}

// New creates a Scorer over the given store and scoring tables.
func New(store Store, cfg config.ScorerConfig) *Scorer {
	return &Scorer{store: store, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source used for recency and frequency windows.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Config returns the scoring tables in use.
func (s *Scorer) Config() config.ScorerConfig { return s.cfg }

// Score gathers evidence for the incident and scores it against target.
func (s *Scorer) Score(ctx context.Context, target *model.Company, incident *model.Incident) (*Result, error) {
	ev, err := s.Gather(ctx, incident)
	if err != nil {
		return nil, err
	}
	res := s.Compute(target, incident, ev)
	return &res, nil
}

// Gather loads the evidence about the incident's subcontractor. Missing data
// leaves the corresponding Evidence field empty.
func (s *Scorer) Gather(ctx context.Context, incident *model.Incident) (*Evidence, error) {
	subID := incident.CompanyID
	ev := &Evidence{}

	sub, err := s.store.GetCompany(ctx, subID)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: get sub %d", subID)
	}
	ev.Sub = sub

	since := s.now().AddDate(0, 0, -s.cfg.Frequency.WindowDays)
	ev.RecentIncidents, err = s.store.CountIncidents(ctx, subID, model.SafetyCategories, since)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: count incidents for sub %d", subID)
	}

	ev.Metric, err = s.store.LatestMetric(ctx, subID)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: latest metric for sub %d", subID)
	}

	ev.Relationships, err = s.store.RelationshipsForSub(ctx, subID)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: relationships for sub %d", subID)
	}

	return ev, nil
}

// Compute scores a (target, incident) pair from already gathered evidence.
// It performs no I/O.
func (s *Scorer) Compute(target *model.Company, incident *model.Incident, ev *Evidence) Result {
	return Compute(s.cfg, target, incident, ev, s.now())
}

// Compute is the pure scoring function.
func Compute(cfg config.ScorerConfig, target *model.Company, incident *model.Incident, ev *Evidence, now time.Time) Result {
	if ev == nil {
		ev = &Evidence{}
	}

	days := daysBetween(incident.OccurredOn, now)
	severity, severityDesc := scoreSeverity(cfg.Severity, incident.Details)
	lagging, ratio := scoreLagging(cfg.Lagging, ev.Sub, ev.Metric)
	trade, tradeTerm := scoreTrade(cfg.Trade, ev.Relationships, incident.Details)
	related := relationshipsWith(ev.Relationships, target.ID)

	components := map[string]float64{
		ComponentRecency:      scoreRecency(cfg.Recency, days),
		ComponentSeverity:     severity,
		ComponentFrequency:    scoreFrequency(cfg.Frequency, ev.RecentIncidents),
		ComponentLagging:      lagging,
		ComponentTrade:        trade,
		ComponentRelationship: scoreRelationship(cfg.Relationship, related),
		ComponentNews:         scoreNews(cfg.News, incident.Details),
	}

	var total float64
	for _, v := range components {
		total += v
	}
	total = math.Min(total, MaxScore)

	rc := cfg.Rationale
	var why []string
	if components[ComponentRecency] > rc.Recency {
		why = append(why, fmt.Sprintf("Recent incident (%d days ago)", days))
	}
	if components[ComponentSeverity] > rc.Severity && severityDesc != "" {
		why = append(why, "High severity: "+severityDesc)
	}
	if components[ComponentFrequency] > rc.Frequency {
		why = append(why, fmt.Sprintf("Multiple incidents (%d) in past %d months",
			ev.RecentIncidents, cfg.Frequency.WindowDays/30))
	}
	if components[ComponentLagging] > rc.Lagging {
		why = append(why, fmt.Sprintf("Subcontractor DART rate %.1fx industry benchmark", ratio))
	}
	if components[ComponentTrade] > rc.Trade {
		why = append(why, fmt.Sprintf("Involves high-risk trade (%s)", tradeTerm))
	}
	if components[ComponentRelationship] > rc.Relationship {
		why = append(why, fmt.Sprintf("Confirmed relationship with %s (%d on record)", target.Name, len(related)))
	}
	if components[ComponentNews] > rc.News {
		why = append(why, "Negative media coverage")
	}

	confidence := 0.5
	if cfg.Relationship.Max > 0 {
		confidence += 0.5 * components[ComponentRelationship] / cfg.Relationship.Max
	}

	for k, v := range components {
		components[k] = round2(v)
	}

	return Result{
		TargetID:   target.ID,
		IncidentID: incident.ID,
		Total:      round2(total),
		RawTotal:   total,
		Components: components,
		Rationale:  why,
		TalkTrack:  selectTalkTrack(cfg.TalkTrack, components),
		Confidence: round2(confidence),
	}
}

// Label returns the display label for a talk-track.
func Label(cfg config.ScorerConfig, t model.TalkTrack) string {
	if l, ok := cfg.TalkTrack.Labels[string(t)]; ok && l != "" {
		return l
	}
	if l, ok := DefaultConfig().TalkTrack.Labels[string(t)]; ok {
		return l
	}
	return string(t)
}

// daysBetween returns whole days elapsed from occurred to now. Future dates count as 0.
func daysBetween(occurred, now time.Time) int {
	d := now.Sub(occurred)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// scoreRecency gives the full cap within FullDays, then decays exponentially
// until the horizon, after which it is 0.
func scoreRecency(c config.RecencyConfig, days int) float64 {
	switch {
	case days <= c.FullDays:
		return c.Max
	case days <= c.HorizonDays:
		return c.Max * math.Exp(-float64(days)/c.HalfLifeDays)
	default:
		return 0
	}
}

// classifySeverity returns the first matching tier and its description.
// Checks run fatality, catastrophe, willful, serious, high penalty, violation count.
func classifySeverity(c config.SeverityConfig, d model.Details) (float64, string) {
	var (
		fatality, catastrophe bool
		v                     model.Violation
	)
	switch det := d.(type) {
	case *model.AccidentDetails:
		fatality, catastrophe, v = det.Fatality, det.Catastrophe, det.Violation
	case *model.InspectionDetails:
		v = det.Violation
	case *model.CitationDetails:
		v = det.Violation
	}

	switch {
	case fatality:
		return c.Fatality, "Fatality incident"
	case catastrophe:
		return c.Major, "Catastrophic incident"
	case v.Class.Is(model.ClassWillful):
		return c.Major, "Willful OSHA violation"
	case v.Class.Is(model.ClassSerious):
		return c.Mid, "Serious violation"
	case v.Penalty > c.HighPenalty:
		return c.Mid, message.NewPrinter(language.English).Sprintf("High penalty ($%d)", int64(v.Penalty))
	case c.ManyViolations > 0 && v.Count >= c.ManyViolations:
		return c.Mid, fmt.Sprintf("Multiple violations (%d)", v.Count)
	default:
		return c.Low, ""
	}
}

func scoreSeverity(c config.SeverityConfig, d model.Details) (float64, string) {
	score, desc := classifySeverity(c, d)
	return math.Min(score, c.Max), desc
}

func scoreFrequency(c config.FrequencyConfig, count int) float64 {
	switch {
	case count >= c.FullCount:
		return c.Max
	case count >= c.HighCount:
		return c.Max * 2 / 3
	case count >= c.LowCount:
		return c.Max / 3
	default:
		return 0
	}
}

// benchmarkFor looks up a DART benchmark by NAICS code, walking up the
// hierarchy (238120, 23812, 2381, 238, 23) before falling back to the default.
func benchmarkFor(c config.LaggingConfig, naics string) float64 {
	code := strings.TrimSpace(naics)
	for len(code) >= 2 {
		if b, ok := c.Benchmarks[code]; ok && b > 0 {
			return b
		}
		code = code[:len(code)-1]
	}
	return c.DefaultBenchmark
}

// scoreLagging returns the component value and the rate-to-benchmark ratio.
func scoreLagging(c config.LaggingConfig, sub *model.Company, m *model.LaggingMetric) (float64, float64) {
	if m == nil {
		return 0, 0
	}
	rate, ok := m.Rate()
	if !ok {
		return 0, 0
	}
	var naics string
	if sub != nil {
		naics = sub.NAICS
	}
	benchmark := benchmarkFor(c, naics)
	if benchmark <= 0 {
		return 0, 0
	}

	ratio := rate / benchmark
	switch {
	case ratio >= c.FullRatio:
		return c.Max, ratio
	case ratio >= c.HighRatio:
		return c.Max * 2 / 3, ratio
	case ratio >= c.LowRatio:
		return c.Max / 3, ratio
	default:
		return 0, ratio
	}
}

// scoreTrade checks the sub's relationship trades first, then the incident text.
// It returns the matched trade term.
func scoreTrade(c config.TradeConfig, rels []model.Relationship, d model.Details) (float64, string) {
	for _, r := range rels {
		if r.Trade == "" {
			continue
		}
		if m := matchKeywords(c.HighRiskTrades, r.Trade); len(m) > 0 {
			return c.Max, m[0]
		}
	}
	if d != nil {
		if m := matchKeywords(c.HighRiskTrades, d.Text()); len(m) > 0 {
			return c.Partial, m[0]
		}
	}
	return 0, ""
}

func relationshipsWith(rels []model.Relationship, targetID int64) []model.Relationship {
	var out []model.Relationship
	for _, r := range rels {
		if r.Involves(targetID) {
			out = append(out, r)
		}
	}
	return out
}

func scoreRelationship(c config.RelationshipConfig, related []model.Relationship) float64 {
	switch {
	case len(related) >= c.ConfirmedCount:
		return c.Max
	case len(related) == 1 && related[0].FullyDetailed():
		return c.Detailed
	case len(related) == 1:
		return c.Partial
	default:
		return 0
	}
}

// scoreNews applies only to news incidents. A keyword found in the title
// scores TitleHit; otherwise a hit in the summary scores SummaryHit.
func scoreNews(c config.NewsConfig, d model.Details) float64 {
	news, ok := d.(*model.NewsDetails)
	if !ok {
		return 0
	}
	title := strings.ToLower(news.Title)
	summary := strings.ToLower(news.Summary)

	var score float64
	for _, kw := range c.NegativeKeywords {
		kw = strings.ToLower(kw)
		switch {
		case strings.Contains(title, kw):
			score += c.TitleHit
		case strings.Contains(summary, kw):
			score += c.SummaryHit
		}
	}
	return math.Min(score, c.Max)
}

func selectTalkTrack(c config.TalkTrackConfig, components map[string]float64) model.TalkTrack {
	switch {
	case components[ComponentSeverity] > c.Severity:
		return model.TalkTrackPostIncident
	case components[ComponentFrequency] > c.Frequency:
		return model.TalkTrackTrendAnalysis
	case components[ComponentLagging] > c.Lagging:
		return model.TalkTrackPortfolioRisk
	default:
		return model.TalkTrackComplianceGaps
	}
}

// matchKeywords returns which keywords appear (case-insensitive) in any of the texts.
func matchKeywords(keywords []string, texts ...string) []string {
	var combined string
	for _, t := range texts {
		if t != "" {
			combined += " " + strings.ToLower(t)
		}
	}
	if combined == "" {
		return nil
	}

	var matched []string
	for _, kw := range keywords {
		if strings.Contains(combined, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LogResult emits a debug line summarizing a score.
func LogResult(r Result) {
	zap.L().Debug("scorer: scored pair",
		zap.Int64("target_id", r.TargetID),
		zap.Int64("incident_id", r.IncidentID),
		zap.Float64("total", r.Total),
		zap.String("talk_track", string(r.TalkTrack)),
	)
}
