package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resolve"
)

// IncidentRecord is the normalized record handed over by source adapters.
type IncidentRecord struct {
	Source       string         `json:"source" validate:"required"`
	Category     string         `json:"category" validate:"required"`
	CompanyName  string         `json:"company_name" validate:"required"`
	OccurredOn   time.Time      `json:"occurred_on" validate:"required"`
	SeverityHint float64        `json:"severity_hint" validate:"gte=0,lte=100"`
	Attributes   map[string]any `json:"attributes"`
	Link         string         `json:"link"`
}

// UnmarshalJSON accepts occurred_on as RFC 3339 or any upload date layout.
func (r *IncidentRecord) UnmarshalJSON(data []byte) error {
	type plain IncidentRecord
	aux := struct {
		*plain
		OccurredOn string `json:"occurred_on"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := parseDate("occurred_on", aux.OccurredOn)
	if err != nil {
		return err
	}
	if t != nil {
		r.OccurredOn = *t
	}
	return nil
}

// ReadIncidents decodes a JSON array of records or newline-delimited JSON.
func ReadIncidents(r io.Reader) ([]IncidentRecord, error) {
	br := bufio.NewReader(r)
	dec := json.NewDecoder(br)

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read incidents")
	}
	if first == '[' {
		var out []IncidentRecord
		if err := dec.Decode(&out); err != nil {
			return nil, eris.Wrap(err, "ingest: decode incident array")
		}
		return out, nil
	}

	var out []IncidentRecord
	for {
		var rec IncidentRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: decode incident %d", len(out)+1)
		}
		out = append(out, rec)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.Discard(1); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

// Attribute keys carrying hints about the subcontractor and project.
const (
	attrNAICS   = "naics"
	attrState   = "state"
	attrProject = "project_name"
)

// Incidents stores adapter records. The subcontractor is resolved or created
// with role Sub, and lagging-metric records also update the sub's metrics.
// A record already stored (same source, category, company, date and link) is
// counted as processed but not created.
func (im *Importer) Incidents(ctx context.Context, records []IncidentRecord) (*Result, error) {
	res := &Result{}
	log := zap.L().With(zap.String("component", "ingest.incidents"))

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: incidents cancelled")
		}
		created, err := im.ingestIncident(ctx, rec)
		if err != nil {
			log.Warn("ingest: incident failed",
				zap.Int("record", i+1),
				zap.String("source", rec.Source),
				zap.Error(err),
			)
			res.fail(i+1, err)
			continue
		}
		res.Processed++
		res.Created += created
	}

	log.Info("ingest: incidents ingested",
		zap.Int("records", len(records)),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (im *Importer) ingestIncident(ctx context.Context, rec IncidentRecord) (int, error) {
	rec.Source = strings.TrimSpace(rec.Source)
	rec.CompanyName = strings.TrimSpace(rec.CompanyName)
	if err := validateRow(rec); err != nil {
		return 0, err
	}

	category, err := model.ParseCategory(rec.Category)
	if err != nil {
		return 0, err
	}
	details, err := model.DecodeAttributes(category, rec.Attributes)
	if err != nil {
		return 0, err
	}

	policy := resolve.CreateAs(model.RoleSub)
	policy.NAICS = stringAttr(rec.Attributes, attrNAICS)
	policy.State = stringAttr(rec.Attributes, attrState)
	sub, isNew, err := im.resolver.FindOrCreate(ctx, rec.CompanyName, policy)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, eris.Errorf("company_name %q normalizes to empty", rec.CompanyName)
	}
	created := 0
	if isNew {
		created++
	}

	inc := &model.Incident{
		Source:       rec.Source,
		Category:     category,
		CompanyID:    sub.ID,
		OccurredOn:   rec.OccurredOn,
		SeverityHint: rec.SeverityHint,
		Details:      details,
		Link:         rec.Link,
	}
	if name := stringAttr(rec.Attributes, attrProject); name != "" {
		p, err := im.store.FindProjectByName(ctx, name)
		if err != nil {
			return created, eris.Wrap(err, "ingest: find project")
		}
		if p != nil {
			inc.ProjectID = &p.ID
		}
	}

	if err := im.store.CreateIncident(ctx, inc); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return created, nil
		}
		return created, eris.Wrap(err, "ingest: create incident")
	}
	created++

	if lm, ok := details.(*model.LaggingMetricDetails); ok {
		if err := im.store.UpsertMetric(ctx, metricFrom(sub.ID, rec, lm)); err != nil {
			return created, eris.Wrap(err, "ingest: upsert metric")
		}
	}
	return created, nil
}

func metricFrom(subID int64, rec IncidentRecord, lm *model.LaggingMetricDetails) *model.LaggingMetric {
	year := lm.Year
	if year == 0 {
		year = rec.OccurredOn.Year()
	}
	return &model.LaggingMetric{
		SubID:       subID,
		Year:        year,
		Recordables: lm.Recordables,
		DARTs:       lm.DARTs,
		HoursWorked: lm.HoursWorked,
		DARTRate:    lm.DARTRate,
		SourceLink:  rec.Link,
	}
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return strings.TrimSpace(s)
}
