package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/model"
)

// DefaultTimingBuffer widens a project's date range when matching incidents.
const DefaultTimingBuffer = 180 * 24 * time.Hour

// ProjectFinder looks up projects whose location contains a substring, ignoring case.
type ProjectFinder interface {
	ProjectsByLocation(ctx context.Context, location string) ([]model.Project, error)
}

// SuggestRelationships proposes unconfirmed relationships for a sub by finding
// projects at the incident location whose timeline (widened by buffer) covers
// the incident date. Projects without a GC are skipped. Nothing is persisted.
func SuggestRelationships(ctx context.Context, finder ProjectFinder, subID int64, location string, occurredOn time.Time, buffer time.Duration) ([]model.Relationship, error) {
	location = strings.TrimSpace(location)
	if location == "" || occurredOn.IsZero() {
		return nil, nil
	}

	projects, err := finder.ProjectsByLocation(ctx, location)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: projects near %q", location)
	}

	var out []model.Relationship
	for _, p := range projects {
		if p.GCID == nil || !timingCompatible(occurredOn, p.StartDate, p.EndDate, buffer) {
			continue
		}
		id := p.ID
		out = append(out, model.Relationship{
			SubID:     subID,
			GCID:      p.GCID,
			OwnerID:   p.OwnerID,
			ProjectID: &id,
		})
	}
	return out, nil
}

// timingCompatible treats projects without a full date range as compatible.
func timingCompatible(at time.Time, start, end *time.Time, buffer time.Duration) bool {
	if start == nil || end == nil {
		return true
	}
	return !at.Before(start.Add(-buffer)) && !at.After(end.Add(buffer))
}
