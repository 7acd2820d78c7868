package opportunity

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/model"
)

type oppKey struct{ target, incident int64 }

// memStore is an in-memory Store for testing.
type memStore struct {
	mu        sync.Mutex
	companies map[int64]*model.Company
	rels      []model.Relationship
	incidents []model.Incident
	metrics   map[int64]*model.LaggingMetric
	opps      map[oppKey]model.Opportunity
	runs      []model.RebuildRun
	locked    bool
	nextID    int64

	// relErrFor fails RelationshipsForSub for the given sub. upsertFailures
	// and recordFailures fail the next N calls with a serialization error.
	relErrFor      int64
	upsertFailures int
	recordFailures int
	upsertCalls    int
	lastQuery      IncidentFilter
}

func newMemStore() *memStore {
	return &memStore{
		companies: make(map[int64]*model.Company),
		metrics:   make(map[int64]*model.LaggingMetric),
		opps:      make(map[oppKey]model.Opportunity),
	}
}

func (m *memStore) addCompany(id int64, name string, role model.Role) {
	m.companies[id] = &model.Company{ID: id, Name: name, Role: role}
}

func (m *memStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CountIncidents(_ context.Context, companyID int64, categories []model.Category, since time.Time) (int, error) {
	var n int
	for _, inc := range m.incidents {
		if inc.CompanyID != companyID || inc.OccurredOn.Before(since) {
			continue
		}
		for _, c := range categories {
			if inc.Category == c {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *memStore) LatestMetric(_ context.Context, subID int64) (*model.LaggingMetric, error) {
	return m.metrics[subID], nil
}

func (m *memStore) RelationshipsForSub(_ context.Context, subID int64) ([]model.Relationship, error) {
	if m.relErrFor != 0 && subID == m.relErrFor {
		return nil, eris.New("connection reset")
	}
	var out []model.Relationship
	for _, r := range m.rels {
		if r.SubID == subID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) TryRebuildLock(_ context.Context, _ int64) (func(context.Context) error, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, false, nil
	}
	m.locked = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.locked = false
		return nil
	}, true, nil
}

func (m *memStore) ListQualifyingIncidents(_ context.Context, f IncidentFilter) ([]model.Incident, error) {
	m.lastQuery = f
	var out []model.Incident
	for _, inc := range m.incidents {
		if inc.SeverityHint < f.MinSeverity {
			continue
		}
		if f.Since != nil && inc.OccurredOn.Before(*f.Since) {
			continue
		}
		if f.Until != nil && inc.OccurredOn.After(*f.Until) {
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}

func (m *memStore) UpsertOpportunity(_ context.Context, o *model.Opportunity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertFailures > 0 {
		m.upsertFailures--
		return false, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	k := oppKey{o.TargetID, o.DriverIncidentID}
	existing, ok := m.opps[k]
	if ok {
		o.ID = existing.ID
	} else {
		m.nextID++
		o.ID = m.nextID
	}
	m.opps[k] = *o
	return !ok, nil
}

func (m *memStore) RecordRun(_ context.Context, run *model.RebuildRun) error {
	if m.recordFailures > 0 {
		m.recordFailures--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	m.runs = append(m.runs, *run)
	return nil
}
