package ingest

import (
	"context"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
)

// memStore is an in-memory registry implementing resolve.Store and Store.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	companies     []model.Company
	aliases       []model.CompanyAlias
	projects      []model.Project
	relationships []model.Relationship
	incidents     []model.Incident
	metrics       []model.LaggingMetric

	relationshipErr error
	bulkMetricsErr  error
	bulkCalls       int
}

func newMemStore() *memStore { return &memStore{nextID: 100} }

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindByNormalizedName(_ context.Context, normalized string) (*model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.NormalizedName == normalized {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListCompanies(_ context.Context) ([]model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.companies), nil
}

func (s *memStore) ListAliases(_ context.Context) ([]model.CompanyAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.aliases), nil
}

func (s *memStore) FindAlias(_ context.Context, companyID int64, alias string) (*model.CompanyAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.aliases {
		if a.CompanyID == companyID && a.Alias == alias {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateAlias(_ context.Context, a *model.CompanyAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.aliases = append(s.aliases, *a)
	return nil
}

func (s *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.companies = append(s.companies, *c)
	return nil
}

func (s *memStore) FindProjectByName(_ context.Context, name string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.projects = append(s.projects, *p)
	return nil
}

func (s *memStore) CreateRelationship(_ context.Context, r *model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.relationshipErr != nil {
		return s.relationshipErr
	}
	r.ID = s.id()
	s.relationships = append(s.relationships, *r)
	return nil
}

func (s *memStore) CreateIncident(_ context.Context, i *model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.incidents {
		if e.Source == i.Source && e.Category == i.Category && e.CompanyID == i.CompanyID &&
			e.OccurredOn.Equal(i.OccurredOn) && e.Link == i.Link {
			return eris.Wrap(db.ErrDuplicate, "store: create incident")
		}
	}
	i.ID = s.id()
	s.incidents = append(s.incidents, *i)
	return nil
}

func (s *memStore) UpsertMetric(_ context.Context, m *model.LaggingMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx, e := range s.metrics {
		if e.SubID == m.SubID && e.Year == m.Year {
			m.ID = e.ID
			s.metrics[idx] = *m
			return nil
		}
	}
	m.ID = s.id()
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *memStore) BulkUpsertMetrics(ctx context.Context, metrics []model.LaggingMetric) (int64, error) {
	s.bulkCalls++
	if s.bulkMetricsErr != nil {
		return 0, s.bulkMetricsErr
	}
	for i := range metrics {
		if err := s.UpsertMetric(ctx, &metrics[i]); err != nil {
			return 0, err
		}
	}
	return int64(len(metrics)), nil
}

func (s *memStore) companyByName(normalized string) *model.Company {
	c, _ := s.FindByNormalizedName(context.Background(), normalized)
	return c
}
