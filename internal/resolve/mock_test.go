package resolve

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
)

// memStore is an in-memory Store for testing.
type memStore struct {
	mu        sync.Mutex
	companies []model.Company
	aliases   []model.CompanyAlias
	projects  []model.Project
	nextID    int64

	// raceOnCreate simulates another writer inserting the company first.
	raceOnCreate bool
	listErr      error
	creates      int
}

func newMemStore(companies ...model.Company) *memStore {
	s := &memStore{nextID: 1000}
	s.companies = append(s.companies, companies...)
	return s
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
	if s.listErr != nil {
		return nil, s.listErr
	}
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
	s.nextID++
	a.ID = s.nextID
	s.aliases = append(s.aliases, *a)
	return nil
}

func (s *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if s.raceOnCreate {
		s.raceOnCreate = false
		winner := *c
		winner.ID = s.nextID
		s.companies = append(s.companies, winner)
		return eris.Wrap(db.ErrDuplicate, "store: create company")
	}
	s.creates++
	c.ID = s.nextID
	s.companies = append(s.companies, *c)
	return nil
}

func (s *memStore) ProjectsByLocation(_ context.Context, location string) ([]model.Project, error) {
	var out []model.Project
	for _, p := range s.projects {
		if strings.Contains(strings.ToLower(p.Location), strings.ToLower(location)) {
			out = append(out, p)
		}
	}
	return out, nil
}
