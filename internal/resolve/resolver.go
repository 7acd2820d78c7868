// Package resolve maps free-text company names onto the canonical company registry.
package resolve

import (
	"cmp"
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/normalize"
)

// Store is the registry the resolver reads and writes.
// Lookups return (nil, nil) when nothing matches. Creates return an error
// wrapping db.ErrDuplicate when a unique key already exists.
type Store interface {
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	FindByNormalizedName(ctx context.Context, normalized string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListAliases(ctx context.Context) ([]model.CompanyAlias, error)
	FindAlias(ctx context.Context, companyID int64, alias string) (*model.CompanyAlias, error)
	CreateAlias(ctx context.Context, a *model.CompanyAlias) error
	CreateCompany(ctx context.Context, c *model.Company) error
}

// Match is a fuzzy search hit.
type Match struct {
	Company model.Company `json:"company"`
	Score   float64       `json:"score"`
}

// Resolver performs exact and fuzzy company resolution.
type Resolver struct {
	store Store
	cfg   config.ResolveConfig
	sim   Similarity
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSimilarity swaps the similarity backend.
func WithSimilarity(s Similarity) Option {
	return func(r *Resolver) { r.sim = s }
}

// NewResolver creates a resolver with the given thresholds.
func NewResolver(store Store, cfg config.ResolveConfig, opts ...Option) *Resolver {
	r := &Resolver{store: store, cfg: cfg, sim: DefaultSimilarity}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the company a raw name refers to, or nil when there is no
// confident match. It never creates records.
//
// Passes:
//  1. Exact normalized-name lookup
//  2. Best fuzzy candidate, accepted only at or above AutoMatchThreshold
func (r *Resolver) Resolve(ctx context.Context, name string) (*model.Company, error) {
	normalized := normalize.Name(name)
	if normalized == "" {
		return nil, nil
	}

	existing, err := r.store.FindByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: exact lookup")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by normalized name",
			zap.String("normalized", normalized),
			zap.Int64("company_id", existing.ID),
		)
		return existing, nil
	}

	matches, err := r.findSimilar(ctx, normalized, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 && matches[0].Score >= r.cfg.AutoMatchThreshold {
		zap.L().Debug("resolve: matched by fuzzy name",
			zap.String("normalized", normalized),
			zap.Int64("company_id", matches[0].Company.ID),
			zap.Float64("score", matches[0].Score),
		)
		return &matches[0].Company, nil
	}

	return nil, nil
}

// FindSimilar scores name against every company name and alias, keeps hits at
// or above FuzzyThreshold, and returns at most limit companies ordered by
// score descending then company id ascending. limit <= 0 uses the configured
// SimilarLimit.
func (r *Resolver) FindSimilar(ctx context.Context, name string, limit int) ([]Match, error) {
	normalized := normalize.Name(name)
	if normalized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = r.cfg.SimilarLimit
	}
	return r.findSimilar(ctx, normalized, limit)
}

func (r *Resolver) findSimilar(ctx context.Context, normalized string, limit int) ([]Match, error) {
	var (
		companies []model.Company
		aliases   []model.CompanyAlias
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		companies, err = r.store.ListCompanies(gctx)
		return eris.Wrap(err, "resolve: list companies")
	})
	g.Go(func() error {
		var err error
		aliases, err = r.store.ListAliases(gctx)
		return eris.Wrap(err, "resolve: list aliases")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Company, len(companies))
	best := make(map[int64]float64)
	consider := func(id int64, candidate string) {
		score := r.sim.Score(normalized, candidate)
		if score < r.cfg.FuzzyThreshold {
			return
		}
		if prev, ok := best[id]; !ok || score > prev {
			best[id] = score
		}
	}

	for _, c := range companies {
		byID[c.ID] = c
		consider(c.ID, c.NormalizedName)
	}
	for _, a := range aliases {
		if _, ok := byID[a.CompanyID]; !ok {
			continue
		}
		consider(a.CompanyID, normalize.Name(a.Alias))
	}

	matches := make([]Match, 0, len(best))
	for id, score := range best {
		matches = append(matches, Match{Company: byID[id], Score: score})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Company.ID, b.Company.ID)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AddAlias registers an alternate name for a company. It is a no-op when the
// normalized alias is already registered for that company or normalizes to
// empty. It reports whether an alias was created.
func (r *Resolver) AddAlias(ctx context.Context, companyID int64, alias string, confidence float64) (bool, error) {
	normalized := normalize.Name(alias)
	if normalized == "" {
		return false, nil
	}
	if confidence < 0 || confidence > 1 {
		return false, eris.Errorf("resolve: alias confidence %.2f out of range [0,1]", confidence)
	}

	existing, err := r.store.FindAlias(ctx, companyID, normalized)
	if err != nil {
		return false, eris.Wrap(err, "resolve: find alias")
	}
	if existing != nil {
		return false, nil
	}

	a := &model.CompanyAlias{CompanyID: companyID, Alias: normalized, Confidence: confidence}
	if err := r.store.CreateAlias(ctx, a); err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "resolve: create alias for company %d", companyID)
	}

	zap.L().Debug("resolve: added alias",
		zap.Int64("company_id", companyID),
		zap.String("alias", normalized),
	)
	return true, nil
}
