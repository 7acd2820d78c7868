package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/normalize"
)

// CreatePolicy controls what FindOrCreate does when Resolve finds nothing.
type CreatePolicy struct {
	// Create allows inserting a new canonical company.
	Create bool
	// Role assigned to a created company. Empty means RoleUnknown.
	Role model.Role
	// NAICS and State are copied onto a created company.
	NAICS string
	State string
}

// LookupOnly never creates.
var LookupOnly = CreatePolicy{}

// CreateAs returns a policy that creates companies with the given role.
func CreateAs(role model.Role) CreatePolicy {
	return CreatePolicy{Create: true, Role: role}
}

// FindOrCreate resolves name and, when the policy allows, creates a new
// canonical company on NotFound. A duplicate-insert race is settled by
// retrying the lookup. Returns the company and whether it was created; a
// blank name or a lookup-only miss returns (nil, false, nil).
func (r *Resolver) FindOrCreate(ctx context.Context, name string, policy CreatePolicy) (*model.Company, bool, error) {
	name = strings.TrimSpace(name)
	normalized := normalize.Name(name)
	if normalized == "" {
		return nil, false, nil
	}

	existing, err := r.Resolve(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil || !policy.Create {
		return existing, false, nil
	}

	role := policy.Role
	if role == "" {
		role = model.RoleUnknown
	}
	c := &model.Company{
		Name:           name,
		NormalizedName: normalized,
		Role:           role,
		NAICS:          policy.NAICS,
		State:          policy.State,
	}
	if err := r.store.CreateCompany(ctx, c); err != nil {
		if !isDuplicate(err) {
			return nil, false, eris.Wrapf(err, "resolve: create company %q", name)
		}
		// Another writer created it first.
		existing, err := r.store.FindByNormalizedName(ctx, normalized)
		if err != nil {
			return nil, false, eris.Wrap(err, "resolve: lookup after duplicate")
		}
		if existing == nil {
			return nil, false, eris.Errorf("resolve: company %q reported duplicate but not found", name)
		}
		zap.L().Debug("resolve: lost create race", zap.String("normalized", normalized))
		return existing, false, nil
	}

	zap.L().Info("resolve: created new company",
		zap.String("name", name),
		zap.String("role", string(role)),
		zap.Int64("company_id", c.ID),
	)
	return c, true, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, db.ErrDuplicate)
}
