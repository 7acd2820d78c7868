package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	// Rebuild holds one connection for its advisory lock.
	if maxConns < 2 {
		maxConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewWithPool wraps an existing pool. Close does not close it.
func NewWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// insertErr maps a unique violation to db.ErrDuplicate.
func insertErr(err error, action string) error {
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(db.ErrDuplicate, "postgres: %s", action)
	}
	return eris.Wrapf(err, "postgres: %s", action)
}

const companyColumns = `id, name, normalized_name, role, naics, state, created_at`

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Role, &c.NAICS, &c.State, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) getCompanyBy(ctx context.Context, where string, arg any) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	c, err := s.getCompanyBy(ctx, `id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	return c, nil
}

func (s *PostgresStore) FindByNormalizedName(ctx context.Context, normalized string) (*model.Company, error) {
	c, err := s.getCompanyBy(ctx, `normalized_name = $1`, normalized)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find company %q", normalized)
	}
	return c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (name, normalized_name, role, naics, state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		c.Name, c.NormalizedName, string(c.Role), c.NAICS, c.State,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return insertErr(err, "create company")
	}
	return nil
}

const aliasColumns = `id, company_id, alias, confidence, created_at`

func scanAlias(row pgx.Row) (*model.CompanyAlias, error) {
	var a model.CompanyAlias
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Alias, &a.Confidence, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListAliases(ctx context.Context) ([]model.CompanyAlias, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+aliasColumns+` FROM company_aliases ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aliases")
	}
	defer rows.Close()

	var out []model.CompanyAlias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list aliases iterate")
}

func (s *PostgresStore) FindAlias(ctx context.Context, companyID int64, alias string) (*model.CompanyAlias, error) {
	a, err := scanAlias(s.pool.QueryRow(ctx,
		`SELECT `+aliasColumns+` FROM company_aliases WHERE company_id = $1 AND alias = $2`,
		companyID, alias,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find alias %q", alias)
	}
	return a, nil
}

func (s *PostgresStore) CreateAlias(ctx context.Context, a *model.CompanyAlias) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO company_aliases (company_id, alias, confidence)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		a.CompanyID, a.Alias, a.Confidence,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return insertErr(err, "create alias")
	}
	return nil
}
