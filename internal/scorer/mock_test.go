package scorer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/propensity-cli/internal/model"
)

// mockStore implements Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) CountIncidents(ctx context.Context, companyID int64, categories []model.Category, since time.Time) (int, error) {
	args := m.Called(ctx, companyID, categories, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) LatestMetric(ctx context.Context, subID int64) (*model.LaggingMetric, error) {
	args := m.Called(ctx, subID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LaggingMetric), args.Error(1)
}

func (m *mockStore) RelationshipsForSub(ctx context.Context, subID int64) ([]model.Relationship, error) {
	args := m.Called(ctx, subID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Relationship), args.Error(1)
}
