package mocks

import (
	"context"

	"labdocs/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockShareRepository struct {
	mock.Mock
}

func (m *MockShareRepository) Upsert(ctx context.Context, g model.ShareGrant) (*model.ShareGrant, error) {
	args := m.Called(ctx, g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareGrant), args.Error(1)
}

func (m *MockShareRepository) Delete(ctx context.Context, docID, granteeID string) (bool, error) {
	args := m.Called(ctx, docID, granteeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockShareRepository) ListByDocument(ctx context.Context, docID string) ([]model.ShareGrant, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShareGrant), args.Error(1)
}
