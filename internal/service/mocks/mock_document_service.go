package mocks

import (
	"context"
	"io"
	"time"

	"labdocs/internal/model"
	"labdocs/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, principal model.Principal, r io.Reader, in service.CreateInput) (*model.Document, error) {
	args := m.Called(ctx, principal, r, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, principal model.Principal, id string, facts service.AccessFacts) (*model.Document, error) {
	args := m.Called(ctx, principal, id, facts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, principal model.Principal, f service.ListFilter, page, limit int) (*service.DocumentPage, error) {
	args := m.Called(ctx, principal, f, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPage), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, principal model.Principal, id string, facts service.AccessFacts) (io.ReadCloser, *model.Document, error) {
	args := m.Called(ctx, principal, id, facts)
	var rc io.ReadCloser
	if args.Get(0) != nil {
		rc = args.Get(0).(io.ReadCloser)
	}
	var doc *model.Document
	if args.Get(1) != nil {
		doc = args.Get(1).(*model.Document)
	}
	return rc, doc, args.Error(2)
}

func (m *MockDocumentService) PresignDownload(ctx context.Context, principal model.Principal, id string, facts service.AccessFacts, expiry time.Duration) (string, error) {
	args := m.Called(ctx, principal, id, facts, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) UpdateMetadata(ctx context.Context, principal model.Principal, id string, patch service.MetadataPatch) (*model.Document, error) {
	args := m.Called(ctx, principal, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Share(ctx context.Context, principal model.Principal, id string, granteeIDs []string, canEdit, canDelete bool) ([]model.ShareGrant, error) {
	args := m.Called(ctx, principal, id, granteeIDs, canEdit, canDelete)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShareGrant), args.Error(1)
}

func (m *MockDocumentService) Revoke(ctx context.Context, principal model.Principal, id, granteeID string) error {
	args := m.Called(ctx, principal, id, granteeID)
	return args.Error(0)
}

func (m *MockDocumentService) Link(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string) (*model.Document, error) {
	args := m.Called(ctx, principal, id, kind, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Unlink(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string, facts service.AccessFacts) (*model.Document, error) {
	args := m.Called(ctx, principal, id, kind, entityID, facts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Trash(ctx context.Context, principal model.Principal, id string) (*model.Document, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Restore(ctx context.Context, principal model.Principal, id string) (*model.Document, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Purge(ctx context.Context, principal model.Principal, id string) error {
	args := m.Called(ctx, principal, id)
	return args.Error(0)
}

func (m *MockDocumentService) Sweep(ctx context.Context, principal model.Principal) (int, error) {
	args := m.Called(ctx, principal)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentService) Favorite(ctx context.Context, principal model.Principal, id string, facts service.AccessFacts) error {
	args := m.Called(ctx, principal, id, facts)
	return args.Error(0)
}

func (m *MockDocumentService) Unfavorite(ctx context.Context, principal model.Principal, id string) error {
	args := m.Called(ctx, principal, id)
	return args.Error(0)
}
