package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"labdocs/internal/model"
	repomocks "labdocs/internal/repository/mocks"
)

func TestShareRegistry_Grant(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: "doc-1", OwnerID: "owner-1", State: model.StateActive}

	t.Run("grants to new users and reports them", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("ListByDocument", ctx, "doc-1").Return([]model.ShareGrant{}, nil)
		for _, id := range []string{"u-1", "u-2"} {
			g := model.ShareGrant{DocumentID: "doc-1", GranteeID: id, CanEdit: true}
			repo.On("Upsert", ctx, g).Return(&g, nil)
		}

		res, err := NewShareRegistry(repo).Grant(ctx, doc, []string{"u-1", "u-2"}, true, false)

		assert.NoError(t, err)
		assert.Len(t, res.Grants, 2)
		assert.Equal(t, []string{"u-1", "u-2"}, res.NewGrantees)
		repo.AssertExpectations(t)
	})

	t.Run("re-granting overwrites flags and is not a new grantee", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("ListByDocument", ctx, "doc-1").Return([]model.ShareGrant{
			{DocumentID: "doc-1", GranteeID: "u-1", CanEdit: false},
		}, nil)
		upgraded := model.ShareGrant{DocumentID: "doc-1", GranteeID: "u-1", CanEdit: true, CanDelete: true}
		repo.On("Upsert", ctx, upgraded).Return(&upgraded, nil)

		res, err := NewShareRegistry(repo).Grant(ctx, doc, []string{"u-1"}, true, true)

		assert.NoError(t, err)
		assert.Len(t, res.Grants, 1)
		assert.True(t, res.Grants[0].CanEdit)
		assert.Empty(t, res.NewGrantees)
	})

	t.Run("duplicate grantee ids collapse to one upsert", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("ListByDocument", ctx, "doc-1").Return([]model.ShareGrant{}, nil)
		g := model.ShareGrant{DocumentID: "doc-1", GranteeID: "u-1"}
		repo.On("Upsert", ctx, g).Return(&g, nil).Once()

		res, err := NewShareRegistry(repo).Grant(ctx, doc, []string{"u-1", "u-1"}, false, false)

		assert.NoError(t, err)
		assert.Len(t, res.Grants, 1)
		repo.AssertExpectations(t)
	})

	t.Run("owner as grantee fails the whole call before any write", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)

		_, err := NewShareRegistry(repo).Grant(ctx, doc, []string{"u-1", "owner-1"}, false, false)

		assert.ErrorIs(t, err, ErrValidation)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("empty grantee list fails", func(t *testing.T) {
		_, err := NewShareRegistry(new(repomocks.MockShareRepository)).Grant(ctx, doc, nil, false, false)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("empty grantee id fails", func(t *testing.T) {
		_, err := NewShareRegistry(new(repomocks.MockShareRepository)).Grant(ctx, doc, []string{""}, false, false)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestShareRegistry_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("removes an existing grant", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("Delete", ctx, "doc-1", "u-1").Return(true, nil)

		assert.NoError(t, NewShareRegistry(repo).Revoke(ctx, "doc-1", "u-1"))
		repo.AssertExpectations(t)
	})

	t.Run("missing grant yields not found", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("Delete", ctx, "doc-1", "u-1").Return(false, nil)

		err := NewShareRegistry(repo).Revoke(ctx, "doc-1", "u-1")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		repo := new(repomocks.MockShareRepository)
		repo.On("Delete", ctx, "doc-1", "u-1").Return(false, errors.New("db down"))

		err := NewShareRegistry(repo).Revoke(ctx, "doc-1", "u-1")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty grantee id fails validation", func(t *testing.T) {
		err := NewShareRegistry(new(repomocks.MockShareRepository)).Revoke(ctx, "doc-1", "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
