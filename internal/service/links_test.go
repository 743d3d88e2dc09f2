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

func linkableDoc() *model.Document {
	return &model.Document{
		ID:      "doc-1",
		OwnerID: "owner-1",
		State:   model.StateActive,
	}
}

func TestLinkRegistry_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("fills an empty slot", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("SetLink", ctx, "doc-1", model.KindActivity, "act-1").Return(true, nil)

		doc := linkableDoc()
		reg := NewLinkRegistry(repo)
		err := reg.Link(ctx, doc, model.KindActivity, "act-1")

		assert.NoError(t, err)
		assert.Equal(t, "act-1", doc.Links[model.KindActivity])
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		reg := NewLinkRegistry(repo)

		err := reg.Link(ctx, linkableDoc(), "committee", "c-1")

		assert.ErrorIs(t, err, ErrValidation)
		repo.AssertNotCalled(t, "SetLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects empty entity id", func(t *testing.T) {
		reg := NewLinkRegistry(new(repomocks.MockDocumentRepository))
		err := reg.Link(ctx, linkableDoc(), model.KindProject, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("occupied slot fails even for the same entity", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		reg := NewLinkRegistry(repo)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		assert.ErrorIs(t, reg.Link(ctx, doc, model.KindActivity, "act-1"), ErrAlreadyLinked)
		assert.ErrorIs(t, reg.Link(ctx, doc, model.KindActivity, "act-2"), ErrAlreadyLinked)
		repo.AssertNotCalled(t, "SetLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("different kinds are independent slots", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("SetLink", ctx, "doc-1", model.KindProject, "p-1").Return(true, nil)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		err := NewLinkRegistry(repo).Link(ctx, doc, model.KindProject, "p-1")

		assert.NoError(t, err)
		assert.Equal(t, "act-1", doc.Links[model.KindActivity])
		assert.Equal(t, "p-1", doc.Links[model.KindProject])
	})

	t.Run("trashed document cannot be linked", func(t *testing.T) {
		doc := linkableDoc()
		doc.State = model.StateTrashed

		err := NewLinkRegistry(new(repomocks.MockDocumentRepository)).Link(ctx, doc, model.KindTask, "t-1")

		assert.ErrorIs(t, err, ErrDocumentTrashed)
	})

	t.Run("lost race surfaces as conflict", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("SetLink", ctx, "doc-1", model.KindSeminar, "s-1").Return(false, nil)

		doc := linkableDoc()
		err := NewLinkRegistry(repo).Link(ctx, doc, model.KindSeminar, "s-1")

		assert.ErrorIs(t, err, ErrConflict)
		assert.NotContains(t, doc.Links, model.KindSeminar)
	})
}

func TestLinkRegistry_Unlink(t *testing.T) {
	ctx := context.Background()

	t.Run("clears an occupied slot", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ClearLink", ctx, "doc-1", model.KindActivity).Return(nil)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		err := NewLinkRegistry(repo).Unlink(ctx, doc, model.KindActivity, "act-1")

		assert.NoError(t, err)
		assert.NotContains(t, doc.Links, model.KindActivity)
	})

	t.Run("empty entity id clears whatever the slot holds", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ClearLink", ctx, "doc-1", model.KindActivity).Return(nil)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		assert.NoError(t, NewLinkRegistry(repo).Unlink(ctx, doc, model.KindActivity, ""))
	})

	t.Run("empty slot fails", func(t *testing.T) {
		err := NewLinkRegistry(new(repomocks.MockDocumentRepository)).Unlink(ctx, linkableDoc(), model.KindActivity, "act-1")
		assert.ErrorIs(t, err, ErrNotLinked)
	})

	t.Run("entity mismatch fails", func(t *testing.T) {
		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		err := NewLinkRegistry(new(repomocks.MockDocumentRepository)).Unlink(ctx, doc, model.KindActivity, "act-2")

		assert.ErrorIs(t, err, ErrNotLinked)
		assert.Equal(t, "act-1", doc.Links[model.KindActivity], "slot is untouched on mismatch")
	})

	t.Run("relink after unlink succeeds", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ClearLink", ctx, "doc-1", model.KindActivity).Return(nil)
		repo.On("SetLink", ctx, "doc-1", model.KindActivity, "act-2").Return(true, nil)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindActivity: "act-1"}

		reg := NewLinkRegistry(repo)
		assert.NoError(t, reg.Unlink(ctx, doc, model.KindActivity, ""))
		assert.NoError(t, reg.Link(ctx, doc, model.KindActivity, "act-2"))
		assert.Equal(t, "act-2", doc.Links[model.KindActivity])
	})
}

func TestLinkRegistry_UnlinkAll(t *testing.T) {
	ctx := context.Background()

	t.Run("clears every slot", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ClearAllLinks", ctx, "doc-1").Return(nil)

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{
			model.KindActivity: "act-1",
			model.KindProject:  "p-1",
		}

		assert.NoError(t, NewLinkRegistry(repo).UnlinkAll(ctx, doc))
		assert.Empty(t, doc.Links)
	})

	t.Run("no links is a no-op", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)

		assert.NoError(t, NewLinkRegistry(repo).UnlinkAll(ctx, linkableDoc()))
		repo.AssertNotCalled(t, "ClearAllLinks", mock.Anything, mock.Anything)
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ClearAllLinks", ctx, "doc-1").Return(errors.New("db down"))

		doc := linkableDoc()
		doc.Links = map[model.ContextKind]string{model.KindEvent: "e-1"}

		assert.Error(t, NewLinkRegistry(repo).UnlinkAll(ctx, doc))
		assert.NotEmpty(t, doc.Links, "in-memory state unchanged on failure")
	})
}
