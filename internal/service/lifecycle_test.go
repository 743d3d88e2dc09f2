package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"labdocs/internal/model"
	repomocks "labdocs/internal/repository/mocks"
	storagemocks "labdocs/internal/storage/mocks"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func activeManagedDoc() *model.Document {
	return &model.Document{
		ID:          "doc-1",
		OwnerID:     "owner-1",
		StoragePath: "documents/doc-1.pdf",
		State:       model.StateActive,
	}
}

func trashedManagedDoc(deletedAt time.Time) *model.Document {
	d := activeManagedDoc()
	d.State = model.StateTrashed
	d.DeletedAt = &deletedAt
	return d
}

func TestLifecycleTrash(t *testing.T) {
	ctx := context.Background()

	t.Run("moves active to trashed and stamps deleted_at", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("SetState", ctx, "doc-1", model.StateTrashed, &fixedNow).Return(nil)

		m := NewLifecycleManager(repo, new(storagemocks.MockStorage), 30*24*time.Hour, fixedClock)
		doc := activeManagedDoc()

		assert.NoError(t, m.Trash(ctx, doc))
		assert.Equal(t, model.StateTrashed, doc.State)
		assert.Equal(t, fixedNow, *doc.DeletedAt)
		repo.AssertExpectations(t)
	})

	t.Run("trashing a trashed document fails", func(t *testing.T) {
		m := NewLifecycleManager(new(repomocks.MockDocumentRepository), new(storagemocks.MockStorage), 0, fixedClock)
		err := m.Trash(ctx, trashedManagedDoc(fixedNow))
		assert.ErrorIs(t, err, ErrDocumentTrashed)
	})
}

func TestLifecycleRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("trash then restore round-trips", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("SetState", ctx, "doc-1", model.StateTrashed, &fixedNow).Return(nil)
		repo.On("SetState", ctx, "doc-1", model.StateActive, (*time.Time)(nil)).Return(nil)

		m := NewLifecycleManager(repo, new(storagemocks.MockStorage), 0, fixedClock)
		doc := activeManagedDoc()

		assert.NoError(t, m.Trash(ctx, doc))
		assert.NoError(t, m.Restore(ctx, doc))
		assert.Equal(t, model.StateActive, doc.State)
		assert.Nil(t, doc.DeletedAt)
		repo.AssertExpectations(t)
	})

	t.Run("restoring an active document fails validation", func(t *testing.T) {
		m := NewLifecycleManager(new(repomocks.MockDocumentRepository), new(storagemocks.MockStorage), 0, fixedClock)
		err := m.Restore(ctx, activeManagedDoc())
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestLifecyclePurge(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the row first, then the blob", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("Delete", ctx, "doc-1").Return(true, nil)
		store.On("Delete", ctx, "documents/doc-1.pdf").Return(nil)

		m := NewLifecycleManager(repo, store, 0, fixedClock)

		assert.NoError(t, m.Purge(ctx, trashedManagedDoc(fixedNow)))
		repo.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("purge works from the active state too", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("Delete", ctx, "doc-1").Return(true, nil)
		store.On("Delete", ctx, "documents/doc-1.pdf").Return(nil)

		m := NewLifecycleManager(repo, store, 0, fixedClock)

		assert.NoError(t, m.Purge(ctx, activeManagedDoc()))
	})

	t.Run("already-purged document yields not found", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("Delete", ctx, "doc-1").Return(false, nil)

		m := NewLifecycleManager(repo, store, 0, fixedClock)

		assert.ErrorIs(t, m.Purge(ctx, trashedManagedDoc(fixedNow)), ErrNotFound)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("blob delete failure is not fatal", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("Delete", ctx, "doc-1").Return(true, nil)
		store.On("Delete", ctx, "documents/doc-1.pdf").Return(errors.New("minio unavailable"))

		m := NewLifecycleManager(repo, store, 0, fixedClock)

		assert.NoError(t, m.Purge(ctx, trashedManagedDoc(fixedNow)))
	})
}

func TestLifecycleSweep(t *testing.T) {
	ctx := context.Background()
	retention := 30 * 24 * time.Hour
	cutoff := fixedNow.Add(-retention)

	t.Run("purges documents past the retention window", func(t *testing.T) {
		expired := *trashedManagedDoc(cutoff.Add(-time.Second))
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("ListTrashedBefore", ctx, cutoff).Return([]model.Document{expired}, nil)
		repo.On("DeleteTrashedBefore", ctx, "doc-1", cutoff).Return(true, nil)
		store.On("Delete", ctx, "documents/doc-1.pdf").Return(nil)

		m := NewLifecycleManager(repo, store, retention, fixedClock)
		n, err := m.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, n)
		repo.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("documents at or under the window survive", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		// deleted_at exactly at the cutoff or newer never makes the candidate
		// list; the repository query is strictly before the cutoff.
		repo.On("ListTrashedBefore", ctx, cutoff).Return([]model.Document{}, nil)

		m := NewLifecycleManager(repo, new(storagemocks.MockStorage), retention, fixedClock)
		n, err := m.Sweep(ctx)

		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrently restored document is skipped", func(t *testing.T) {
		expired := *trashedManagedDoc(cutoff.Add(-time.Hour))
		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("ListTrashedBefore", ctx, cutoff).Return([]model.Document{expired}, nil)
		repo.On("DeleteTrashedBefore", ctx, "doc-1", cutoff).Return(false, nil)

		m := NewLifecycleManager(repo, store, retention, fixedClock)
		n, err := m.Sweep(ctx)

		assert.NoError(t, err)
		assert.Zero(t, n)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		a := *trashedManagedDoc(cutoff.Add(-time.Hour))
		b := *trashedManagedDoc(cutoff.Add(-time.Hour))
		b.ID = "doc-2"
		b.StoragePath = "documents/doc-2.pdf"

		repo := new(repomocks.MockDocumentRepository)
		store := new(storagemocks.MockStorage)
		repo.On("ListTrashedBefore", ctx, cutoff).Return([]model.Document{a, b}, nil)
		repo.On("DeleteTrashedBefore", ctx, "doc-1", cutoff).Return(false, errors.New("deadlock"))
		repo.On("DeleteTrashedBefore", ctx, "doc-2", cutoff).Return(true, nil)
		store.On("Delete", ctx, "documents/doc-2.pdf").Return(nil)

		m := NewLifecycleManager(repo, store, retention, fixedClock)
		n, err := m.Sweep(ctx)

		assert.Error(t, err)
		assert.Equal(t, 1, n, "the healthy document is still purged")
		repo.AssertExpectations(t)
	})

	t.Run("listing failure aborts", func(t *testing.T) {
		repo := new(repomocks.MockDocumentRepository)
		repo.On("ListTrashedBefore", ctx, cutoff).Return(nil, errors.New("db down"))

		m := NewLifecycleManager(repo, new(storagemocks.MockStorage), retention, fixedClock)
		n, err := m.Sweep(ctx)

		assert.Error(t, err)
		assert.Zero(t, n)
	})
}
