package repository

import (
	"context"
	"time"

	"labdocs/internal/model"
)

// DocumentFilter narrows a document listing. Zero values mean "no filter".
type DocumentFilter struct {
	// Search is a case-insensitive substring match over title, description,
	// filename and tags.
	Search  string
	Type    model.DocumentType
	OwnerID string

	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// State selects the lifecycle state; defaults to active.
	State model.LifecycleState

	// ViewerID/ViewerIsAdmin restrict results to documents the viewer may
	// see (owner, public, or granted). Admin viewers see everything in the
	// selected state except other users' trash is only visible to admins.
	ViewerID      string
	ViewerIsAdmin bool
}

// DocumentRepository defines persistence for documents, their link slots,
// lifecycle state and favorites. No business logic here — the service layer
// owns capability checks and invariant ordering; the conditional mutations
// below exist so composite invariants survive concurrent writers.
type DocumentRepository interface {
	// Create inserts a new document row and returns the stored record.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document with its link slots and favorited-by set.
	// Returns sql.ErrNoRows if the id is unknown or already purged.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a filtered, paginated list ordered newest-updated-first,
	// plus the total row count for the filter.
	List(ctx context.Context, f DocumentFilter, pq PageQuery) (*PageResult[model.Document], error)

	// UpdateMetadata persists title, description, type, tags and is_public
	// and bumps updated_at. Returns sql.ErrNoRows if the row is gone.
	UpdateMetadata(ctx context.Context, doc *model.Document) (*model.Document, error)

	// SetLink fills the slot for kind; the caller has already verified the
	// slot is free. The update is conditional on the slot still being NULL
	// and reports false if another writer got there first.
	SetLink(ctx context.Context, id string, kind model.ContextKind, entityID string) (bool, error)

	// ClearLink empties the slot for kind.
	ClearLink(ctx context.Context, id string, kind model.ContextKind) error

	// ClearAllLinks empties every slot.
	ClearAllLinks(ctx context.Context, id string) error

	// SetState transitions the lifecycle state and deleted_at together.
	SetState(ctx context.Context, id string, state model.LifecycleState, deletedAt *time.Time) error

	// Delete hard-deletes the row (grants and favorites cascade). Reports
	// whether a row was actually removed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteTrashedBefore hard-deletes the row only if it is still trashed
	// with deleted_at older than cutoff; the re-check keeps the sweep from
	// racing a concurrent restore.
	DeleteTrashedBefore(ctx context.Context, id string, cutoff time.Time) (bool, error)

	// ListTrashedBefore returns sweep candidates: trashed documents whose
	// deleted_at is older than cutoff.
	ListTrashedBefore(ctx context.Context, cutoff time.Time) ([]model.Document, error)

	// AddFavorite/RemoveFavorite toggle favorited-by membership; both are
	// idempotent.
	AddFavorite(ctx context.Context, docID, userID string) error
	RemoveFavorite(ctx context.Context, docID, userID string) error
}
