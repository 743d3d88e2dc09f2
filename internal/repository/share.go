package repository

import (
	"context"

	"labdocs/internal/model"
)

// ShareRepository defines persistence for per-user share grants.
type ShareRepository interface {
	// Upsert creates the grant or overwrites its permission flags; the
	// (document, grantee) pair is the primary key so duplicates cannot
	// exist.
	Upsert(ctx context.Context, g model.ShareGrant) (*model.ShareGrant, error)

	// Delete removes the grant and reports whether it existed.
	Delete(ctx context.Context, docID, granteeID string) (bool, error)

	// ListByDocument returns every grant on the document.
	ListByDocument(ctx context.Context, docID string) ([]model.ShareGrant, error)
}
