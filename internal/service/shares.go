package service

import (
	"context"
	"fmt"

	"labdocs/internal/model"
	"labdocs/internal/repository"
)

// ShareRegistry manages per-user sharing grants. Granting is an idempotent
// upsert: re-granting overwrites the permission flags and never duplicates
// the grant.
type ShareRegistry struct {
	shares repository.ShareRepository
}

// NewShareRegistry constructs a ShareRegistry.
func NewShareRegistry(shares repository.ShareRepository) *ShareRegistry {
	return &ShareRegistry{shares: shares}
}

// GrantResult reports the grants after the call and which grantees did not
// hold a grant before it, so the caller can notify only new grantees.
type GrantResult struct {
	Grants      []model.ShareGrant
	NewGrantees []string
}

// Grant upserts a grant for every grantee. The document owner may not be a
// grantee; including the owner fails the whole call with ErrValidation
// before any grant is written.
func (r *ShareRegistry) Grant(ctx context.Context, doc *model.Document, granteeIDs []string, canEdit, canDelete bool) (*GrantResult, error) {
	if len(granteeIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one grantee is required", ErrValidation)
	}
	seen := make(map[string]bool, len(granteeIDs))
	grantees := make([]string, 0, len(granteeIDs))
	for _, id := range granteeIDs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty grantee id", ErrValidation)
		}
		if id == doc.OwnerID {
			return nil, fmt.Errorf("%w: owner cannot be a grantee", ErrValidation)
		}
		if !seen[id] {
			seen[id] = true
			grantees = append(grantees, id)
		}
	}

	existing, err := r.shares.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	had := make(map[string]bool, len(existing))
	for _, g := range existing {
		had[g.GranteeID] = true
	}

	res := &GrantResult{}
	for _, id := range grantees {
		g, err := r.shares.Upsert(ctx, model.ShareGrant{
			DocumentID: doc.ID,
			GranteeID:  id,
			CanEdit:    canEdit,
			CanDelete:  canDelete,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert grant for %s: %w", id, err)
		}
		res.Grants = append(res.Grants, *g)
		if !had[id] {
			res.NewGrantees = append(res.NewGrantees, id)
		}
	}
	return res, nil
}

// Revoke removes the grant. Revoking a grant that does not exist fails with
// ErrNotFound; the behavior is uniform across every call site.
func (r *ShareRegistry) Revoke(ctx context.Context, docID, granteeID string) error {
	if granteeID == "" {
		return fmt.Errorf("%w: grantee id is required", ErrValidation)
	}
	existed, err := r.shares.Delete(ctx, docID, granteeID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if !existed {
		return fmt.Errorf("%w: no grant for user %s", ErrNotFound, granteeID)
	}
	return nil
}
