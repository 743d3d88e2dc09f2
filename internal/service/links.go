package service

import (
	"context"
	"fmt"

	"labdocs/internal/model"
	"labdocs/internal/repository"
)

// LinkRegistry enforces the one-link-per-context-kind invariant. It knows
// nothing about the linked entities' own business rules; callers pass ids
// only. Capability checks happen in the document service before any call
// lands here.
type LinkRegistry struct {
	docs repository.DocumentRepository
}

// NewLinkRegistry constructs a LinkRegistry.
func NewLinkRegistry(docs repository.DocumentRepository) *LinkRegistry {
	return &LinkRegistry{docs: docs}
}

// Link fills the slot for kind on the given document.
// Fails with ErrDocumentTrashed on trashed documents, ErrAlreadyLinked on an
// occupied slot and ErrConflict if a concurrent writer filled the slot after
// the snapshot was read.
func (r *LinkRegistry) Link(ctx context.Context, doc *model.Document, kind model.ContextKind, entityID string) error {
	if !model.ValidContextKind(kind) {
		return fmt.Errorf("%w: unknown context kind %q", ErrValidation, kind)
	}
	if entityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrValidation)
	}
	if doc.Trashed() {
		return ErrDocumentTrashed
	}
	if current, ok := doc.LinkedTo(kind); ok {
		return fmt.Errorf("%w: %s slot holds %s", ErrAlreadyLinked, kind, current)
	}
	ok, err := r.docs.SetLink(ctx, doc.ID, kind, entityID)
	if err != nil {
		return fmt.Errorf("set link: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	if doc.Links == nil {
		doc.Links = make(map[model.ContextKind]string)
	}
	doc.Links[kind] = entityID
	return nil
}

// Unlink clears the slot for kind. If entityID is non-empty the slot must
// hold exactly that id, else ErrNotLinked. An empty slot also yields
// ErrNotLinked.
func (r *LinkRegistry) Unlink(ctx context.Context, doc *model.Document, kind model.ContextKind, entityID string) error {
	if !model.ValidContextKind(kind) {
		return fmt.Errorf("%w: unknown context kind %q", ErrValidation, kind)
	}
	current, ok := doc.LinkedTo(kind)
	if !ok {
		return fmt.Errorf("%w: %s slot is empty", ErrNotLinked, kind)
	}
	if entityID != "" && current != entityID {
		return fmt.Errorf("%w: %s slot holds %s, not %s", ErrNotLinked, kind, current, entityID)
	}
	if err := r.docs.ClearLink(ctx, doc.ID, kind); err != nil {
		return fmt.Errorf("clear link: %w", err)
	}
	delete(doc.Links, kind)
	return nil
}

// UnlinkAll clears every occupied slot. Clearing a document with no links is
// a no-op, not an error.
func (r *LinkRegistry) UnlinkAll(ctx context.Context, doc *model.Document) error {
	if len(doc.Links) == 0 {
		return nil
	}
	if err := r.docs.ClearAllLinks(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	doc.Links = nil
	return nil
}
