package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"labdocs/internal/model"
	"labdocs/internal/repository"
	"labdocs/internal/storage"
)

// LifecycleManager owns the Active -> Trashed -> purged state machine and
// the retention sweep. Capability checks happen in the document service;
// the manager enforces only state-transition validity.
type LifecycleManager struct {
	docs      repository.DocumentRepository
	store     storage.Storage
	retention time.Duration
	now       func() time.Time
}

// NewLifecycleManager constructs a LifecycleManager. now may be nil and
// defaults to time.Now; tests inject a fixed clock.
func NewLifecycleManager(docs repository.DocumentRepository, store storage.Storage, retention time.Duration, now func() time.Time) *LifecycleManager {
	if now == nil {
		now = time.Now
	}
	return &LifecycleManager{docs: docs, store: store, retention: retention, now: now}
}

// Trash soft-deletes the document: state becomes trashed and deleted_at is
// set. Grants and links are untouched so a restore brings everything back.
func (m *LifecycleManager) Trash(ctx context.Context, doc *model.Document) error {
	if doc.Trashed() {
		return ErrDocumentTrashed
	}
	now := m.now().UTC()
	if err := m.docs.SetState(ctx, doc.ID, model.StateTrashed, &now); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	doc.State = model.StateTrashed
	doc.DeletedAt = &now
	doc.UpdatedAt = now
	return nil
}

// Restore returns a trashed document to the active state and clears
// deleted_at. Only valid from the trashed state.
func (m *LifecycleManager) Restore(ctx context.Context, doc *model.Document) error {
	if !doc.Trashed() {
		return fmt.Errorf("%w: document is not trashed", ErrValidation)
	}
	if err := m.docs.SetState(ctx, doc.ID, model.StateActive, nil); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	doc.State = model.StateActive
	doc.DeletedAt = nil
	doc.UpdatedAt = m.now().UTC()
	return nil
}

// Purge permanently removes the document from either state: the row goes
// first (grants, favorites and link slots cascade with it), then the blob is
// deleted best-effort. A blob delete failure is logged, never fatal, because
// the metadata removal has already committed.
func (m *LifecycleManager) Purge(ctx context.Context, doc *model.Document) error {
	removed, err := m.docs.Delete(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if !removed {
		return ErrNotFound
	}
	m.deleteBlob(ctx, doc.ID, doc.StoragePath)
	return nil
}

// Sweep purges every trashed document whose age exceeds the retention
// window and returns the purged count. Each purge re-checks state and
// deleted_at in the delete itself so a concurrent restore wins the race.
// Individual failures are collected and do not abort the batch.
func (m *LifecycleManager) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().UTC().Add(-m.retention)
	candidates, err := m.docs.ListTrashedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired documents: %w", err)
	}

	purged := 0
	var firstErr error
	for i := range candidates {
		doc := &candidates[i]
		removed, err := m.docs.DeleteTrashedBefore(ctx, doc.ID, cutoff)
		if err != nil {
			m.logSweep("sweep_purge_failed", doc.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !removed {
			// Restored or already purged since the candidate list was read.
			continue
		}
		m.deleteBlob(ctx, doc.ID, doc.StoragePath)
		purged++
	}
	return purged, firstErr
}

// Run executes Sweep on the given interval until ctx is cancelled. The
// sweep is restartable: a partial run leaves each purged document fully
// purged and the rest untouched.
func (m *LifecycleManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			entry := map[string]any{
				"ts":        time.Now().UTC().Format(time.RFC3339Nano),
				"level":     "info",
				"component": "lifecycle",
				"event":     "sweep_complete",
				"purged":    n,
			}
			if err != nil {
				entry["level"] = "error"
				entry["error"] = err.Error()
			}
			if b, mErr := json.Marshal(entry); mErr == nil {
				log.SetFlags(0)
				log.Println(string(b))
			}
		}
	}
}

func (m *LifecycleManager) deleteBlob(ctx context.Context, docID, key string) {
	if key == "" {
		return
	}
	if err := m.store.Delete(ctx, key); err != nil {
		m.logSweep("blob_delete_failed", docID, err)
	}
}

func (m *LifecycleManager) logSweep(event, docID string, err error) {
	entry := map[string]any{
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		"level":       "error",
		"component":   "lifecycle",
		"event":       event,
		"document_id": docID,
		"error":       err.Error(),
	}
	if b, mErr := json.Marshal(entry); mErr == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
