// Package notify defines the notification collaborator contract. Delivery
// and ordering are the collaborator's concern; callers dispatch events after
// a mutation commits and never wait on the result.
package notify

import "context"

// Event kinds emitted by the document service.
const (
	EventDocumentShared   = "document.shared"
	EventDocumentTrashed  = "document.trashed"
	EventDocumentRestored = "document.restored"
	EventDocumentPurged   = "document.purged"
)

// Event is a notification about a committed document mutation.
type Event struct {
	Kind         string         `json:"kind"`
	DocumentID   string         `json:"document_id"`
	ActorID      string         `json:"actor_id"`
	RecipientIDs []string       `json:"recipient_ids"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Notifier accepts events for delivery. Implementations must return quickly;
// any queuing or retrying happens behind this interface.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}
