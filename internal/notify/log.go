package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// LogNotifier writes events as JSON lines. It stands in for the platform's
// real notification transport in local and test deployments.
type LogNotifier struct {
	loc *time.Location
}

// NewLogNotifier creates a LogNotifier. A nil location defaults to UTC.
func NewLogNotifier(loc *time.Location) *LogNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &LogNotifier{loc: loc}
}

var _ Notifier = (*LogNotifier)(nil)

// Notify logs the event and returns immediately.
func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	entry := map[string]any{
		"ts":            time.Now().In(n.loc).Format(time.RFC3339Nano),
		"level":         "info",
		"component":     "notify",
		"event":         e.Kind,
		"document_id":   e.DocumentID,
		"actor_id":      e.ActorID,
		"recipient_ids": e.RecipientIDs,
	}
	if len(e.Payload) > 0 {
		entry["payload"] = e.Payload
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	log.SetFlags(0)
	log.Println(string(b))
	return nil
}
