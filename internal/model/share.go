package model

import "time"

// ShareGrant relates one document to one grantee user. View/download is
// implicit for any grant; edit and delete are explicit flags.
// At most one grant exists per (document, grantee) pair; re-granting
// overwrites the flags.
type ShareGrant struct {
	DocumentID string    `json:"document_id"`
	GranteeID  string    `json:"grantee_id"`
	CanEdit    bool      `json:"can_edit"`
	CanDelete  bool      `json:"can_delete"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
