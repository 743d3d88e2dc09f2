package service

import "errors"

// Error taxonomy surfaced to callers. All of these are recoverable and must
// reach the caller verbatim; only blob deletes during purge and notification
// dispatch are swallowed (logged), because they are side effects of an
// already-committed state change.
var (
	// ErrValidation signals bad input shape, size or type.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown or already-purged document.
	ErrNotFound = errors.New("document not found")
	// ErrAccessDenied signals a missing capability. The message is uniform
	// and does not disclose whether the resource exists.
	ErrAccessDenied = errors.New("access denied")
	// ErrAlreadyLinked signals a link into an occupied context slot.
	ErrAlreadyLinked = errors.New("context slot already linked")
	// ErrNotLinked signals an unlink of an empty or mismatched slot.
	ErrNotLinked = errors.New("context slot not linked")
	// ErrDocumentTrashed signals a mutation not permitted on a trashed document.
	ErrDocumentTrashed = errors.New("document is trashed")
	// ErrConflict signals a lost race against a concurrent mutation.
	ErrConflict = errors.New("conflicting concurrent modification")
)
