package docstore

import "errors"

// Error kinds surfaced by store operations. Wrapped errors carry the
// operation context; classify with errors.Is.
var (
	// ErrNotFound means the referenced document is absent.
	ErrNotFound = errors.New("document not found")
	// ErrPermission means the store rejected the operation for this caller.
	ErrPermission = errors.New("permission denied")
	// ErrNetwork means the transport to the store failed.
	ErrNetwork = errors.New("network failure")
)
