// Package filestore is the file storage collaborator used for avatar images.
package filestore

import "context"

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 2 << 20

// Store stores uploaded files addressed by relative path.
type Store interface {
	// Upload persists data at path. Fails with a validation kind when the
	// payload is too large or is not an image.
	Upload(ctx context.Context, path string, data []byte) error

	// URL returns a fetchable URL for a previously uploaded path.
	URL(path string) (string, error)
}
