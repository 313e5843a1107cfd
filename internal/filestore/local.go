package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/jk08y/real-time-chat-app/internal/validate"
)

// Local implements Store on a local directory.
type Local struct {
	root string
}

// NewLocal creates a local file store rooted at root.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	return &Local{root: root}, nil
}

// Upload persists data at path, writing to a temp file and renaming so a
// partial write never becomes visible.
func (s *Local) Upload(_ context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if len(data) > MaxUploadBytes {
		return fmt.Errorf("upload exceeds %d bytes: %w", MaxUploadBytes, validate.ErrInvalid)
	}
	if !filetype.IsImage(data) {
		return fmt.Errorf("upload is not an image: %w", validate.ErrInvalid)
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("publish upload: %w", err)
	}
	return nil
}

// URL returns a file URL for a previously uploaded path.
func (s *Local) URL(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return "file://" + full, nil
}

func (s *Local) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", fmt.Errorf("bad upload path %q: %w", path, validate.ErrInvalid)
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}
