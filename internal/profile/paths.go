// Package profile manages the local per-user directory tree under ~/.chatapp.
// A profile holds the signed-in principal, lock file and logs for one local
// identity; several profiles can point at the same hosted store.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatapp.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatapp")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// SessionPath returns the file remembering the signed-in principal id.
func SessionPath(name string) string {
	return filepath.Join(Dir(name), "session")
}

// AvatarDir returns the local staging directory for avatar uploads.
func AvatarDir(name string) string {
	return filepath.Join(Dir(name), "avatars")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the client log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatctl.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
		AvatarDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
