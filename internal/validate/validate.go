package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is the kind for malformed input caught before it reaches the
// document store. Callers classify with errors.Is.
var ErrInvalid = errors.New("invalid input")

var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email checks that the address has a plausible user@host.tld shape.
func Email(email string) error {
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("invalid email address: %w", ErrInvalid)
	}
	return nil
}

// Password checks minimum password strength.
func Password(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters: %w", ErrInvalid)
	}
	return nil
}

// DisplayName checks that a display name is present and long enough.
func DisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("display name is required: %w", ErrInvalid)
	}
	if len(name) < 3 {
		return fmt.Errorf("display name must be at least 3 characters: %w", ErrInvalid)
	}
	return nil
}
