// Package identity implements the identity provider collaborator: account
// creation, credential checks and the reactive current-principal handle the
// chat session core consumes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/validate"
)

// Principal is the signed-in user identity.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Provider is the identity collaborator contract consumed by the chat
// session core and the CLI.
type Provider interface {
	// Current returns the signed-in principal, or nil.
	Current() *Principal
	// Watch emits on every principal change (sign-in, sign-out, profile
	// update). The returned cancel func unregisters the watcher.
	Watch(fn func(*Principal)) func()
	SignUp(ctx context.Context, email, password, displayName string) (*Principal, error)
	SignIn(ctx context.Context, email, password string) (*Principal, error)
	SignOut(ctx context.Context) error
}

// Service implements Provider on the hosted document store. The signed-in
// principal id is remembered in sessionFile so the CLI stays signed in
// across invocations; an empty sessionFile disables persistence.
type Service struct {
	store       docstore.Store
	logger      *zap.Logger
	sessionFile string

	mu       sync.Mutex
	current  *Principal
	watchers map[int]func(*Principal)
	next     int
}

// NewService creates an identity service backed by the document store.
func NewService(store docstore.Store, logger *zap.Logger, sessionFile string) *Service {
	return &Service{
		store:       store,
		logger:      logger,
		sessionFile: sessionFile,
		watchers:    make(map[int]func(*Principal)),
	}
}

// Current returns the signed-in principal, or nil.
func (s *Service) Current() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// Watch registers a principal-change watcher.
func (s *Service) Watch(fn func(*Principal)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// SignUp creates an account: validates inputs, rejects duplicate emails,
// stores the bcrypt credential in the new user document and signs the new
// principal in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}
	if err := validate.DisplayName(displayName); err != nil {
		return nil, err
	}

	existing, err := s.store.Query(ctx, "users", docstore.Where("email", docstore.OpEqual, email))
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("email %s already registered: %w", email, validate.ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()
	fields := map[string]any{
		"uid":          id,
		"email":        email,
		"displayName":  displayName,
		"photoURL":     "",
		"passwordHash": string(hash),
		"createdAt":    now,
		"lastSeen":     now,
		"online":       true,
	}
	if err := s.store.Set(ctx, "users/"+id, fields, false); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	p := &Principal{ID: id, Email: email, DisplayName: displayName}
	s.setCurrent(p)
	return p, nil
}

// SignIn checks the credential against the stored hash and marks the
// principal online.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := s.store.Query(ctx, "users", docstore.Where("email", docstore.OpEqual, email))
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no account for %s: %w", email, docstore.ErrNotFound)
	}

	doc := docs[0]
	hash, _ := doc.Fields["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", docstore.ErrPermission)
	}

	p := principalFromFields(doc.Fields)
	if err := s.writePresence(ctx, p.ID, true); err != nil {
		return nil, err
	}
	s.setCurrent(p)
	return p, nil
}

// SignOut marks the principal offline (best effort) and clears the signed-in
// state.
func (s *Service) SignOut(ctx context.Context) error {
	p := s.Current()
	if p == nil {
		return nil
	}
	if err := s.writePresence(ctx, p.ID, false); err != nil {
		// The presence flag stays stale until the next sign-in; sign-out
		// still completes locally.
		s.logger.Warn("offline write failed on sign-out", zap.Error(err))
	}
	s.setCurrent(nil)
	return nil
}

// Restore loads the remembered principal id from the session file and
// refreshes it from the store. No-op when nothing is remembered.
func (s *Service) Restore(ctx context.Context) error {
	if s.sessionFile == "" {
		return nil
	}
	raw, err := os.ReadFile(s.sessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}
	id := strings.TrimSpace(string(raw))
	if id == "" {
		return nil
	}

	p, err := s.User(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// Account is gone; forget the stale session.
			_ = os.Remove(s.sessionFile)
			return nil
		}
		return err
	}
	s.setCurrent(p)
	return nil
}

// User loads a principal's public profile by id.
func (s *Service) User(ctx context.Context, id string) (*Principal, error) {
	doc, err := s.store.Get(ctx, "users/"+id)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return principalFromFields(doc.Fields), nil
}

// LookupEmail finds a principal by email address.
func (s *Service) LookupEmail(ctx context.Context, email string) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := s.store.Query(ctx, "users", docstore.Where("email", docstore.OpEqual, email))
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no account for %s: %w", email, docstore.ErrNotFound)
	}
	return principalFromFields(docs[0].Fields), nil
}

// UpdateProfile changes the signed-in principal's display name and/or avatar
// reference. Empty arguments leave the corresponding field untouched.
func (s *Service) UpdateProfile(ctx context.Context, displayName, avatarURL string) (*Principal, error) {
	p := s.Current()
	if p == nil {
		return nil, fmt.Errorf("not signed in: %w", docstore.ErrPermission)
	}

	fields := make(map[string]any)
	if displayName != "" {
		if err := validate.DisplayName(displayName); err != nil {
			return nil, err
		}
		fields["displayName"] = displayName
		p.DisplayName = displayName
	}
	if avatarURL != "" {
		fields["photoURL"] = avatarURL
		p.AvatarURL = avatarURL
	}
	if len(fields) == 0 {
		return p, nil
	}

	if err := s.store.Set(ctx, "users/"+p.ID, fields, true); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.setCurrent(p)
	return p, nil
}

// SetPresence merge-writes the signed-in principal's online flag and
// last-seen timestamp. Last write wins across devices.
func (s *Service) SetPresence(ctx context.Context, online bool) error {
	p := s.Current()
	if p == nil {
		return nil
	}
	return s.writePresence(ctx, p.ID, online)
}

func (s *Service) writePresence(ctx context.Context, id string, online bool) error {
	fields := map[string]any{
		"online":   online,
		"lastSeen": time.Now().UnixMilli(),
	}
	if err := s.store.Set(ctx, "users/"+id, fields, true); err != nil {
		return fmt.Errorf("write presence: %w", err)
	}
	return nil
}

func (s *Service) setCurrent(p *Principal) {
	s.mu.Lock()
	s.current = p
	watchers := make([]func(*Principal), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	s.persistSession(p)
	for _, fn := range watchers {
		fn(p)
	}
}

func (s *Service) persistSession(p *Principal) {
	if s.sessionFile == "" {
		return
	}
	if p == nil {
		_ = os.Remove(s.sessionFile)
		return
	}
	if err := os.WriteFile(s.sessionFile, []byte(p.ID+"\n"), 0600); err != nil {
		s.logger.Warn("persist session", zap.Error(err))
	}
}

func principalFromFields(fields map[string]any) *Principal {
	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}
	return &Principal{
		ID:          str("uid"),
		Email:       str("email"),
		DisplayName: str("displayName"),
		AvatarURL:   str("photoURL"),
	}
}
