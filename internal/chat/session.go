package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/identity"
)

// Session is the chat session core for one signed-in principal. It is
// constructed by the application owner and passed into consumers; it owns
// every store subscription it hands out and releases all of them on Close.
type Session struct {
	principal identity.Principal
	store     docstore.Store
	bus       *bus.Bus
	logger    *zap.Logger

	mu      sync.Mutex
	cancels map[int]func()
	next    int
	closed  bool
}

// NewSession creates a session for the given principal.
func NewSession(p identity.Principal, store docstore.Store, b *bus.Bus, logger *zap.Logger) *Session {
	return &Session{
		principal: p,
		store:     store,
		bus:       b,
		logger:    logger,
		cancels:   make(map[int]func()),
	}
}

// Principal returns the principal this session acts as.
func (s *Session) Principal() identity.Principal {
	return s.principal
}

// Close cancels every live subscription the session handed out. Safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := make([]func(), 0, len(s.cancels))
	for _, c := range s.cancels {
		cancels = append(cancels, c)
	}
	s.cancels = nil
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// Conversation loads one conversation and verifies the session principal is
// a participant, failing with a permission kind otherwise.
func (s *Session) Conversation(ctx context.Context, chatID string) (*Conversation, error) {
	doc, err := s.store.Get(ctx, chatPath(chatID))
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	conv, err := decodeConversation(doc)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(s.principal.ID) {
		return nil, fmt.Errorf("not a participant of %s: %w", chatID, docstore.ErrPermission)
	}
	return conv, nil
}

// track registers a subscription cancel func with the session and returns a
// wrapper that runs it exactly once and unregisters it. If the session is
// already closed the subscription is cancelled immediately.
func (s *Session) track(cancel func()) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return func() {}
	}
	id := s.next
	s.next++
	s.cancels[id] = cancel
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.cancels != nil {
				delete(s.cancels, id)
			}
			s.mu.Unlock()
			cancel()
		})
	}
}
