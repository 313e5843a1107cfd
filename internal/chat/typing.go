package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
)

// SetTyping publishes or clears the session principal's typing flag for the
// conversation. Each principal only ever touches its own key; flags from
// other participants in the same document are left alone. Clearing when no
// typing document exists yet is a no-op.
//
// A crash between setting and clearing leaves the flag stale; there is no
// server-side expiry.
func (s *Session) SetTyping(ctx context.Context, chatID string, typing bool) error {
	if !typing {
		if _, err := s.store.Get(ctx, typingPath(chatID)); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("load typing state: %w", err)
		}
	}

	now := time.Now()
	err := s.store.Set(ctx, typingPath(chatID), map[string]any{
		s.principal.ID: typing,
		"updatedAt":    now.UnixMilli(),
	}, true)
	if err != nil {
		return fmt.Errorf("set typing: %w", err)
	}

	s.bus.Publish(bus.Event{
		Kind:      "typing.changed",
		Timestamp: now,
		Payload:   map[string]any{"chat_id": chatID, "typing": typing},
	})
	return nil
}

// SubscribeTyping watches the conversation's typing flags. The callback
// receives a map of participant id to flag; it fires once with the current
// state (empty when no typing document exists) and again on every change.
func (s *Session) SubscribeTyping(chatID string, fn func(map[string]bool)) (func(), error) {
	cancel, err := s.store.Subscribe(typingPath(chatID), func(doc *docstore.Document) {
		if doc == nil {
			fn(map[string]bool{})
			return
		}
		state := make(map[string]bool)
		for key, v := range doc.Fields {
			if key == "updatedAt" {
				continue
			}
			state[key] = asBool(v)
		}
		fn(state)
	})
	if err != nil {
		return nil, fmt.Errorf("watch typing: %w", err)
	}
	return s.track(cancel), nil
}
