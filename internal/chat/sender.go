package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/validate"
)

// SendMessage persists a new message in the conversation and refreshes the
// conversation's last-message summary. Whitespace-only text is rejected
// before any store write. The returned message has status "sent"; the call
// does not return until the message write completed.
//
// The message insert and the summary update are two independent writes; if
// the second fails the message is persisted but the conversation summary
// stays stale until the next send.
func (s *Session) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty message: %w", validate.ErrInvalid)
	}

	// Read the participant list at send time, not from any cached copy.
	conv, err := s.Conversation(ctx, chatID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &Message{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Text:   trimmed,
		SentBy: s.principal.ID,
		SentAt: now,
		Status: StatusSent,
		Read:   make(map[string]bool),
	}
	for _, p := range conv.Participants {
		if p != s.principal.ID {
			msg.Read[p] = false
		}
	}

	if err := s.store.Set(ctx, messagePath(chatID, msg.ID), encodeMessage(msg), false); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}

	if err := s.store.Update(ctx, chatPath(chatID), map[string]any{
		"lastMessage": encodeLastMessage(LastMessage{
			Text:   trimmed,
			SentBy: s.principal.ID,
			SentAt: now,
		}),
		"updatedAt": now.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("update conversation summary: %w", err)
	}

	s.bus.Publish(bus.Event{
		Kind:      "message.sent",
		Timestamp: now,
		Payload:   map[string]string{"chat_id": chatID, "message_id": msg.ID},
	})
	return msg, nil
}
