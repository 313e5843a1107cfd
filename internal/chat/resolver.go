package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/validate"
)

// ResolveConversation returns the unique conversation between the session
// principal and target, creating it on first contact. The lookup queries the
// caller's conversations and scans for the target client-side; per-user
// conversation counts are small. Two principals resolving each other at the
// same instant can race and create two conversations; both documents persist.
func (s *Session) ResolveConversation(ctx context.Context, targetID string) (*Conversation, error) {
	if targetID == "" || targetID == s.principal.ID {
		return nil, fmt.Errorf("bad conversation target %q: %w", targetID, validate.ErrInvalid)
	}

	docs, err := s.store.Query(ctx, "chats",
		docstore.Where("participants", docstore.OpArrayContains, s.principal.ID))
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	for _, doc := range docs {
		conv, err := decodeConversation(doc)
		if err != nil {
			s.logger.Warn("skipping malformed conversation", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		if conv.HasParticipant(targetID) {
			return conv, nil
		}
	}

	// First contact: snapshot both participants' display metadata.
	targetDoc, err := s.store.Get(ctx, userPath(targetID))
	if err != nil {
		return nil, fmt.Errorf("load target %s: %w", targetID, err)
	}

	now := time.Now()
	conv := &Conversation{
		ID:           uuid.NewString(),
		Participants: []string{s.principal.ID, targetID},
		Info: map[string]ParticipantInfo{
			s.principal.ID: {
				DisplayName: s.principal.DisplayName,
				AvatarURL:   s.principal.AvatarURL,
			},
			targetID: {
				DisplayName: asString(targetDoc.Fields["displayName"]),
				AvatarURL:   asString(targetDoc.Fields["photoURL"]),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Set(ctx, chatPath(conv.ID), encodeConversation(conv), false); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.bus.Publish(bus.Event{
		Kind:      "chat.created",
		Timestamp: now,
		Payload:   map[string]string{"chat_id": conv.ID, "with": targetID},
	})
	return conv, nil
}

// Conversations returns all conversations containing the session principal,
// most recently updated first.
func (s *Session) Conversations(ctx context.Context) ([]*Conversation, error) {
	docs, err := s.store.Query(ctx, "chats",
		docstore.Where("participants", docstore.OpArrayContains, s.principal.ID))
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	return s.decodeConversationList(docs), nil
}

// WatchConversations emits the principal's conversation list, most recently
// updated first, on registration and after every change to any conversation.
func (s *Session) WatchConversations(fn func([]*Conversation)) (func(), error) {
	filters := []docstore.Filter{
		docstore.Where("participants", docstore.OpArrayContains, s.principal.ID),
	}
	cancel, err := s.store.SubscribeQuery("chats", filters, func(docs []*docstore.Document) {
		fn(s.decodeConversationList(docs))
	})
	if err != nil {
		return nil, fmt.Errorf("watch conversations: %w", err)
	}
	return s.track(cancel), nil
}

// SearchUsers finds principals whose display name starts with prefix,
// excluding the session principal.
func (s *Session) SearchUsers(ctx context.Context, prefix string) ([]UserResult, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	docs, err := s.store.Query(ctx, "users")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	var out []UserResult
	for _, doc := range docs {
		uid := asString(doc.Fields["uid"])
		name := asString(doc.Fields["displayName"])
		if uid == "" || uid == s.principal.ID || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, UserResult{
			ID:          uid,
			DisplayName: name,
			AvatarURL:   asString(doc.Fields["photoURL"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// UserResult is one row of a user directory search.
type UserResult struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

func (s *Session) decodeConversationList(docs []*docstore.Document) []*Conversation {
	convs := make([]*Conversation, 0, len(docs))
	for _, doc := range docs {
		conv, err := decodeConversation(doc)
		if err != nil {
			s.logger.Warn("skipping malformed conversation", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs
}
