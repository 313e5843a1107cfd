package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/validate"
)

func TestSendMessagePersistsAndSummarizes(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedUser(t, store, alice)
	seedUser(t, store, bob)
	sa := newTestSession(t, store, alice)

	conv, err := sa.ResolveConversation(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	msg, err := sa.SendMessage(context.Background(), conv.ID, "  hello bob  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "hello bob" {
		t.Fatalf("text = %q, want trimmed", msg.Text)
	}
	if msg.Status != StatusSent {
		t.Fatalf("status = %q, want %q", msg.Status, StatusSent)
	}
	if flagged, ok := msg.Read[bob.ID]; !ok || flagged {
		t.Fatalf("recipient read flag = %v (tracked %v), want tracked false", flagged, ok)
	}
	if _, ok := msg.Read[alice.ID]; ok {
		t.Fatal("sender has a read flag entry")
	}

	stored, err := store.Get(context.Background(), "chats/"+conv.ID+"/messages/"+msg.ID)
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	decoded, err := decodeMessage(conv.ID, stored)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Text != "hello bob" || decoded.SentBy != alice.ID {
		t.Fatalf("stored message = %+v", decoded)
	}

	refreshed, err := sa.Conversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if refreshed.LastMessage.Text != "hello bob" || refreshed.LastMessage.SentBy != alice.ID {
		t.Fatalf("summary = %+v", refreshed.LastMessage)
	}
	if refreshed.LastMessage.SentAt.IsZero() {
		t.Fatal("summary sentAt is zero")
	}
	if refreshed.UpdatedAt.Before(conv.UpdatedAt) {
		t.Fatal("updatedAt did not advance")
	}
}

func TestSendMessageWhitespaceWritesNothing(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedUser(t, store, alice)
	seedUser(t, store, bob)
	sa := newTestSession(t, store, alice)

	conv, err := sa.ResolveConversation(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	writes := store.WriteCount()
	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := sa.SendMessage(context.Background(), conv.ID, text); !errors.Is(err, validate.ErrInvalid) {
			t.Fatalf("text %q: expected invalid, got %v", text, err)
		}
	}
	if store.WriteCount() != writes {
		t.Fatalf("whitespace send wrote to the store: %d writes", store.WriteCount()-writes)
	}
}

func TestSendMessageToForeignConversation(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedUser(t, store, alice)
	seedUser(t, store, bob)
	sa := newTestSession(t, store, alice)

	conv, err := sa.ResolveConversation(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sm := newTestSession(t, store, identityPrincipal("mallory", "Mallory"))
	if _, err := sm.SendMessage(context.Background(), conv.ID, "hi"); !errors.Is(err, docstore.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}
