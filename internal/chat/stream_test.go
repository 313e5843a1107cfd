package chat

import (
	"context"
	"testing"
	"time"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
)

func seedMessage(t *testing.T, store *docstore.MemoryStore, chatID, id, sentBy string, sentAt time.Time, read map[string]bool) {
	t.Helper()
	readField := make(map[string]any, len(read))
	for k, v := range read {
		readField[k] = v
	}
	err := store.Set(context.Background(), "chats/"+chatID+"/messages/"+id, map[string]any{
		"id":     id,
		"text":   "msg " + id,
		"sentBy": sentBy,
		"sentAt": sentAt.UnixMilli(),
		"status": StatusSent,
		"read":   readField,
	}, false)
	if err != nil {
		t.Fatalf("seed message %s: %v", id, err)
	}
}

func latestSnapshot(t *testing.T, ms *MessageStream) []*Message {
	t.Helper()
	select {
	case msgs := <-ms.Updates():
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot emitted")
		return nil
	}
}

func TestOpenMessagesOrdersOldestFirst(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, conv := startConversation(t, store)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedMessage(t, store, conv.ID, "m1", alice.ID, base.Add(2*time.Minute), nil)
	seedMessage(t, store, conv.ID, "m2", alice.ID, base.Add(-5*time.Minute), nil)
	seedMessage(t, store, conv.ID, "m3", alice.ID, base.Add(10*time.Minute), nil)

	ms, err := sa.OpenMessages(conv.ID, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ms.Close()

	msgs := latestSnapshot(t, ms)
	if len(msgs) != 3 {
		t.Fatalf("snapshot has %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"m2", "m1", "m3"} {
		if msgs[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, msgs[i].ID, want)
		}
	}
}

func TestOpenMessagesKeepsNewestWithinLimit(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, conv := startConversation(t, store)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		seedMessage(t, store, conv.ID, id, alice.ID, base.Add(time.Duration(i)*time.Minute), nil)
	}

	ms, err := sa.OpenMessages(conv.ID, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ms.Close()

	msgs := latestSnapshot(t, ms)
	if len(msgs) != 2 {
		t.Fatalf("snapshot has %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m3" || msgs[1].ID != "m4" {
		t.Fatalf("window = [%s %s], want [m3 m4]", msgs[0].ID, msgs[1].ID)
	}
}

func TestOpenMessagesEmptyConversation(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, conv := startConversation(t, store)

	ms, err := sa.OpenMessages(conv.ID, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ms.Close()

	if msgs := latestSnapshot(t, ms); len(msgs) != 0 {
		t.Fatalf("empty conversation emitted %d messages", len(msgs))
	}
}

func TestOpenMessagesMarksIncomingRead(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, sb, conv := startConversation(t, store)

	msg, err := sa.SendMessage(context.Background(), conv.ID, "unread so far")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	ms, err := sb.OpenMessages(conv.ID, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ms.Close()

	// The receipt is written asynchronously; poll for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		doc, err := store.Get(context.Background(), "chats/"+conv.ID+"/messages/"+msg.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		got, err := decodeMessage(conv.ID, doc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Read[bob.ID] && got.Status == StatusRead {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("message never marked read: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenMessagesDoesNotMarkOwnMessages(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, conv := startConversation(t, store)

	if _, err := sa.SendMessage(context.Background(), conv.ID, "mine"); err != nil {
		t.Fatalf("send: %v", err)
	}

	writes := store.WriteCount()
	ms, err := sa.OpenMessages(conv.ID, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ms.Close()

	latestSnapshot(t, ms)
	time.Sleep(50 * time.Millisecond)
	if store.WriteCount() != writes {
		t.Fatal("opening own conversation wrote receipts")
	}
}
