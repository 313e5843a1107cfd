package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
)

func TestWatchPresenceOnline(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, _ := startConversation(t, store)

	if err := store.Set(context.Background(), "users/"+bob.ID, map[string]any{
		"online":   true,
		"lastSeen": time.Now().UnixMilli(),
	}, true); err != nil {
		t.Fatalf("seed presence: %v", err)
	}

	var last Presence
	if _, err := sa.WatchPresence(bob.ID, func(p Presence) { last = p }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !last.Online {
		t.Fatalf("presence = %+v, want online", last)
	}
	if !strings.HasPrefix(last.LastSeen, "last seen ") {
		t.Fatalf("last seen line = %q", last.LastSeen)
	}
}

func TestWatchPresenceNeverSeenOffline(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, _ := startConversation(t, store)

	var last Presence
	if _, err := sa.WatchPresence(bob.ID, func(p Presence) { last = p }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if last.Online || last.LastSeen != "offline" {
		t.Fatalf("presence = %+v, want the offline literal", last)
	}

	// An unknown user reads the same as a never-seen offline one.
	if _, err := sa.WatchPresence("ghost", func(p Presence) { last = p }); err != nil {
		t.Fatalf("watch ghost: %v", err)
	}
	if last.Online || last.LastSeen != "offline" {
		t.Fatalf("ghost presence = %+v", last)
	}
}

func TestWatchPresenceFollowsTransitions(t *testing.T) {
	store := docstore.NewMemoryStore()
	sa, _, _ := startConversation(t, store)

	var seen []bool
	if _, err := sa.WatchPresence(bob.ID, func(p Presence) { seen = append(seen, p.Online) }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	ctx := context.Background()
	if err := store.Set(ctx, "users/"+bob.ID, map[string]any{"online": true, "lastSeen": time.Now().UnixMilli()}, true); err != nil {
		t.Fatalf("go online: %v", err)
	}
	if err := store.Set(ctx, "users/"+bob.ID, map[string]any{"online": false, "lastSeen": time.Now().UnixMilli()}, true); err != nil {
		t.Fatalf("go offline: %v", err)
	}

	want := []bool{false, true, false}
	if len(seen) != len(want) {
		t.Fatalf("observed %v transitions", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
