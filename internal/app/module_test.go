package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/identity"
	"github.com/jk08y/real-time-chat-app/internal/lock"
	"github.com/jk08y/real-time-chat-app/internal/status"
)

func onlineFlag(t *testing.T, store *docstore.MemoryStore, uid string) bool {
	t.Helper()
	doc, err := store.Get(context.Background(), "users/"+uid)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	online, _ := doc.Fields["online"].(bool)
	return online
}

func TestLifecycleRestoresRememberedPrincipal(t *testing.T) {
	store := docstore.NewMemoryStore()
	dir := t.TempDir()
	sessionFile := filepath.Join(dir, "session")

	// A previous run signed up and left the session file behind.
	first := identity.NewService(store, zap.NewNop(), sessionFile)
	p, err := first.SignUp(context.Background(), "alice@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	ids := identity.NewService(store, zap.NewNop(), sessionFile)
	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	machine := status.NewMachine(bus.New())

	lc := fxtest.NewLifecycle(t)
	registerLifecycle(lc, ids, store, lk, machine, zap.NewNop())
	lc.RequireStart()

	if got := machine.Current(); got != status.Ready {
		t.Fatalf("state after start = %s, want %s", got, status.Ready)
	}
	if current := ids.Current(); current == nil || current.ID != p.ID {
		t.Fatalf("restored principal = %+v, want %s", current, p.ID)
	}
	if !onlineFlag(t, store, p.ID) {
		t.Fatal("principal not marked online after start")
	}

	lc.RequireStop()
	if onlineFlag(t, store, p.ID) {
		t.Fatal("principal still online after clean stop")
	}
}

func TestLifecycleWithoutSessionRequiresAuth(t *testing.T) {
	store := docstore.NewMemoryStore()
	dir := t.TempDir()

	ids := identity.NewService(store, zap.NewNop(), filepath.Join(dir, "session"))
	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	machine := status.NewMachine(bus.New())

	lc := fxtest.NewLifecycle(t)
	registerLifecycle(lc, ids, store, lk, machine, zap.NewNop())
	lc.RequireStart()

	if got := machine.Current(); got != status.AuthRequired {
		t.Fatalf("state after start = %s, want %s", got, status.AuthRequired)
	}
	lc.RequireStop()
}
