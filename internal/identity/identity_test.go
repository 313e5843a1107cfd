package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/validate"
)

func newService(t *testing.T) (*Service, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	return NewService(store, zap.NewNop(), ""), store
}

func TestSignUpCreatesUserDocument(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	p, err := svc.SignUp(ctx, "Alice@Example.com", "secret1", "Alice")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if p.ID == "" || p.Email != "alice@example.com" || p.DisplayName != "Alice" {
		t.Errorf("principal = %+v", p)
	}

	doc, err := store.Get(ctx, "users/"+p.ID)
	if err != nil {
		t.Fatalf("user document missing: %v", err)
	}
	if doc.Fields["online"] != true {
		t.Errorf("online = %v, want true", doc.Fields["online"])
	}
	hash, _ := doc.Fields["passwordHash"].(string)
	if hash == "" || hash == "secret1" {
		t.Errorf("passwordHash stored as %q, want bcrypt hash", hash)
	}
	if cur := svc.Current(); cur == nil || cur.ID != p.ID {
		t.Errorf("Current() = %v, want signed-in principal", cur)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "alice@example.com", "secret1", "Alice"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.SignUp(ctx, "alice@example.com", "secret2", "Alice Two")
	if !errors.Is(err, validate.ErrInvalid) {
		t.Errorf("duplicate sign-up error = %v, want ErrInvalid", err)
	}
}

func TestSignUpValidatesInput(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tests := []struct {
		email, password, name string
	}{
		{"not-an-email", "secret1", "Alice"},
		{"alice@example.com", "short", "Alice"},
		{"alice@example.com", "secret1", "ab"},
	}
	for _, tt := range tests {
		if _, err := svc.SignUp(ctx, tt.email, tt.password, tt.name); !errors.Is(err, validate.ErrInvalid) {
			t.Errorf("SignUp(%q, %q, %q) error = %v, want ErrInvalid", tt.email, tt.password, tt.name, err)
		}
	}
	if store.WriteCount() != 0 {
		t.Errorf("invalid sign-ups wrote %d documents, want 0", store.WriteCount())
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "alice@example.com", "secret1", "Alice"); err != nil {
		t.Fatal(err)
	}
	_ = svc.SignOut(ctx)

	_, err := svc.SignIn(ctx, "alice@example.com", "wrong-password")
	if !errors.Is(err, docstore.ErrPermission) {
		t.Errorf("wrong password error = %v, want ErrPermission", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.SignIn(context.Background(), "nobody@example.com", "secret1")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("unknown email error = %v, want ErrNotFound", err)
	}
}

func TestSignInMarksOnline(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	p, err := svc.SignUp(ctx, "alice@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SignOut(ctx); err != nil {
		t.Fatal(err)
	}

	doc, _ := store.Get(ctx, "users/"+p.ID)
	if doc.Fields["online"] != false {
		t.Fatalf("online after sign-out = %v, want false", doc.Fields["online"])
	}

	if _, err := svc.SignIn(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	doc, _ = store.Get(ctx, "users/"+p.ID)
	if doc.Fields["online"] != true {
		t.Errorf("online after sign-in = %v, want true", doc.Fields["online"])
	}
	// Merge write must not have dropped the credential.
	if hash, _ := doc.Fields["passwordHash"].(string); hash == "" {
		t.Error("merge write dropped passwordHash")
	}
}

func TestWatchEmitsOnChange(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var got []*Principal
	cancel := svc.Watch(func(p *Principal) { got = append(got, p) })
	defer cancel()

	if _, err := svc.SignUp(ctx, "alice@example.com", "secret1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SignOut(ctx); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("watcher saw %d changes, want 2", len(got))
	}
	if got[0] == nil || got[1] != nil {
		t.Errorf("changes = [%v, %v], want [principal, nil]", got[0], got[1])
	}
}

func TestRestoreFromSessionFile(t *testing.T) {
	store := docstore.NewMemoryStore()
	sessionFile := filepath.Join(t.TempDir(), "session")
	ctx := context.Background()

	first := NewService(store, zap.NewNop(), sessionFile)
	p, err := first.SignUp(ctx, "alice@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	// A fresh service over the same profile restores the sign-in.
	second := NewService(store, zap.NewNop(), sessionFile)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	cur := second.Current()
	if cur == nil || cur.ID != p.ID {
		t.Errorf("restored principal = %v, want %s", cur, p.ID)
	}
}

func TestRestoreNothingRemembered(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, zap.NewNop(), filepath.Join(t.TempDir(), "session"))
	if err := svc.Restore(context.Background()); err != nil {
		t.Errorf("Restore() error = %v, want nil", err)
	}
	if svc.Current() != nil {
		t.Error("Current() != nil after empty restore")
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	p, err := svc.SignUp(ctx, "alice@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateProfile(ctx, "Alice B", "file:///avatars/a.png")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.DisplayName != "Alice B" || updated.AvatarURL != "file:///avatars/a.png" {
		t.Errorf("updated = %+v", updated)
	}

	doc, _ := store.Get(ctx, "users/"+p.ID)
	if doc.Fields["displayName"] != "Alice B" {
		t.Errorf("displayName = %v", doc.Fields["displayName"])
	}
	if doc.Fields["email"] != "alice@example.com" {
		t.Error("merge write dropped email")
	}
}

func TestUpdateProfileSignedOut(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.UpdateProfile(context.Background(), "Name", "")
	if !errors.Is(err, docstore.ErrPermission) {
		t.Errorf("error = %v, want ErrPermission", err)
	}
}
