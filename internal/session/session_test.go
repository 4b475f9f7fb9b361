package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"billed/internal/core"
)

func TestReaderEmail(t *testing.T) {
	store := NewMemoryStore()
	r := NewReader(store)

	if got := r.Email(); got != "" {
		t.Fatalf("expected empty email without session, got %q", got)
	}

	_ = store.SetItem(UserKey, `{"type":"Employee","email":"a@a"}`)
	if got := r.Email(); got != "a@a" {
		t.Fatalf("Email() = %q", got)
	}

	s, err := r.Session()
	if err != nil {
		t.Fatalf("Session() error: %v", err)
	}
	if s.Type != core.Employee {
		t.Fatalf("Session().Type = %q", s.Type)
	}
}

func TestReaderWithoutEmailField(t *testing.T) {
	store := NewMemoryStore()
	_ = store.SetItem(UserKey, `{"type":"Employee"}`)
	if got := NewReader(store).Email(); got != "" {
		t.Fatalf("expected empty email, got %q", got)
	}
}

func TestReaderMalformed(t *testing.T) {
	store := NewMemoryStore()
	_ = store.SetItem(UserKey, `not json`)
	r := NewReader(store)
	if _, err := r.Session(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if r.Email() != "" {
		t.Fatalf("malformed session must yield empty email")
	}
}

func TestSaveAndClear(t *testing.T) {
	store := NewMemoryStore()
	if err := Save(store, core.Session{Email: "e@e", Type: core.Admin}, "tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r := NewReader(store)
	if r.Email() != "e@e" || r.Token() != "tok" {
		t.Fatalf("unexpected session %q %q", r.Email(), r.Token())
	}
	if err := Clear(store); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := r.Session(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	fs := NewFileStore(path)

	if _, ok := fs.GetItem(UserKey); ok {
		t.Fatalf("missing file should have no items")
	}
	if err := Save(fs, core.Session{Email: "a@a", Type: core.Employee}, "tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := NewReader(NewFileStore(path))
	if reopened.Email() != "a@a" || reopened.Token() != "tok" {
		t.Fatalf("session not persisted: %q %q", reopened.Email(), reopened.Token())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("session file mode = %v", info.Mode().Perm())
	}

	if err := fs.RemoveItem(TokenKey); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok := fs.GetItem(TokenKey); ok {
		t.Fatalf("token should be removed")
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStore(path)
	if _, ok := fs.GetItem(UserKey); ok {
		t.Fatalf("corrupt file should yield no item")
	}
	if err := fs.SetItem(UserKey, "x"); err == nil {
		t.Fatalf("expected error writing over corrupt file")
	}
}
