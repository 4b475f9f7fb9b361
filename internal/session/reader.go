package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"billed/internal/core"
)

const (
	// UserKey holds the JSON-encoded {email, type} of the logged-in user.
	UserKey = "user"
	// TokenKey holds the bearer token returned by login.
	TokenKey = "jwt"
)

var ErrNoSession = errors.New("no session in local storage")

// Reader extracts the current session from a KeyValueStore.
type Reader struct {
	store KeyValueStore
}

func NewReader(store KeyValueStore) *Reader {
	return &Reader{store: store}
}

// Session decodes the stored user. It returns ErrNoSession when the item
// is absent or cannot be decoded.
func (r *Reader) Session() (core.Session, error) {
	raw, ok := r.store.GetItem(UserKey)
	if !ok || strings.TrimSpace(raw) == "" {
		return core.Session{}, ErrNoSession
	}
	var s core.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return s, nil
}

// Email returns the stored user's email, or "" when there is none.
func (r *Reader) Email() string {
	s, err := r.Session()
	if err != nil {
		return ""
	}
	return s.Email
}

// Token returns the stored bearer token, or "".
func (r *Reader) Token() string {
	tok, _ := r.store.GetItem(TokenKey)
	return tok
}

// Save stores the session and token the way the login page does.
func Save(store KeyValueStore, s core.Session, token string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := store.SetItem(UserKey, string(raw)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if token == "" {
		return nil
	}
	if err := store.SetItem(TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Clear removes the session and token.
func Clear(store KeyValueStore) error {
	if err := store.RemoveItem(UserKey); err != nil {
		return err
	}
	return store.RemoveItem(TokenKey)
}
