package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"billed/internal/core"
	"billed/internal/storage"
)

const secret = "0123456789abcdef0123"

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	want := core.Session{Email: "employee@test.tld", Type: core.Employee}

	tok, err := m.Generate(want)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := m.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != want {
		t.Errorf("Validate = %+v, want %+v", got, want)
	}
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	tok, _ := m.Generate(core.Session{Email: "a@test.tld", Type: core.Admin})

	expired := NewJWTManager(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldTok, _ := expired.Generate(core.Session{Email: "a@test.tld", Type: core.Admin})

	tests := []struct {
		name    string
		manager *JWTManager
		token   string
		wantErr error
	}{
		{name: "empty", manager: m, token: "", wantErr: ErrMissingToken},
		{name: "garbage", manager: m, token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "wrong secret", manager: NewJWTManager("another-secret-value", time.Hour), token: tok, wantErr: ErrInvalidToken},
		{name: "expired", manager: m, token: oldTok, wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.Validate(tt.token); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFrom(context.Background()); ok {
		t.Fatalf("empty context should carry no session")
	}
	s := core.Session{Email: "a@test.tld", Type: core.Employee}
	got, ok := SessionFrom(WithSession(context.Background(), s))
	if !ok || got != s {
		t.Fatalf("SessionFrom = %+v, %v", got, ok)
	}
}

type fakeUsers struct {
	users map[string]storage.UserRecord
}

func (f *fakeUsers) UpsertUser(_ context.Context, u storage.UserRecord) error {
	f.users[u.Email] = u
	return nil
}

func (f *fakeUsers) GetUser(_ context.Context, email string) (storage.UserRecord, error) {
	u, ok := f.users[email]
	if !ok {
		return storage.UserRecord{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return u, nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	users := &fakeUsers{users: map[string]storage.UserRecord{}}
	a := NewPasswordAuthenticator(users)
	a.cost = bcrypt.MinCost

	if err := a.Ensure(ctx, "employee@test.tld", "employee", core.Employee); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if users.users["employee@test.tld"].PasswordHash == "employee" {
		t.Fatalf("password stored in clear")
	}

	tests := []struct {
		name     string
		email    string
		password string
		userType core.UserType
		wantErr  bool
	}{
		{name: "valid", email: "employee@test.tld", password: "employee", userType: core.Employee},
		{name: "type omitted", email: "employee@test.tld", password: "employee"},
		{name: "wrong password", email: "employee@test.tld", password: "nope", userType: core.Employee, wantErr: true},
		{name: "wrong portal", email: "employee@test.tld", password: "employee", userType: core.Admin, wantErr: true},
		{name: "unknown user", email: "who@test.tld", password: "employee", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := a.Authenticate(ctx, tt.email, tt.password, tt.userType)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("err = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if s.Email != tt.email || s.Type != core.Employee {
				t.Errorf("session = %+v", s)
			}
		})
	}

	if err := a.Ensure(ctx, "", "x", core.Employee); err == nil {
		t.Errorf("Ensure accepted an empty email")
	}
}
