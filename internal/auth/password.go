package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"billed/internal/core"
	"billed/internal/storage"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStorage is the account persistence used by the authenticator.
type UserStorage interface {
	UpsertUser(ctx context.Context, u storage.UserRecord) error
	GetUser(ctx context.Context, email string) (storage.UserRecord, error)
}

// PasswordAuthenticator checks bcrypt-hashed passwords.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage, cost: bcrypt.DefaultCost}
}

// Ensure creates or refreshes an account with the given password.
func (a *PasswordAuthenticator) Ensure(ctx context.Context, email, password string, userType core.UserType) error {
	if email == "" || password == "" || !userType.Valid() {
		return fmt.Errorf("ensure user %q: incomplete account", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return a.storage.UpsertUser(ctx, storage.UserRecord{Email: email, PasswordHash: string(hash), Type: userType})
}

// Authenticate verifies the credentials. A non-empty userType must match
// the account type, as the login page posts which portal was used.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string, userType core.UserType) (core.Session, error) {
	user, err := a.storage.GetUser(ctx, email)
	if err != nil {
		return core.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.Session{}, ErrInvalidCredentials
	}
	if userType != "" && userType != user.Type {
		return core.Session{}, ErrInvalidCredentials
	}
	return core.Session{Email: user.Email, Type: user.Type}, nil
}
