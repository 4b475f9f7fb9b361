// Package auth issues and checks session tokens and passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"billed/internal/core"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// JWTManager handles token generation and validation.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims carries the session in the token.
type Claims struct {
	Email string        `json:"email"`
	Type  core.UserType `json:"type"`
	jwt.RegisteredClaims
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate signs a token for the session.
func (m *JWTManager) Generate(s core.Session) (string, error) {
	now := m.now()
	claims := &Claims{
		Email: s.Email,
		Type:  s.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the session it carries.
func (m *JWTManager) Validate(tokenString string) (core.Session, error) {
	if tokenString == "" {
		return core.Session{}, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" || !claims.Type.Valid() {
		return core.Session{}, ErrInvalidToken
	}
	return core.Session{Email: claims.Email, Type: claims.Type}, nil
}

type ctxKey struct{}

// WithSession stores the authenticated session in ctx.
func WithSession(ctx context.Context, s core.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the session stored by WithSession.
func SessionFrom(ctx context.Context) (core.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(core.Session)
	return s, ok
}
