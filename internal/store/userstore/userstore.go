// Package userstore backs the admin-plane /auth/* routes (spec §6), grounded
// on axonhub's biz.AuthService + middleware.WithJWTAuth pattern: bcrypt-free
// (scope keeps it simple) but still issuing real JWTs via golang-jwt/v5.
package userstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUserExists        = errors.New("userstore: user already exists")
	ErrInvalidCredentials = errors.New("userstore: invalid credentials")
	ErrInvalidToken      = errors.New("userstore: invalid token")
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Store is an in-memory admin user directory plus JWT issuance/verification.
// It is deliberately small: ORBIT's core is the chat pipeline, not an
// identity provider.
type Store struct {
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	users map[string]*User // username -> user
}

func New(secret string, ttl time.Duration) *Store {
	return &Store{secret: []byte(secret), ttl: ttl, users: map[string]*User{}}
}

func hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (s *Store) Register(_ context.Context, username, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return nil, ErrUserExists
	}

	u := &User{ID: uuid.NewString(), Username: username, PasswordHash: hash(password), CreatedAt: time.Now()}
	s.users[username] = u

	return u, nil
}

// Login verifies credentials and issues a signed JWT, mirroring axonhub's
// sign-in + middleware.WithJWTAuth round trip.
func (s *Store) Login(_ context.Context, username, password string) (string, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()

	if !ok || u.PasswordHash != hash(password) {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: u.Username,
	})

	return token.SignedString(s.secret)
}

// Authenticate verifies a bearer JWT and returns the user named by its
// username claim.
func (s *Store) Authenticate(_ context.Context, tokenStr string) (*User, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}

		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	s.mu.RLock()
	u, ok := s.users[c.Username]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	return u, nil
}

// Logout is a no-op for stateless JWTs; kept for route-surface completeness
// (spec §6 names /auth/logout explicitly). A production deployment would
// maintain a revocation list here.
func (s *Store) Logout(_ context.Context, _ string) error {
	return nil
}
