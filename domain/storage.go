package domain

import (
	"context"
	"time"

	"github.com/getsesame/sesame/audit"
)

// Storage defines the interface for all persistence operations.
type Storage interface {
	TokenStore
	UserDirectory
	SessionStorage
	audit.Store
}

// User is the minimal account surface the login flow consults. Sesame never
// creates accounts; it only resolves them.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDirectory resolves email addresses to accounts.
type UserDirectory interface {
	// FindByEmail returns the account for a lower-cased email address.
	// Returns ErrUserNotFound when no account matches.
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Session marks an authenticated user for the duration of its lifetime.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`

	// Token is the bearer value handed to the client. For database-backed
	// sessions it equals ID; for JWT sessions it is the signed token.
	Token string `json:"-"`
}

// SessionStorage defines the interface for database-backed sessions.
type SessionStorage interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Notifier dispatches the verification email. Rendering and transport live
// behind this interface; the core only supplies the template context.
type Notifier interface {
	SendLoginLink(ctx context.Context, to, verifyURL string, expiry time.Time) error
}
