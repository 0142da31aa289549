// Package domain defines the core entities and storage contracts for Sesame.
//
// This package provides the fundamental types the rest of the system is built
// on: the login Token entity, the request context consulted during validity
// checks, and the interfaces that storage, mail, and user-directory
// implementations must fulfill.
//
// # Interfaces
//
//   - Storage: Composite interface combining all persistence operations
//   - TokenStore: Login token persistence with atomic consume/disable updates
//   - UserDirectory: Account lookup by email
//   - SessionStorage: Session lifecycle operations
//   - Notifier: Verification email dispatch
//
// See the sgorm package for a complete GORM-based implementation of the
// storage interfaces.
package domain

import (
	"context"
	"time"
)

// Token is a single-use login credential binding an email address to a
// high-entropy secret, an expiry, and optional client-context constraints.
//
// All fields except ConsumedAt and DisabledAt are fixed at creation. The two
// terminal timestamps may each transition from nil to set exactly once, via
// the lifecycle engine.
type Token struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Secret      string     `json:"-"`
	RedirectURL string     `json:"redirect_url"`
	IPAddress   string     `json:"ip_address,omitempty"`
	CookieValue string     `json:"-"`
	ExpiryDate  time.Time  `json:"expiry_date"`
	CreatedAt   time.Time  `json:"created_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
	DisabledAt  *time.Time `json:"disabled_at,omitempty"`
}

// Consumed reports whether the token has already been used to authenticate.
func (t *Token) Consumed() bool { return t.ConsumedAt != nil }

// Disabled reports whether the token has been permanently invalidated.
func (t *Token) Disabled() bool { return t.DisabledAt != nil }

// Expired reports whether the token's lifetime has ended at the given time.
func (t *Token) Expired(now time.Time) bool { return !now.Before(t.ExpiryDate) }

// TokenStore defines the interface for persisting login tokens.
//
// ConsumeToken and DisableToken must be conditional updates on the stored
// row, not blind writes: concurrent verifications of the same token race on
// ConsumeToken, and exactly one of them may win.
type TokenStore interface {
	// SaveToken persists a newly created token.
	SaveToken(ctx context.Context, token *Token) error

	// GetToken fetches a token by its public identifier.
	// Returns ErrNotFound when no such token exists.
	GetToken(ctx context.Context, id string) (*Token, error)

	// ConsumeToken sets consumed_at iff the token is neither consumed nor
	// disabled yet. Returns ErrAlreadyConsumed when the token was no longer
	// in that state, i.e. a concurrent request won the race.
	ConsumeToken(ctx context.Context, id string, at time.Time) error

	// DisableToken sets disabled_at iff it is still unset. Calling it on an
	// already disabled token is a no-op.
	DisableToken(ctx context.Context, id string, at time.Time) error
}
