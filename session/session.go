// Package session establishes and validates authenticated sessions for
// users who completed a magic-link verification.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/getsesame/sesame/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Strategy defines how authenticated sessions are established and checked.
type Strategy interface {
	Create(ctx context.Context, userID string) (*domain.Session, error)
	Validate(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

const defaultTTL = 24 * time.Hour

// DatabaseStrategy stores sessions as rows; the session ID doubles as the
// bearer token handed to the client.
type DatabaseStrategy struct {
	repo domain.SessionStorage
	ttl  time.Duration
}

func NewDatabaseStrategy(repo domain.SessionStorage) *DatabaseStrategy {
	return &DatabaseStrategy{repo: repo, ttl: defaultTTL}
}

// SetTTL overrides the session lifetime.
func (s *DatabaseStrategy) SetTTL(ttl time.Duration) { s.ttl = ttl }

func (s *DatabaseStrategy) Create(ctx context.Context, userID string) (*domain.Session, error) {
	now := time.Now()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		Active:    true,
	}
	sess.Token = sess.ID
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *DatabaseStrategy) Validate(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid session")
	}
	if !sess.Active || sess.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("session expired or inactive")
	}
	sess.Token = sess.ID
	return sess, nil
}

func (s *DatabaseStrategy) Delete(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// JWTStrategy issues self-contained signed tokens instead of database rows.
// Delete is a no-op; revocation requires the database strategy.
type JWTStrategy struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTStrategy(secret []byte) *JWTStrategy {
	return &JWTStrategy{secret: secret, ttl: defaultTTL}
}

func (s *JWTStrategy) SetTTL(ttl time.Duration) { s.ttl = ttl }

func (s *JWTStrategy) Create(_ context.Context, userID string) (*domain.Session, error) {
	now := time.Now()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		Active:    true,
	}

	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	sess.Token = signed
	return sess, nil
}

func (s *JWTStrategy) Validate(_ context.Context, token string) (*domain.Session, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid session")
	}

	sess := &domain.Session{
		ID:     claims.ID,
		UserID: claims.Subject,
		Active: true,
		Token:  token,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (s *JWTStrategy) Delete(context.Context, string) error { return nil }
