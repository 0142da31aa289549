// Package token implements the login token lifecycle: creation, the
// validity predicate, and the disable/consume transitions.
package token

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/ipaddr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the token lifecycle. It is stateless over a TokenStore and is
// safe for concurrent use.
type Engine struct {
	store  domain.TokenStore
	policy domain.Policy
	log    *zap.Logger
	now    func() time.Time
}

// NewEngine creates an Engine over the given store and policy. A nil logger
// disables internal logging.
func NewEngine(store domain.TokenStore, policy domain.Policy, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, policy: policy, log: log, now: time.Now}
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Create issues a new token for email. The email is lower-cased, the expiry
// is fixed at now + MaxTokenLifetime, and a fresh secret is generated. When
// same-browser binding is enabled a cookie value is generated as well; when
// IP anonymization is enabled the stored address is the network prefix of
// ipAddress rather than the address itself.
func (e *Engine) Create(ctx context.Context, email, redirectURL, ipAddress string) (*domain.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if redirectURL == "" {
		redirectURL = e.policy.DefaultRedirectURL
	}

	if ipAddress != "" && e.policy.AnonymizeIPAddress {
		anon, err := ipaddr.Anonymize(ipAddress, e.policy.IPv4PrefixBits, e.policy.IPv6PrefixBits)
		if err != nil {
			return nil, err
		}
		ipAddress = anon
	}

	secret, err := randomString(secretLength)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	var cookieValue string
	if e.policy.RequireSameBrowser {
		cookieValue, err = randomString(cookieLength)
		if err != nil {
			return nil, fmt.Errorf("generate cookie value: %w", err)
		}
	}

	now := e.now()
	t := &domain.Token{
		ID:          uuid.New().String(),
		Email:       email,
		Secret:      secret,
		RedirectURL: redirectURL,
		IPAddress:   ipAddress,
		CookieValue: cookieValue,
		ExpiryDate:  now.Add(e.policy.MaxTokenLifetime),
		CreatedAt:   now,
	}

	if err := e.store.SaveToken(ctx, t); err != nil {
		return nil, fmt.Errorf("%w: save token: %v", domain.ErrStorage, err)
	}

	e.log.Info("login token created",
		zap.String("token_id", t.ID),
		zap.String("email", t.Email),
		zap.Time("expiry_date", t.ExpiryDate),
	)
	return t, nil
}

// LookupForVerification fetches a token by id and checks the supplied secret
// in constant time. An unknown id and a secret mismatch both return
// ErrNotFound so the response cannot be used as a guessing oracle.
func (e *Engine) LookupForVerification(ctx context.Context, id, secret string) (*domain.Token, error) {
	t, err := e.store.GetToken(ctx, id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(t.Secret), []byte(secret)) != 1 {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// IsValid reports whether the token can authenticate the request.
//
// Checks run in a fixed order: disabled, consumed, expiry, same-IP,
// same-browser. The first failing check wins; a failed expiry, IP, or
// browser check permanently disables the token, so a single bad
// verification attempt burns the link rather than leaving it open to
// retries.
func (e *Engine) IsValid(ctx context.Context, t *domain.Token, req domain.RequestContext) bool {
	if t.Disabled() {
		e.reject(t, domain.ErrAlreadyDisabled)
		return false
	}
	if t.Consumed() {
		e.reject(t, domain.ErrAlreadyConsumed)
		return false
	}
	if t.Expired(e.now()) {
		e.disable(ctx, t, domain.ErrExpired)
		return false
	}

	if e.policy.RequireSameIP {
		ip := req.ClientIP()
		if ip != "" && e.policy.AnonymizeIPAddress {
			// A forwarded address the verifier cannot parse counts as a
			// mismatch; it is client-controlled input, not caller misuse.
			if anon, err := ipaddr.Anonymize(ip, e.policy.IPv4PrefixBits, e.policy.IPv6PrefixBits); err == nil {
				ip = anon
			} else {
				ip = ""
			}
		}
		if ip == "" || ip != t.IPAddress {
			e.disable(ctx, t, domain.ErrContextMismatch)
			return false
		}
	}

	if e.policy.RequireSameBrowser {
		if req.Cookie(e.policy.CookieName) != t.CookieValue {
			e.disable(ctx, t, domain.ErrContextMismatch)
			return false
		}
	}

	return true
}

// Consume marks the token used. The store performs a conditional update, so
// of two concurrent verifications exactly one returns nil here; the loser
// gets ErrAlreadyConsumed.
func (e *Engine) Consume(ctx context.Context, t *domain.Token) error {
	now := e.now()
	if err := e.store.ConsumeToken(ctx, t.ID, now); err != nil {
		return err
	}
	t.ConsumedAt = &now
	e.log.Info("login token consumed", zap.String("token_id", t.ID))
	return nil
}

// Disable permanently invalidates the token. Calling it on an already
// disabled token is harmless.
func (e *Engine) Disable(ctx context.Context, t *domain.Token) error {
	if t.Disabled() {
		return nil
	}
	now := e.now()
	if err := e.store.DisableToken(ctx, t.ID, now); err != nil {
		return fmt.Errorf("%w: disable token: %v", domain.ErrStorage, err)
	}
	t.DisabledAt = &now
	return nil
}

// disable burns the token after a failed check. A persistence failure here
// still leaves the verification rejected; it only costs the permanence of
// the burn, which is logged.
func (e *Engine) disable(ctx context.Context, t *domain.Token, reason error) {
	e.reject(t, reason)
	if err := e.Disable(ctx, t); err != nil {
		e.log.Error("failed to disable token",
			zap.String("token_id", t.ID),
			zap.Error(err),
		)
	}
}

// reject records why a token failed validation. The reason stays internal;
// callers only ever see the generic invalid outcome.
func (e *Engine) reject(t *domain.Token, reason error) {
	e.log.Info("login token rejected",
		zap.String("token_id", t.ID),
		zap.String("reason", reason.Error()),
	)
}
