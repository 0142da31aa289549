package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsesame/sesame/audit"
	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/session"
	"github.com/getsesame/sesame/telemetry"
	"github.com/getsesame/sesame/token"
	"go.uber.org/zap"
)

// Result is what a successful verification yields.
type Result struct {
	Email       string
	User        *domain.User
	Session     *domain.Session
	RedirectURL string
}

// Verifier coordinates token verification: lookup, validity check, consume,
// account resolution, and session establishment — in that order, with
// validate-then-consume backed by the store's conditional update so two
// concurrent verifications of one token cannot both succeed.
type Verifier struct {
	engine     *token.Engine
	users      domain.UserDirectory
	sessions   session.Strategy
	auditStore audit.Store
	metrics    *telemetry.Provider
	log        *zap.Logger
}

func NewVerifier(engine *token.Engine, users domain.UserDirectory, sessions session.Strategy, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		engine:     engine,
		users:      users,
		sessions:   sessions,
		auditStore: audit.NopStore{},
		log:        log,
	}
}

// SetAuditStore enables audit event emission.
func (v *Verifier) SetAuditStore(s audit.Store) { v.auditStore = s }

// SetTelemetry enables metrics recording.
func (v *Verifier) SetTelemetry(p *telemetry.Provider) { v.metrics = p }

// Verify authenticates a verification-link visit.
//
// Every way a token can be rejected comes back as an error satisfying
// errors.Is(err, domain.ErrInvalidToken); the specific reason is logged but
// never surfaced, so a probing client learns nothing from the response.
// ErrUserNotFound is returned separately — the token was genuinely valid
// and consumed, but no account matches its email; the caller decides how to
// surface that (the default handler renders the same generic failure).
func (v *Verifier) Verify(ctx context.Context, id, secret string, req domain.RequestContext) (*Result, error) {
	ctx, span := v.metrics.Tracer().Start(ctx, "flow.Verify")
	defer span.End()

	t, err := v.engine.LookupForVerification(ctx, id, secret)
	if err != nil {
		v.deny(ctx, id, "not_found")
		return nil, domain.ErrNotFound
	}

	if !v.engine.IsValid(ctx, t, req) {
		v.deny(ctx, t.ID, "invalid")
		return nil, domain.ErrInvalidToken
	}

	if err := v.engine.Consume(ctx, t); err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			// Lost the race against a concurrent verification.
			v.deny(ctx, t.ID, "consumed_concurrently")
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: consume token: %v", domain.ErrStorage, err)
	}

	user, err := v.users.FindByEmail(ctx, t.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			v.deny(ctx, t.ID, "user_not_found")
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: resolve account: %v", domain.ErrStorage, err)
	}
	if !user.Active {
		v.deny(ctx, t.ID, "user_not_found")
		return nil, domain.ErrUserNotFound
	}

	sess, err := v.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	v.metrics.RecordConsumed(ctx)
	v.auditStore.SaveEvent(ctx, &audit.Event{
		Type:      "login.success",
		SubjectID: user.ID,
		Status:    "success",
		IPAddress: req.ClientIP(),
	})
	v.log.Info("magic link verified",
		zap.String("token_id", t.ID),
		zap.String("user_id", user.ID),
	)

	return &Result{
		Email:       t.Email,
		User:        user,
		Session:     sess,
		RedirectURL: t.RedirectURL,
	}, nil
}

func (v *Verifier) deny(ctx context.Context, tokenID, reason string) {
	v.metrics.RecordDenied(ctx, reason)
	v.auditStore.SaveEvent(ctx, &audit.Event{
		Type:      "login.denied",
		SubjectID: tokenID,
		Status:    "failure",
		Message:   reason,
	})
}
