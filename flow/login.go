// Package flow coordinates the two magic-link flows: requesting a login
// link and verifying one. It is the only consumer-facing entry point into
// the token lifecycle from the routing layer.
package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/getsesame/sesame/audit"
	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/telemetry"
	"github.com/getsesame/sesame/token"
	"go.uber.org/zap"
)

// LoginManager handles the request-a-link flow: it issues a token and
// dispatches the verification email.
//
// The outcome reported to the caller is identical whether or not the
// address belongs to an account; account resolution happens only at
// verification time, so responses cannot be used to enumerate users.
type LoginManager struct {
	engine       *token.Engine
	notifier     domain.Notifier
	baseURL      string
	allowedHosts []string
	auditStore   audit.Store
	metrics      *telemetry.Provider
	log          *zap.Logger
}

// NewLoginManager creates a LoginManager. baseURL is the externally
// reachable origin verification links are built on, e.g.
// "https://auth.example.com".
func NewLoginManager(engine *token.Engine, notifier domain.Notifier, baseURL string, log *zap.Logger) *LoginManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginManager{
		engine:     engine,
		notifier:   notifier,
		baseURL:    strings.TrimRight(baseURL, "/"),
		auditStore: audit.NopStore{},
		log:        log,
	}
}

// SetAllowedHosts configures which absolute redirect destinations are
// honored. Relative destinations are always allowed.
func (m *LoginManager) SetAllowedHosts(hosts []string) { m.allowedHosts = hosts }

// SetAuditStore enables audit event emission.
func (m *LoginManager) SetAuditStore(s audit.Store) { m.auditStore = s }

// SetTelemetry enables metrics recording.
func (m *LoginManager) SetTelemetry(p *telemetry.Provider) { m.metrics = p }

// Request issues a login token for email, builds the verification link, and
// dispatches it. It returns the created token so the transport layer can set
// the browser-binding cookie.
//
// A storage or dispatch failure propagates; callers surface a generic
// failure and must not retry automatically, to avoid duplicate emails.
func (m *LoginManager) Request(ctx context.Context, email, redirectURL string, req domain.RequestContext) (*domain.Token, error) {
	t, err := m.engine.Create(ctx, email, m.safeRedirect(redirectURL), req.ClientIP())
	if err != nil {
		return nil, err
	}

	if err := m.notifier.SendLoginLink(ctx, t.Email, m.VerifyURL(t), t.ExpiryDate); err != nil {
		m.log.Error("failed to send login link",
			zap.String("token_id", t.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("send login link: %w", err)
	}

	m.metrics.RecordIssued(ctx)
	m.auditStore.SaveEvent(ctx, &audit.Event{
		Type:      "login.requested",
		SubjectID: t.ID,
		Status:    "success",
		IPAddress: t.IPAddress,
	})
	return t, nil
}

// VerifyURL builds the verification link for a token:
// <base>/verify/<id>/<secret>/. Both values travel as path segments so the
// secret stays out of query-string logs.
func (m *LoginManager) VerifyURL(t *domain.Token) string {
	return fmt.Sprintf("%s/verify/%s/%s/", m.baseURL, t.ID, t.Secret)
}

// safeRedirect honors a requested destination only when it is relative or
// its host is explicitly allowed; anything else falls back to the policy
// default (by returning "" and letting the engine apply it).
func (m *LoginManager) safeRedirect(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" && u.Host == "" {
		return raw
	}
	for _, h := range m.allowedHosts {
		if strings.EqualFold(h, u.Host) {
			return raw
		}
	}
	m.log.Warn("dropping unsafe redirect url", zap.String("host", u.Host))
	return ""
}
