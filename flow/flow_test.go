package flow

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/token"
	"github.com/google/uuid"
)

type mockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]*domain.Token)}
}

func (m *mockTokenStore) SaveToken(_ context.Context, t *domain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *mockTokenStore) GetToken(_ context.Context, id string) (*domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTokenStore) ConsumeToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.ConsumedAt != nil || t.DisabledAt != nil {
		return domain.ErrAlreadyConsumed
	}
	t.ConsumedAt = &at
	return nil
}

func (m *mockTokenStore) DisableToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok && t.DisabledAt == nil {
		t.DisabledAt = &at
	}
	return nil
}

type mockDirectory struct {
	users map[string]*domain.User
}

func (m *mockDirectory) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

type mockNotifier struct {
	mu        sync.Mutex
	sent      []string
	verifyURL string
	fail      bool
}

func (m *mockNotifier) SendLoginLink(_ context.Context, to, verifyURL string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, to)
	m.verifyURL = verifyURL
	return nil
}

type mockSessions struct {
	created []*domain.Session
}

func (m *mockSessions) Create(_ context.Context, userID string) (*domain.Session, error) {
	s := &domain.Session{ID: uuid.New().String(), UserID: userID, Active: true}
	s.Token = s.ID
	m.created = append(m.created, s)
	return s, nil
}

func (m *mockSessions) Validate(_ context.Context, tok string) (*domain.Session, error) {
	for _, s := range m.created {
		if s.ID == tok {
			return s, nil
		}
	}
	return nil, errors.New("invalid session")
}

func (m *mockSessions) Delete(_ context.Context, tok string) error { return nil }

type fixture struct {
	store    *mockTokenStore
	engine   *token.Engine
	notifier *mockNotifier
	sessions *mockSessions
	login    *LoginManager
	verifier *Verifier
}

func newFixture(policy domain.Policy) *fixture {
	store := newMockTokenStore()
	engine := token.NewEngine(store, policy, nil)
	notifier := &mockNotifier{}
	sessions := &mockSessions{}
	dir := &mockDirectory{users: map[string]*domain.User{
		"a@example.com":        {ID: "u1", Email: "a@example.com", Active: true},
		"inactive@example.com": {ID: "u2", Email: "inactive@example.com", Active: false},
	}}
	return &fixture{
		store:    store,
		engine:   engine,
		notifier: notifier,
		sessions: sessions,
		login:    NewLoginManager(engine, notifier, "https://auth.example.com/", nil),
		verifier: NewVerifier(engine, dir, sessions, nil),
	}
}

func plainRequest() domain.RequestContext {
	return domain.RequestContext{Headers: http.Header{}, RemoteAddr: "198.51.100.7:4040"}
}

// splitVerifyURL pulls the id and secret path segments back out of the
// dispatched link.
func splitVerifyURL(t *testing.T, verifyURL string) (string, string) {
	t.Helper()
	rest, found := strings.CutPrefix(verifyURL, "https://auth.example.com/verify/")
	if !found {
		t.Fatalf("unexpected verify URL %q", verifyURL)
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 {
		t.Fatalf("unexpected verify URL %q", verifyURL)
	}
	return parts[0], parts[1]
}

func TestLoginAndVerifyEndToEnd(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	tok, err := f.login.Request(ctx, "a@example.com", "", plainRequest())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "a@example.com" {
		t.Fatalf("expected one email to a@example.com, got %v", f.notifier.sent)
	}

	id, secret := splitVerifyURL(t, f.notifier.verifyURL)
	if id != tok.ID {
		t.Errorf("verify URL id %q does not match token id %q", id, tok.ID)
	}
	if strings.Contains(f.notifier.verifyURL, "?") {
		t.Error("secret must travel as a path segment, not a query parameter")
	}

	res, err := f.verifier.Verify(ctx, id, secret, plainRequest())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Email != "a@example.com" {
		t.Errorf("resolved email = %q", res.Email)
	}
	if res.RedirectURL != "/" {
		t.Errorf("redirect = %q, want default /", res.RedirectURL)
	}
	if res.Session == nil || res.Session.UserID != "u1" {
		t.Error("session not established for the resolved user")
	}

	// Second visit with the same link: already consumed.
	if _, err := f.verifier.Verify(ctx, id, secret, plainRequest()); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("second verify: expected invalid token, got %v", err)
	}
}

func TestVerifyUnknownIDAndWrongSecretUniform(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	tok, err := f.login.Request(ctx, "a@example.com", "", plainRequest())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	_, errID := f.verifier.Verify(ctx, "nope", tok.Secret, plainRequest())
	_, errSecret := f.verifier.Verify(ctx, tok.ID, "nope", plainRequest())
	if !errors.Is(errID, domain.ErrNotFound) || !errors.Is(errSecret, domain.ErrNotFound) {
		t.Errorf("unknown id and wrong secret must fail identically, got %v / %v", errID, errSecret)
	}
}

func TestVerifyUnknownAccount(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	// A link can be requested for any address; the account check happens
	// at verification time.
	tok, err := f.login.Request(ctx, "ghost@example.com", "", plainRequest())
	if err != nil {
		t.Fatalf("Request for unknown address should still succeed: %v", err)
	}

	_, err = f.verifier.Verify(ctx, tok.ID, tok.Secret, plainRequest())
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	// The token is burned either way.
	stored, _ := f.store.GetToken(ctx, tok.ID)
	if stored.ConsumedAt == nil {
		t.Error("token should be consumed even when no account matches")
	}
}

type failingDirectory struct{}

func (failingDirectory) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, errors.New("connection refused")
}

func TestVerifyDirectoryOutageIsStorageError(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	tok, err := f.login.Request(ctx, "a@example.com", "", plainRequest())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	verifier := NewVerifier(f.engine, failingDirectory{}, f.sessions, nil)
	_, err = verifier.Verify(ctx, tok.ID, tok.Secret, plainRequest())
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("directory outage should surface as a storage error, got %v", err)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		t.Error("directory outage must not be reported as an unknown account")
	}
}

func TestVerifyDeactivatedAccount(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	tok, _ := f.login.Request(ctx, "inactive@example.com", "", plainRequest())
	if _, err := f.verifier.Verify(ctx, tok.ID, tok.Secret, plainRequest()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("deactivated account should not authenticate, got %v", err)
	}
}

func TestConcurrentVerifyExactlyOneSucceeds(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	ctx := context.Background()

	tok, err := f.login.Request(ctx, "a@example.com", "", plainRequest())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.verifier.Verify(ctx, tok.ID, tok.Secret, plainRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, invalid int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInvalidToken):
			invalid++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Errorf("expected exactly one success and one rejection, got %d/%d", ok, invalid)
	}
}

func TestNotifierFailurePropagates(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	f.notifier.fail = true

	if _, err := f.login.Request(context.Background(), "a@example.com", "", plainRequest()); err == nil {
		t.Error("dispatch failure must propagate so the caller can surface a generic error")
	}
}

func TestSafeRedirect(t *testing.T) {
	f := newFixture(domain.DefaultPolicy())
	f.login.SetAllowedHosts([]string{"app.example.com"})
	ctx := context.Background()

	cases := []struct {
		redirect string
		want     string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"https://app.example.com/home", "https://app.example.com/home"},
		{"https://evil.example.net/phish", "/"},
		{"//evil.example.net/phish", "/"},
	}
	for _, c := range cases {
		tok, err := f.login.Request(ctx, "a@example.com", c.redirect, plainRequest())
		if err != nil {
			t.Fatalf("Request(%q) failed: %v", c.redirect, err)
		}
		if tok.RedirectURL != c.want {
			t.Errorf("redirect %q stored as %q, want %q", c.redirect, tok.RedirectURL, c.want)
		}
	}
}

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryRateLimiter()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "verify:1.2.3.4", 3, time.Minute)
		if err != nil || !allowed {
			t.Fatalf("attempt %d should be allowed, got allowed=%v err=%v", i, allowed, err)
		}
	}
	if allowed, _, _ := limiter.Allow(ctx, "verify:1.2.3.4", 3, time.Minute); allowed {
		t.Error("fourth attempt in the window should be denied")
	}

	// Other keys are independent.
	if allowed, _, _ := limiter.Allow(ctx, "verify:5.6.7.8", 3, time.Minute); !allowed {
		t.Error("separate key should not be affected")
	}

	if err := limiter.Reset(ctx, "verify:1.2.3.4"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if allowed, _, _ := limiter.Allow(ctx, "verify:1.2.3.4", 3, time.Minute); !allowed {
		t.Error("reset key should be allowed again")
	}
}
