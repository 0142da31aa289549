package sgorm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/getsesame/sesame/audit"
	"github.com/getsesame/sesame/domain"
	"github.com/google/uuid"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewStorage("sqlite", filepath.Join(t.TempDir(), "sesame_test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	return repo
}

func sampleToken() *domain.Token {
	now := time.Now().Truncate(time.Second)
	return &domain.Token{
		ID:          uuid.New().String(),
		Email:       "a@example.com",
		Secret:      "secret-value",
		RedirectURL: "/",
		ExpiryDate:  now.Add(5 * time.Minute),
		CreatedAt:   now,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	tok := sampleToken()
	if err := repo.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := repo.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Email != tok.Email || got.Secret != tok.Secret {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.ConsumedAt != nil || got.DisabledAt != nil {
		t.Error("fresh token should have nil terminal timestamps")
	}

	if _, err := repo.GetToken(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing token, got %v", err)
	}
}

func TestConsumeTokenConditional(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	tok := sampleToken()
	if err := repo.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	if err := repo.ConsumeToken(ctx, tok.ID, time.Now()); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := repo.ConsumeToken(ctx, tok.ID, time.Now()); !errors.Is(err, domain.ErrAlreadyConsumed) {
		t.Errorf("second consume: expected ErrAlreadyConsumed, got %v", err)
	}

	got, _ := repo.GetToken(ctx, tok.ID)
	if got.ConsumedAt == nil {
		t.Error("consumed_at not persisted")
	}
}

func TestConsumeDisabledTokenRejected(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	tok := sampleToken()
	if err := repo.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := repo.DisableToken(ctx, tok.ID, time.Now()); err != nil {
		t.Fatalf("DisableToken failed: %v", err)
	}

	if err := repo.ConsumeToken(ctx, tok.ID, time.Now()); !errors.Is(err, domain.ErrAlreadyConsumed) {
		t.Errorf("consume of disabled token: expected ErrAlreadyConsumed, got %v", err)
	}

	// Disabling again is a no-op, not an error.
	if err := repo.DisableToken(ctx, tok.ID, time.Now()); err != nil {
		t.Errorf("repeated disable should be harmless: %v", err)
	}
}

func TestUserDirectory(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, &domain.User{Email: "a@example.com", Active: true}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u, err := repo.FindByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if !u.Active || u.ID == "" {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := repo.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	s := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    "u1",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Active:    true,
	}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := repo.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.UserID != "u1" || !got.Active {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := repo.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := repo.GetSession(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSaveAuditEvent(t *testing.T) {
	repo := testRepo(t)

	err := repo.SaveEvent(context.Background(), &audit.Event{
		Type:      "login.requested",
		SubjectID: "t1",
		Status:    "success",
	})
	if err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}

	var count int64
	if err := repo.DB().Model(&gormAuditEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one audit row, got %d", count)
	}
}
