// Package sgorm provides the GORM-based implementation of the Sesame
// storage interfaces: login tokens, users, sessions, and audit events.
package sgorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsesame/sesame/audit"
	"github.com/getsesame/sesame/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&gormToken{},
		&gormUser{},
		&gormSession{},
		&gormAuditEvent{},
	)
}

func (r *Repository) SaveToken(ctx context.Context, t *domain.Token) error {
	if err := r.db.WithContext(ctx).Create(fromCoreToken(t)).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (r *Repository) GetToken(ctx context.Context, id string) (*domain.Token, error) {
	var gt gormToken
	if err := r.db.WithContext(ctx).First(&gt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return toCoreToken(&gt), nil
}

// ConsumeToken performs the serializing conditional update: the row is only
// touched while still unconsumed and enabled, and the affected-row count
// decides the race between concurrent verifications.
func (r *Repository) ConsumeToken(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&gormToken{}).
		Where("id = ? AND consumed_at IS NULL AND disabled_at IS NULL", id).
		Update("consumed_at", at)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyConsumed
	}
	return nil
}

func (r *Repository) DisableToken(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&gormToken{}).
		Where("id = ? AND disabled_at IS NULL", id).
		Update("disabled_at", at)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, res.Error)
	}
	// Zero affected rows means the token was already disabled.
	return nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var gu gormUser
	if err := r.db.WithContext(ctx).First(&gu, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return toCoreUser(&gu), nil
}

// CreateUser inserts an account. Sesame itself never calls this during
// authentication; it exists for provisioning and tests.
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	gu := &gormUser{ID: u.ID, Email: u.Email, Active: u.Active, CreatedAt: u.CreatedAt}
	if err := r.db.WithContext(ctx).Create(gu).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, s *domain.Session) error {
	gs := &gormSession{
		ID:        s.ID,
		UserID:    s.UserID,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
		Active:    s.Active,
	}
	if err := r.db.WithContext(ctx).Create(gs).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var gs gormSession
	if err := r.db.WithContext(ctx).First(&gs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return &domain.Session{
		ID:        gs.ID,
		UserID:    gs.UserID,
		IssuedAt:  gs.IssuedAt,
		ExpiresAt: gs.ExpiresAt,
		Active:    gs.Active,
	}, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&gormSession{}, "id = ?", id).Error
}

func (r *Repository) SaveEvent(ctx context.Context, event *audit.Event) error {
	ge := fromCoreAuditEvent(event)
	if ge.ID == "" {
		ge.ID = uuid.New().String()
	}
	if ge.CreatedAt.IsZero() {
		ge.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(ge).Error
}
