package sgorm

import (
	"time"

	"github.com/getsesame/sesame/audit"
	"github.com/getsesame/sesame/domain"
)

type gormToken struct {
	ID          string `gorm:"primaryKey"`
	Email       string `gorm:"index"`
	Secret      string
	RedirectURL string
	IPAddress   string
	CookieValue string
	ExpiryDate  time.Time `gorm:"index"`
	CreatedAt   time.Time
	ConsumedAt  *time.Time
	DisabledAt  *time.Time
}

func (gormToken) TableName() string { return "login_tokens" }

func fromCoreToken(t *domain.Token) *gormToken {
	return &gormToken{
		ID:          t.ID,
		Email:       t.Email,
		Secret:      t.Secret,
		RedirectURL: t.RedirectURL,
		IPAddress:   t.IPAddress,
		CookieValue: t.CookieValue,
		ExpiryDate:  t.ExpiryDate,
		CreatedAt:   t.CreatedAt,
		ConsumedAt:  t.ConsumedAt,
		DisabledAt:  t.DisabledAt,
	}
}

func toCoreToken(t *gormToken) *domain.Token {
	return &domain.Token{
		ID:          t.ID,
		Email:       t.Email,
		Secret:      t.Secret,
		RedirectURL: t.RedirectURL,
		IPAddress:   t.IPAddress,
		CookieValue: t.CookieValue,
		ExpiryDate:  t.ExpiryDate,
		CreatedAt:   t.CreatedAt,
		ConsumedAt:  t.ConsumedAt,
		DisabledAt:  t.DisabledAt,
	}
}

type gormUser struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gormUser) TableName() string { return "users" }

func toCoreUser(u *gormUser) *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

type gormSession struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	IssuedAt  time.Time
	ExpiresAt time.Time
	Active    bool
}

func (gormSession) TableName() string { return "sessions" }

type gormAuditEvent struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	SubjectID string `gorm:"index"`
	Status    string `gorm:"index"`
	Message   string
	IPAddress string
	CreatedAt time.Time `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromCoreAuditEvent(e *audit.Event) *gormAuditEvent {
	if e == nil {
		return nil
	}
	return &gormAuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		SubjectID: e.SubjectID,
		Status:    e.Status,
		Message:   e.Message,
		IPAddress: e.IPAddress,
		CreatedAt: e.CreatedAt,
	}
}
