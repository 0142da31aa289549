// Package audit defines the security event record emitted by the login
// flows and the store interface implementations persist it through.
package audit

import (
	"context"
	"time"
)

// Event represents a structured security event record.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`       // e.g. "login.requested", "token.consumed"
	SubjectID string    `json:"subject_id"` // token or user the event concerns
	Status    string    `json:"status"`     // "success", "failure"
	Message   string    `json:"message"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for persisting audit events.
type Store interface {
	SaveEvent(ctx context.Context, event *Event) error
}

// NopStore discards every event. Useful when auditing is disabled.
type NopStore struct{}

func (NopStore) SaveEvent(context.Context, *Event) error { return nil }
