// Package health provides liveness and readiness checks for Sesame.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of a single health check.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc runs one health check.
type CheckFunc func(ctx context.Context) *Check

// Manager runs registered checks and serves the results.
type Manager struct {
	mu      sync.RWMutex
	version string
	timeout time.Duration
	checks  map[string]CheckFunc
}

func NewManager(version string) *Manager {
	return &Manager{
		version: version,
		timeout: 5 * time.Second,
		checks:  make(map[string]CheckFunc),
	}
}

// RegisterFunc adds a named readiness check.
func (m *Manager) RegisterFunc(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
}

// NewDatabaseCheck adapts a ping function into a CheckFunc.
func NewDatabaseCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) *Check {
		if err := ping(ctx); err != nil {
			return &Check{Name: name, Status: StatusUnhealthy, Message: err.Error()}
		}
		return &Check{Name: name, Status: StatusHealthy}
	}
}

type report struct {
	Status  Status  `json:"status"`
	Version string  `json:"version"`
	Checks  []Check `json:"checks,omitempty"`
}

func (m *Manager) run(ctx context.Context) report {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.RLock()
	defer m.mu.RUnlock()

	rep := report{Status: StatusHealthy, Version: m.version}
	for _, fn := range m.checks {
		c := fn(ctx)
		if c.Status != StatusHealthy {
			rep.Status = StatusUnhealthy
		}
		rep.Checks = append(rep.Checks, *c)
	}
	return rep
}

// LiveHandler answers liveness probes: the process is up.
func (m *Manager) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, report{Status: StatusHealthy, Version: m.version})
	})
}

// ReadyHandler answers readiness probes: every registered check passes.
func (m *Manager) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := m.run(r.Context())
		code := http.StatusOK
		if rep.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
