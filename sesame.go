// Package sesame provides convenience constructors for embedding the
// magic-link flows into an existing application with a GORM database.
package sesame

import (
	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/flow"
	"github.com/getsesame/sesame/session"
	"github.com/getsesame/sesame/sgorm"
	"github.com/getsesame/sesame/token"
	"gorm.io/gorm"
)

// Policy is re-exported for callers that only import this package.
type Policy = domain.Policy

// DefaultPolicy returns the stock token policy.
func DefaultPolicy() Policy { return domain.DefaultPolicy() }

// NewDefaultEngine creates a token lifecycle engine over db.
func NewDefaultEngine(db *gorm.DB, policy Policy) *token.Engine {
	return token.NewEngine(sgorm.NewRepository(db), policy, nil)
}

// NewDefaultLoginManager creates a LoginManager over db. The notifier is
// the caller's email transport; baseURL is the origin verification links
// are built on.
func NewDefaultLoginManager(db *gorm.DB, policy Policy, notifier domain.Notifier, baseURL string) *flow.LoginManager {
	return flow.NewLoginManager(NewDefaultEngine(db, policy), notifier, baseURL, nil)
}

// NewDefaultVerifier creates a Verifier over db with database-backed
// sessions.
func NewDefaultVerifier(db *gorm.DB, policy Policy) *flow.Verifier {
	repo := sgorm.NewRepository(db)
	engine := token.NewEngine(repo, policy, nil)
	return flow.NewVerifier(engine, repo, session.NewDatabaseStrategy(repo), nil)
}
