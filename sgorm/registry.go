package sgorm

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector
// for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// Register adds a new storage provider to the registry.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// NewStorage opens the named provider, migrates the schema, and returns the
// repository.
func NewStorage(name, dsn string, cfg *gorm.Config) (*Repository, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("sgorm: unknown storage provider %q", name)
	}

	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(opener(dsn), cfg)
	if err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	return repo, nil
}
