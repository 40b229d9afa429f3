package edusiap

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var defaultPersistenceInterval = 1 * time.Second
var defaultAutoCompactionMinSize int64 = 4 << 20

type Config struct {
	// Version is the schema version requested at open.
	Version  int
	Registry *Registry
	Seeders  []Seeder

	PersistenceStrategy      PersistenceStrategy
	AsyncPersistenceInterval time.Duration
	TruncateFileWhenOpen     bool
	// AutoCompactionMinSize is the journal size in bytes that triggers a
	// rewrite of the database file.
	AutoCompactionMinSize int64

	// PasswordHashCost is the bcrypt cost used for seeded accounts.
	PasswordHashCost int

	Logger *zap.Logger
}

func (cfg *Config) applyDefaults() {
	if cfg.Registry == nil {
		cfg.Registry = SchoolRegistry()
		if cfg.Version == 0 {
			cfg.Version = SchoolSchemaVersion
		}
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Seeders == nil {
		cfg.Seeders = DefaultSeeders()
	}

	if cfg.PersistenceStrategy == "" {
		cfg.PersistenceStrategy = Sync
	} else if cfg.PersistenceStrategy == Async && cfg.AsyncPersistenceInterval == 0 {
		cfg.AsyncPersistenceInterval = defaultPersistenceInterval
	}

	if cfg.AutoCompactionMinSize <= 0 {
		cfg.AutoCompactionMinSize = defaultAutoCompactionMinSize
	}

	if cfg.PasswordHashCost == 0 {
		cfg.PasswordHashCost = bcrypt.DefaultCost
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}
