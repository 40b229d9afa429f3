package edusiap

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Seeder inserts a fixed record when it is absent. Seed reports whether
// anything was inserted; it must never overwrite existing data.
// Seeders run once, right after the collections are created by an
// upgrade, unless EveryOpen is set.
type Seeder struct {
	Name      string
	Seed      func(tx *Tx, cfg *Config) (bool, error)
	EveryOpen bool
}

type MigrationReport struct {
	FromVersion        int
	ToVersion          int
	CreatedCollections []string
	CreatedIndexes     []string
	Seeded             []string
}

func (r *MigrationReport) Changed() bool {
	return r.FromVersion != r.ToVersion ||
		len(r.CreatedCollections) > 0 ||
		len(r.CreatedIndexes) > 0 ||
		len(r.Seeded) > 0
}

// EnsureSchema brings storage up to version. When the stored version is
// lower, missing collections and indexes declared in the registry are
// created, existing ones are left alone, then the seeders run.
// Everything happens in one write transaction. At the stored version only
// EveryOpen seeders run, so records an operator renamed or deleted stay
// that way.
func (db *DB) EnsureSchema(ctx context.Context, version int) (*MigrationReport, error) {
	var report *MigrationReport

	err := db.Update(ctx, func(tx *Tx) error {
		r, err := migrate(tx, db.cfg, version)
		if err != nil {
			return err
		}

		report = r
		return nil
	})

	if err != nil {
		return nil, err
	}

	if report.Changed() {
		db.cfg.Logger.Info("schema ensured",
			zap.String("path", db.path),
			zap.Int("from", report.FromVersion),
			zap.Int("to", report.ToVersion),
			zap.Strings("collections", report.CreatedCollections),
			zap.Strings("indexes", report.CreatedIndexes),
			zap.Strings("seeded", report.Seeded),
		)
	}

	return report, nil
}

func migrate(tx *Tx, cfg *Config, version int) (*MigrationReport, error) {
	stored := tx.Version()
	if version < stored {
		return nil, errors.Errorf("requested version %d is lower than stored version %d", version, stored)
	}

	r := &MigrationReport{FromVersion: stored, ToVersion: version}

	upgraded := stored < version
	if upgraded {
		if err := upgrade(tx, cfg, r); err != nil {
			return nil, err
		}
		tx.setVersion(version)
	}

	for _, s := range cfg.Seeders {
		if !upgraded && !s.EveryOpen {
			continue
		}

		seeded, err := s.Seed(tx, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "seeder %s failed", s.Name)
		}

		if seeded {
			cfg.Logger.Info("seeded default record", zap.String("seeder", s.Name))
			r.Seeded = append(r.Seeded, s.Name)
		}
	}

	return r, nil
}

func upgrade(tx *Tx, cfg *Config, r *MigrationReport) error {
	for _, desc := range cfg.Registry.Descriptors() {
		created, err := tx.createCollection(desc)
		if err != nil {
			return err
		}

		if created {
			cfg.Logger.Info("collection created", zap.String("collection", desc.Name))
			r.CreatedCollections = append(r.CreatedCollections, desc.Name)
		}

		for _, idx := range desc.Indexes {
			created, err := tx.createIndex(desc.Name, idx)
			if err != nil {
				return err
			}

			if created {
				cfg.Logger.Info("index created", zap.String("collection", desc.Name), zap.String("index", idx.Name))
				r.CreatedIndexes = append(r.CreatedIndexes, fmt.Sprintf("%s.%s", desc.Name, idx.Name))
			}
		}
	}

	return nil
}
