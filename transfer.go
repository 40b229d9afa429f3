package edusiap

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Snapshot maps collection names to their records.
type Snapshot map[string][]M

// Names returns the collection names of the snapshot, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Transfer moves whole collections in and out of the database,
// bypassing per-feature code.
type Transfer struct {
	db *DB
}

// ExportAll reads every collection present in storage. Each collection is
// read in its own transaction, so the result is not an atomic snapshot.
func (t *Transfer) ExportAll(ctx context.Context) (Snapshot, error) {
	var names []string
	if err := t.db.View(ctx, func(tx *Tx) error {
		names = tx.Collections()
		return nil
	}); err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(names))
	for _, n := range names {
		if err := t.db.View(ctx, func(tx *Tx) error {
			recs, err := tx.List(n)
			if err != nil {
				return err
			}
			snap[n] = recs
			return nil
		}); err != nil {
			return nil, errors.Wrapf(err, "could not export %s", n)
		}
	}

	return snap, nil
}

// RestoreAll replaces the entire database content with snap. Every stored
// collection is cleared, then the snapshot records are written with their
// keys. Collections missing from snap end up empty. Either everything is
// applied or nothing is.
// Unlike ImportPartial, a snapshot naming a collection that storage does
// not have is rejected with ErrInvalidSnapshot instead of being skipped.
func (t *Transfer) RestoreAll(ctx context.Context, snap Snapshot) error {
	if snap == nil {
		return errors.Wrap(ErrInvalidSnapshot, "snapshot is empty")
	}

	err := t.db.Update(ctx, func(tx *Tx) error {
		for _, name := range snap.Names() {
			desc, ok := tx.Descriptor(name)
			if !ok {
				return errors.Wrapf(ErrInvalidSnapshot, "collection %s does not exist", name)
			}

			if err := validateRecords(desc, snap[name]); err != nil {
				return err
			}
		}

		for _, name := range tx.Collections() {
			if err := tx.Clear(name); err != nil {
				return abort("restore", err)
			}
		}

		return putAll(tx, "restore", snap, snap.Names())
	})

	if err != nil {
		return err
	}

	t.db.cfg.Logger.Info("database restored", zap.String("path", t.db.path), zap.Strings("collections", snap.Names()))
	return nil
}

// ImportPartial replaces only the collections named in snap, except the
// excluded ones and the credentials collection, which is never touched.
// Collections unknown to storage are ignored. It returns the names of the
// collections that were replaced.
func (t *Transfer) ImportPartial(ctx context.Context, snap Snapshot, excluded ...string) ([]string, error) {
	if snap == nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, "snapshot is empty")
	}

	skip := map[string]struct{}{CredentialsCollection: {}}
	for _, n := range excluded {
		skip[n] = struct{}{}
	}

	var affected []string
	err := t.db.Update(ctx, func(tx *Tx) error {
		for _, name := range snap.Names() {
			if _, ok := skip[name]; ok {
				continue
			}

			desc, ok := tx.Descriptor(name)
			if !ok {
				continue
			}

			if err := validateRecords(desc, snap[name]); err != nil {
				return err
			}

			affected = append(affected, name)
		}

		for _, name := range affected {
			if err := tx.Clear(name); err != nil {
				return abort("import", err)
			}
		}

		return putAll(tx, "import", snap, affected)
	})

	if err != nil {
		return nil, err
	}

	t.db.cfg.Logger.Info("data imported", zap.String("path", t.db.path), zap.Strings("collections", affected))
	return affected, nil
}

// WipeDatabase closes the database and deletes its file. The next Open
// starts from an empty store and migrates and seeds it again.
func (t *Transfer) WipeDatabase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.db.wipe()
}

func putAll(tx *Tx, op string, snap Snapshot, names []string) error {
	for _, name := range names {
		for _, rec := range snap[name] {
			if _, err := tx.Put(name, rec); err != nil {
				return abort(op, errors.Wrapf(err, "collection %s", name))
			}
		}
	}

	return nil
}

func validateRecords(desc CollectionDescriptor, recs []M) error {
	for i, rec := range recs {
		if rec == nil {
			return errors.Wrapf(ErrInvalidSnapshot, "%s[%d] is not an object", desc.Name, i)
		}

		v, ok := rec[desc.KeyPath]
		if !ok || v == nil {
			if desc.AutoIncrement {
				continue
			}
			return errors.Wrapf(ErrInvalidSnapshot, "%s[%d] has no %s", desc.Name, i, desc.KeyPath)
		}

		if _, err := KeyOf(v); err != nil {
			return errors.Wrapf(ErrInvalidSnapshot, "%s[%d]: %v", desc.Name, i, err)
		}
	}

	return nil
}

func (db *DB) wipe() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	db.closed = true
	db.stopFlusherUnderLock()

	err := db.e.destroy()
	db.e = nil

	if err != nil {
		return errors.Wrapf(err, "could not wipe %s", db.path)
	}

	db.cfg.Logger.Warn("database wiped", zap.String("path", db.path))
	return nil
}
