package edusiap

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type DB struct {
	mu     sync.RWMutex
	e      *engine
	cfg    *Config
	path   string
	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type UserCallback func(tx *Tx) error

type Closer func() error

func NullCloser() error { return nil }

// Open opens (or creates) the database at path, migrates it to the
// configured schema version and seeds default records. Pass ":memory:"
// for a database that is never written to disk.
// Any failure is terminal and matches ErrInitialization.
func Open(path string, cfgs ...*Config) (*DB, Closer, error) {
	cfg := &Config{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cp := *cfgs[0]
		cfg = &cp
	}
	cfg.applyDefaults()

	e, err := newEngine(path, cfg)
	if err != nil {
		return nil, NullCloser, errors.Wrapf(ErrInitialization, "could not open %s: %v", path, err)
	}

	if err := e.init(); err != nil {
		e.abandon()
		return nil, NullCloser, errors.Wrapf(ErrInitialization, "could not load %s: %v", path, err)
	}

	db := &DB{
		e:      e,
		cfg:    cfg,
		path:   path,
		stopCh: make(chan struct{}),
	}

	if _, err := db.EnsureSchema(context.Background(), cfg.Version); err != nil {
		e.abandon()
		return nil, NullCloser, errors.Wrapf(ErrInitialization, "schema migration failed: %v", err)
	}

	if cfg.PersistenceStrategy == Async && e.storage != nil {
		db.wg.Add(1)
		go db.asyncFlush(cfg.AsyncPersistenceInterval)
	}

	return db, db.Close, nil
}

func (db *DB) Registry() *Registry {
	return db.cfg.Registry
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	db.closed = true
	db.stopFlusherUnderLock()

	err := db.e.close()
	db.e = nil

	return err
}

func (db *DB) stopFlusherUnderLock() {
	close(db.stopCh)

	// the flusher may be waiting for the lock we hold
	db.mu.Unlock()
	db.wg.Wait()
	db.mu.Lock()
}

func (db *DB) asyncFlush(d time.Duration) {
	defer db.wg.Done()

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-db.stopCh:
			return
		case <-t.C:
			db.mu.Lock()
			if !db.closed {
				if err := db.e.flush(); err != nil {
					db.cfg.Logger.Error("async flush failed", zap.String("path", db.path), zap.Error(err))
				}
			}
			db.mu.Unlock()
		}
	}
}

func (db *DB) begin(ctx context.Context, readOnly bool) (*Tx, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{e: db.e, ctx: ctx, readOnly: readOnly}, nil
}

// View runs cb in a read-only transaction.
func (db *DB) View(ctx context.Context, cb UserCallback) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tx, err := db.begin(ctx, true)
	if err != nil {
		return err
	}

	return cb(tx)
}

// Update runs cb in a read-write transaction. If cb fails every change it
// made is reverted and the error is returned unchanged.
func (db *DB) Update(ctx context.Context, cb UserCallback) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.updateUnderLock(ctx, cb)
}

func (db *DB) updateUnderLock(ctx context.Context, cb UserCallback) error {
	tx, err := db.begin(ctx, false)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		if tx.changed() {
			db.cfg.Logger.Warn("transaction rolled back", zap.String("path", db.path), zap.Error(err))
		}
		tx.rollback()
		return err
	}

	return db.commitUnderLock(tx)
}

func (db *DB) commitUnderLock(tx *Tx) error {
	if !tx.changed() {
		return nil
	}

	if err := db.e.commit(tx); err != nil {
		// memory must not run ahead of disk
		tx.rollback()
		return err
	}

	return nil
}

// Store returns the generic record store bound to this database.
func (db *DB) Store() *Store {
	return &Store{db: db}
}

// Transfer returns the bulk export, restore and import engine.
func (db *DB) Transfer() *Transfer {
	return &Transfer{db: db}
}
