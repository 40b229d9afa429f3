package edusiap

import (
	"context"

	"github.com/denismitr/edusiap/options"
	"github.com/pkg/errors"
)

// Store is the generic record store. Every call runs in its own
// transaction against a collection declared in the registry.
type Store struct {
	db *DB
}

func (s *Store) known(coll string) error {
	if !s.db.cfg.Registry.Has(coll) {
		return errors.Wrapf(ErrUnknownCollection, "%s is not declared", coll)
	}
	return nil
}

func (s *Store) view(ctx context.Context, coll string, cb UserCallback) error {
	if err := s.known(coll); err != nil {
		return err
	}
	return s.db.View(ctx, cb)
}

func (s *Store) update(ctx context.Context, coll string, cb UserCallback) error {
	if err := s.known(coll); err != nil {
		return err
	}
	return s.db.Update(ctx, cb)
}

// Add inserts rec and returns its key. A clash on the primary key or a
// unique index fails with ErrConstraintViolation.
func (s *Store) Add(ctx context.Context, coll string, rec M) (Key, error) {
	var k Key
	err := s.update(ctx, coll, func(tx *Tx) error {
		var err error
		k, err = tx.Add(coll, rec)
		return err
	})
	return k, err
}

// Get returns the record under id; ok is false when there is none.
func (s *Store) Get(ctx context.Context, coll string, id interface{}) (rec M, ok bool, err error) {
	err = s.view(ctx, coll, func(tx *Tx) error {
		rec, ok, err = tx.Get(coll, id)
		return err
	})
	return
}

func (s *Store) List(ctx context.Context, coll string) ([]M, error) {
	return s.Find(ctx, coll, nil)
}

func (s *Store) Find(ctx context.Context, coll string, opts *options.FindOptions) ([]M, error) {
	var out []M
	err := s.view(ctx, coll, func(tx *Tx) error {
		var err error
		out, err = tx.Find(coll, opts)
		return err
	})
	return out, err
}

func (s *Store) FindByIndex(ctx context.Context, coll, index string, value interface{}) ([]M, error) {
	var out []M
	err := s.view(ctx, coll, func(tx *Tx) error {
		var err error
		out, err = tx.FindByIndex(coll, index, value)
		return err
	})
	return out, err
}

func (s *Store) Count(ctx context.Context, coll string) (int, error) {
	var n int
	err := s.view(ctx, coll, func(tx *Tx) error {
		var err error
		n, err = tx.Count(coll)
		return err
	})
	return n, err
}

// Update replaces the record sharing rec's key, creating it when absent.
func (s *Store) Update(ctx context.Context, coll string, rec M) (Key, error) {
	var k Key
	err := s.update(ctx, coll, func(tx *Tx) error {
		var err error
		k, err = tx.Put(coll, rec)
		return err
	})
	return k, err
}

// Remove deletes the record under id. Missing records are ignored.
func (s *Store) Remove(ctx context.Context, coll string, id interface{}) error {
	return s.update(ctx, coll, func(tx *Tx) error {
		return tx.Remove(coll, id)
	})
}
