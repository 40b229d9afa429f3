package edusiap

import (
	"context"

	"github.com/denismitr/edusiap/options"
	"github.com/pkg/errors"
)

type undoFn func()

// Tx is a transaction over every collection in the database.
// Write transactions keep an undo list and are reverted as a whole
// when the user callback fails. Record changes are also collected as
// journal commands for the commit.
type Tx struct {
	e             *engine
	ctx           context.Context
	readOnly      bool
	undo          []undoFn
	redo          []*journalCmd
	schemaChanged bool
}

func (x *Tx) record(fn undoFn, cmd *journalCmd) {
	x.undo = append(x.undo, fn)
	if cmd != nil {
		x.redo = append(x.redo, cmd)
	} else {
		x.schemaChanged = true
	}
}

func (x *Tx) changed() bool {
	return len(x.undo) > 0
}

func (x *Tx) rollback() {
	for i := len(x.undo) - 1; i >= 0; i-- {
		x.undo[i]()
	}
	x.undo = nil
	x.redo = nil
	x.schemaChanged = false
}

func (x *Tx) writable() error {
	if x.readOnly {
		return ErrTxIsReadOnly
	}
	return x.ctx.Err()
}

// Version is the schema version stored in the database.
func (x *Tx) Version() int {
	return x.e.version
}

// Collections lists collections present in storage, sorted by name.
func (x *Tx) Collections() []string {
	return x.e.names()
}

func (x *Tx) HasCollection(name string) bool {
	_, ok := x.e.collections[name]
	return ok
}

// Descriptor returns the stored definition of a collection.
func (x *Tx) Descriptor(name string) (CollectionDescriptor, bool) {
	c, ok := x.e.collections[name]
	if !ok {
		return CollectionDescriptor{}, false
	}
	return c.desc.clone(), true
}

func (x *Tx) Count(coll string) (int, error) {
	c, err := x.e.collection(coll)
	if err != nil {
		return 0, err
	}
	return c.len(), nil
}

// Get returns the record stored under id. A missing record is not an error.
func (x *Tx) Get(coll string, id interface{}) (M, bool, error) {
	c, err := x.e.collection(coll)
	if err != nil {
		return nil, false, err
	}

	k, err := KeyOf(id)
	if err != nil {
		return nil, false, err
	}

	ent, ok := c.get(k)
	if !ok {
		return nil, false, nil
	}

	m, err := decodeRecord(ent.value)
	if err != nil {
		return nil, false, err
	}

	return m, true, nil
}

// Find lists records of coll in key order, optionally bounded by opts.
func (x *Tx) Find(coll string, opts *options.FindOptions) ([]M, error) {
	c, err := x.e.collection(coll)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = options.Find()
	}

	var lower, upper *Key
	if opts.KR != nil {
		if opts.KR.Lower != nil {
			k, err := KeyOf(opts.KR.Lower)
			if err != nil {
				return nil, errors.Wrap(err, "lower bound")
			}
			lower = &k
		}
		if opts.KR.Upper != nil {
			k, err := KeyOf(opts.KR.Upper)
			if err != nil {
				return nil, errors.Wrap(err, "upper bound")
			}
			upper = &k
		}
	}

	result := make([]M, 0, c.len())
	var scanErr error
	iter := func(ent *entry) bool {
		if scanErr = x.ctx.Err(); scanErr != nil {
			return false
		}

		if lower != nil && ent.key.Less(*lower) {
			return opts.O == options.Ascend
		}
		if upper != nil && upper.Less(ent.key) {
			return opts.O == options.Descend
		}

		m, err := decodeRecord(ent.value)
		if err != nil {
			scanErr = err
			return false
		}

		result = append(result, m)
		return opts.Limit <= 0 || len(result) < opts.Limit
	}

	if opts.O == options.Descend {
		c.descend(upper, iter)
	} else {
		c.ascend(lower, iter)
	}

	if scanErr != nil {
		return nil, scanErr
	}

	return result, nil
}

// List returns every record of coll in ascending key order.
func (x *Tx) List(coll string) ([]M, error) {
	return x.Find(coll, nil)
}

// FindByIndex returns records whose indexed field equals value.
func (x *Tx) FindByIndex(coll, indexName string, value interface{}) ([]M, error) {
	c, err := x.e.collection(coll)
	if err != nil {
		return nil, err
	}

	idx, ok := c.indexes[indexName]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownIndex, "%s on %s", indexName, coll)
	}

	v, err := indexValueOf(value)
	if err != nil {
		return nil, err
	}

	var result []M
	var scanErr error
	idx.keysEqualTo(v, func(pk Key) bool {
		ent, ok := c.get(pk)
		if !ok {
			return true
		}

		m, err := decodeRecord(ent.value)
		if err != nil {
			scanErr = err
			return false
		}

		result = append(result, m)
		return true
	})

	if scanErr != nil {
		return nil, scanErr
	}

	return result, nil
}

// Add inserts a new record. Auto-keyed collections generate the key when
// the record does not carry one.
func (x *Tx) Add(coll string, rec M) (Key, error) {
	return x.write(coll, rec, false)
}

// Put inserts or fully replaces the record sharing rec's key.
func (x *Tx) Put(coll string, rec M) (Key, error) {
	return x.write(coll, rec, true)
}

func (x *Tx) write(coll string, rec M, replace bool) (Key, error) {
	if err := x.writable(); err != nil {
		return Key{}, err
	}

	c, err := x.e.collection(coll)
	if err != nil {
		return Key{}, err
	}

	if rec == nil {
		return Key{}, errors.Wrapf(ErrInvalidKey, "nil record for %s", coll)
	}

	k, rec, err := x.resolveKey(c, rec)
	if err != nil {
		return Key{}, err
	}

	value, err := encodeRecord(rec)
	if err != nil {
		return Key{}, err
	}

	ent := newEntry(k, value)

	if _, exists := c.get(k); exists && !replace {
		return Key{}, errors.Wrapf(ErrConstraintViolation, "key %s already exists in %s", k.String(), coll)
	}

	if err := c.checkUnique(ent); err != nil {
		return Key{}, err
	}

	prevSeq := c.seq
	prev := c.set(ent)
	c.advance(k)

	x.record(func() {
		if prev != nil {
			c.set(prev)
		} else {
			c.unset(k)
		}
		c.seq = prevSeq
	}, &journalCmd{code: setCode, coll: coll, key: k, value: value})

	return k, nil
}

// resolveKey returns the record's key, generating one when allowed.
// The caller's map is never modified.
func (x *Tx) resolveKey(c *collection, rec M) (Key, M, error) {
	kp := c.desc.KeyPath
	if v, ok := rec[kp]; ok && v != nil {
		k, err := KeyOf(v)
		if err != nil {
			return Key{}, nil, errors.Wrapf(err, "collection %s", c.name())
		}
		return k, rec, nil
	}

	if !c.desc.AutoIncrement {
		return Key{}, nil, errors.Wrapf(ErrMissingKey, "collection %s requires field %s", c.name(), kp)
	}

	k := IntKey(c.seq + 1)
	cp := make(M, len(rec)+1)
	for f, v := range rec {
		cp[f] = v
	}
	cp[kp] = k.num

	return k, cp, nil
}

// Remove deletes the record under id. Removing a missing key is a no-op.
func (x *Tx) Remove(coll string, id interface{}) error {
	if err := x.writable(); err != nil {
		return err
	}

	c, err := x.e.collection(coll)
	if err != nil {
		return err
	}

	k, err := KeyOf(id)
	if err != nil {
		return err
	}

	prev := c.unset(k)
	if prev == nil {
		return nil
	}

	x.record(func() {
		c.set(prev)
	}, &journalCmd{code: delCode, coll: coll, key: k})

	return nil
}

// Clear removes every record of coll. The key generator is not reset.
func (x *Tx) Clear(coll string) error {
	if err := x.writable(); err != nil {
		return err
	}

	c, err := x.e.collection(coll)
	if err != nil {
		return err
	}

	st := c.truncate()
	x.record(func() {
		c.restore(st)
	}, &journalCmd{code: clearCode, coll: coll})

	return nil
}

func (x *Tx) createCollection(desc CollectionDescriptor) (bool, error) {
	if err := x.writable(); err != nil {
		return false, err
	}

	if _, ok := x.e.collections[desc.Name]; ok {
		return false, nil
	}

	x.e.collections[desc.Name] = newCollection(CollectionDescriptor{
		Name:          desc.Name,
		KeyPath:       desc.KeyPath,
		AutoIncrement: desc.AutoIncrement,
	})

	x.record(func() {
		delete(x.e.collections, desc.Name)
	}, nil)

	return true, nil
}

func (x *Tx) createIndex(coll string, desc IndexDescriptor) (bool, error) {
	if err := x.writable(); err != nil {
		return false, err
	}

	c, err := x.e.collection(coll)
	if err != nil {
		return false, err
	}

	if _, ok := c.indexes[desc.Name]; ok {
		return false, nil
	}

	if err := c.addIndex(desc); err != nil {
		return false, err
	}

	x.record(func() {
		c.dropIndex(desc.Name)
	}, nil)

	return true, nil
}

func (x *Tx) setVersion(v int) {
	prev := x.e.version
	if prev == v {
		return
	}

	x.e.version = v
	x.record(func() {
		x.e.version = prev
	}, nil)
}
