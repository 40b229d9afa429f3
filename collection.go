package edusiap

import (
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

const castPanic = "how could primary keys item not be of type *entry"

type entry struct {
	key   Key
	value []byte
}

func newEntry(key Key, value []byte) *entry {
	return &entry{key: key, value: value}
}

type collection struct {
	desc    CollectionDescriptor
	seq     int64
	pks     *btree.BTree
	indexes map[string]*index
}

func newCollection(desc CollectionDescriptor) *collection {
	c := &collection{
		desc:    desc.clone(),
		pks:     btree.NewNonConcurrent(byPrimaryKeys),
		indexes: make(map[string]*index, len(desc.Indexes)),
	}

	for _, idx := range c.desc.Indexes {
		c.indexes[idx.Name] = newIndex(idx)
	}

	return c
}

func (c *collection) name() string {
	return c.desc.Name
}

func (c *collection) len() int {
	return c.pks.Len()
}

func (c *collection) get(k Key) (*entry, bool) {
	found := c.pks.Get(&entry{key: k})
	if found == nil {
		return nil, false
	}

	ent, ok := found.(*entry)
	if !ok {
		panic(castPanic)
	}

	return ent, true
}

// checkUnique fails when ent would collide with a different record
// on any unique index.
func (c *collection) checkUnique(ent *entry) error {
	for _, idx := range c.indexes {
		if other, collides := idx.conflict(ent); collides {
			v, _ := extractIndexValue(ent.value, idx.desc.KeyPath)
			return errors.Wrapf(
				ErrConstraintViolation,
				"%s.%s value %s already used by key %s",
				c.name(), idx.desc.Name, formatIndexValue(v), other.String(),
			)
		}
	}

	return nil
}

// set stores ent without any checks and returns the record it replaced.
func (c *collection) set(ent *entry) *entry {
	prev, _ := c.get(ent.key)
	if prev != nil {
		c.unindex(prev)
	}

	c.pks.Set(ent)
	c.index(ent)

	return prev
}

// unset removes the record under k without any checks.
func (c *collection) unset(k Key) *entry {
	prev, ok := c.get(k)
	if !ok {
		return nil
	}

	c.unindex(prev)
	c.pks.Delete(prev)

	return prev
}

func (c *collection) index(ent *entry) {
	for _, idx := range c.indexes {
		idx.add(ent)
	}
}

func (c *collection) unindex(ent *entry) {
	for _, idx := range c.indexes {
		idx.remove(ent)
	}
}

// advance moves the key generator past k.
func (c *collection) advance(k Key) {
	if c.desc.AutoIncrement && !k.isStr && k.num > c.seq {
		c.seq = k.num
	}
}

type collectionState struct {
	pks     *btree.BTree
	indexes map[string]*index
	seq     int64
}

// truncate empties the collection and returns what is needed to undo it.
func (c *collection) truncate() collectionState {
	prev := collectionState{pks: c.pks, indexes: c.indexes, seq: c.seq}

	c.pks = btree.NewNonConcurrent(byPrimaryKeys)
	c.indexes = make(map[string]*index, len(c.desc.Indexes))
	for _, idx := range c.desc.Indexes {
		c.indexes[idx.Name] = newIndex(idx)
	}

	return prev
}

func (c *collection) restore(st collectionState) {
	c.pks = st.pks
	c.indexes = st.indexes
	c.seq = st.seq
}

// addIndex builds a new index from the records already stored.
func (c *collection) addIndex(desc IndexDescriptor) error {
	if _, ok := c.indexes[desc.Name]; ok {
		return nil
	}

	idx := newIndex(desc)
	var err error
	c.pks.Ascend(nil, func(i interface{}) bool {
		ent := i.(*entry)
		if other, collides := idx.conflict(ent); collides {
			err = errors.Wrapf(
				ErrConstraintViolation,
				"cannot build unique index %s.%s: keys %s and %s share a value",
				c.name(), desc.Name, other.String(), ent.key.String(),
			)
			return false
		}
		idx.add(ent)
		return true
	})

	if err != nil {
		return err
	}

	c.indexes[desc.Name] = idx
	c.desc.Indexes = append(c.desc.Indexes, desc)

	return nil
}

func (c *collection) dropIndex(name string) {
	delete(c.indexes, name)

	kept := c.desc.Indexes[:0]
	for _, idx := range c.desc.Indexes {
		if idx.Name != name {
			kept = append(kept, idx)
		}
	}
	c.desc.Indexes = kept
}

func (c *collection) ascend(pivot *Key, iter func(ent *entry) bool) {
	var p interface{}
	if pivot != nil {
		p = &entry{key: *pivot}
	}

	c.pks.Ascend(p, func(i interface{}) bool {
		ent, ok := i.(*entry)
		if !ok {
			panic(castPanic)
		}
		return iter(ent)
	})
}

func (c *collection) descend(pivot *Key, iter func(ent *entry) bool) {
	var p interface{}
	if pivot != nil {
		p = &entry{key: *pivot}
	}

	c.pks.Descend(p, func(i interface{}) bool {
		ent, ok := i.(*entry)
		if !ok {
			panic(castPanic)
		}
		return iter(ent)
	})
}
