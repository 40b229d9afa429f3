package edusiap

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrChecksumMismatch = errors.New("database file checksum mismatch")
var ErrDbFileWriteFailed = errors.New("database write failed")
var ErrSourceFileReadFailed = errors.New("source file read failed")
var ErrCommandInvalid = errors.New("command invalid")

type PersistenceStrategy string

const (
	Async PersistenceStrategy = "async"
	Sync  PersistenceStrategy = "sync"
)

// dbFile is the on-disk envelope. Checksum covers Payload byte for byte.
type dbFile struct {
	ID       string          `json:"id"`
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

type dbPayload struct {
	Collections []storedCollection `json:"collections"`
}

type storedCollection struct {
	CollectionDescriptor
	Sequence int64             `json:"sequence"`
	Records  []json.RawMessage `json:"records"`
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func (e *engine) dump() (*dbFile, error) {
	p := dbPayload{Collections: make([]storedCollection, 0, len(e.collections))}

	for _, name := range e.names() {
		c := e.collections[name]
		sc := storedCollection{
			CollectionDescriptor: c.desc.clone(),
			Sequence:             c.seq,
			Records:              make([]json.RawMessage, 0, c.len()),
		}

		c.ascend(nil, func(ent *entry) bool {
			sc.Records = append(sc.Records, json.RawMessage(ent.value))
			return true
		})

		p.Collections = append(p.Collections, sc)
	}

	b, err := json.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal database payload")
	}

	return &dbFile{
		ID:       e.id,
		Version:  e.version,
		Checksum: checksum(b),
		Payload:  b,
	}, nil
}

func (e *engine) load(f *dbFile) error {
	if sum := checksum(f.Payload); sum != f.Checksum {
		return errors.Wrapf(ErrChecksumMismatch, "expected %s, got %s", f.Checksum, sum)
	}

	var p dbPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return errors.Wrap(err, "could not unmarshal database payload")
	}

	collections := make(map[string]*collection, len(p.Collections))
	for _, sc := range p.Collections {
		if err := sc.CollectionDescriptor.validate(); err != nil {
			return err
		}

		c := newCollection(sc.CollectionDescriptor)
		c.seq = sc.Sequence

		for _, raw := range sc.Records {
			k, err := keyFromJSON(raw, c.desc.KeyPath)
			if err != nil {
				return errors.Wrapf(err, "collection %s holds a record without a valid key", c.name())
			}

			c.set(newEntry(k, []byte(raw)))
			c.advance(k)
		}

		collections[c.name()] = c
	}

	if f.ID != "" {
		e.id = f.ID
	}
	e.version = f.Version
	e.collections = collections

	return nil
}
