package edusiap

import (
	"sort"

	"github.com/denismitr/edusiap/internal/storage/jsonstorage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const InMemory = ":memory:"

// engine holds every collection in memory. On disk it keeps a checksummed
// database file plus a journal of the commits made since that file was
// written. Close folds the journal back into the file.
type engine struct {
	id          string
	version     int
	collections map[string]*collection
	cfg         *Config
	storage     *jsonstorage.Storage
	journal     *journal
	// base is the checksum of the database file the journal extends
	base string
	// mustCompact is set when the journal cannot be trusted with the next
	// batch, so the next commit rewrites the database file instead
	mustCompact bool
	lg          *zap.Logger
}

func newEngine(path string, cfg *Config) (*engine, error) {
	e := &engine{
		id:          uuid.NewString(),
		collections: make(map[string]*collection),
		cfg:         cfg,
		lg:          cfg.Logger,
	}

	if path == InMemory {
		return e, nil
	}

	s, err := jsonstorage.New(path)
	if err != nil {
		return nil, err
	}
	e.storage = s

	if cfg.TruncateFileWhenOpen {
		if err := s.Remove(); err != nil {
			return nil, err
		}
	}

	j, err := openJournal(path+journalSuffix, cfg.PersistenceStrategy, cfg.TruncateFileWhenOpen, cfg.Logger)
	if err != nil {
		return nil, err
	}
	e.journal = j

	return e, nil
}

// init loads the database file if there is one, then replays the journal
// on top of it.
func (e *engine) init() error {
	if e.storage == nil {
		return nil
	}

	if e.storage.Exists() {
		var f dbFile
		if err := e.storage.Read(&f); err != nil {
			return err
		}

		if err := e.load(&f); err != nil {
			return err
		}

		e.base = f.Checksum
	}

	commits, err := e.journal.replay(e.base, e.apply)
	if err != nil {
		return err
	}

	e.lg.Info("database file loaded",
		zap.String("path", e.storage.Path()),
		zap.String("id", e.id),
		zap.Int("version", e.version),
		zap.Int("collections", len(e.collections)),
		zap.Int("journal_commits", commits),
	)

	return nil
}

// apply replays a single journal command without any checks.
func (e *engine) apply(cmd *journalCmd) error {
	c, err := e.collection(cmd.coll)
	if err != nil {
		return err
	}

	switch cmd.code {
	case setCode:
		c.set(newEntry(cmd.key, cmd.value))
		c.advance(cmd.key)
	case delCode:
		c.unset(cmd.key)
	case clearCode:
		c.truncate()
	default:
		return errors.Wrapf(ErrCommandInvalid, "command code %d cannot be replayed", cmd.code)
	}

	return nil
}

// commit makes the changes of a finished write transaction durable.
// Schema changes rewrite the database file, everything else is appended
// to the journal.
func (e *engine) commit(tx *Tx) error {
	if e.storage == nil {
		return nil
	}

	if tx.schemaChanged || e.mustCompact {
		return e.compact()
	}

	if err := e.journal.append(tx.redo); err != nil {
		e.mustCompact = true
		return errors.Wrap(ErrStorageFailed, err.Error())
	}

	if e.journal.size >= e.cfg.AutoCompactionMinSize {
		if err := e.compact(); err != nil {
			// the batch is already in the journal
			e.lg.Error("journal compaction failed", zap.String("path", e.storage.Path()), zap.Error(err))
		}
	}

	return nil
}

// compact writes every collection to the database file and starts an
// empty journal on top of it.
func (e *engine) compact() error {
	f, err := e.dump()
	if err != nil {
		return err
	}

	if err := e.storage.Write(f); err != nil {
		return errors.Wrap(ErrStorageFailed, err.Error())
	}

	e.base = f.Checksum

	if err := e.journal.reset(f.Checksum); err != nil {
		// the database file already holds everything, the stale journal
		// is discarded on the next open
		e.mustCompact = true
		e.lg.Error("could not reset journal", zap.String("path", e.storage.Path()), zap.Error(err))
		return nil
	}

	e.mustCompact = false
	e.lg.Debug("journal compacted", zap.String("path", e.storage.Path()), zap.String("checksum", f.Checksum))
	return nil
}

// flush syncs journal batches written in async mode.
func (e *engine) flush() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.sync()
}

func (e *engine) collection(name string) (*collection, error) {
	c, ok := e.collections[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCollection, "%s", name)
	}
	return c, nil
}

func (e *engine) names() []string {
	names := make([]string, 0, len(e.collections))
	for n := range e.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *engine) close() error {
	defer func() {
		e.collections = nil
	}()

	if e.storage == nil {
		return nil
	}

	if e.journal.commits > 0 || e.mustCompact || !e.storage.Exists() {
		if err := e.compact(); err != nil {
			_ = e.journal.close()
			return err
		}
	}

	return e.journal.close()
}

// abandon releases the journal without touching the database file.
func (e *engine) abandon() {
	if e.journal != nil {
		_ = e.journal.close()
	}
	e.collections = nil
}

func (e *engine) destroy() error {
	e.collections = nil

	if e.storage == nil {
		return nil
	}

	if err := e.journal.remove(); err != nil {
		return err
	}

	return e.storage.Remove()
}
