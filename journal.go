package edusiap

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/denismitr/edusiap/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const journalSuffix = ".log"

// journal is the append-only command log kept next to the database file.
// It starts with a base line naming the checksum of the database file it
// extends, followed by batches of set, del and clear commands, each sealed
// by a commit line. Only sealed batches are replayed.
type journal struct {
	mu       sync.Mutex
	path     string
	strategy PersistenceStrategy
	f        *os.File
	lg       *zap.Logger

	// size is the byte length of the sealed part of the file
	size int64
	// commits counts batches written since the last reset
	commits  int
	unsynced bool
}

func openJournal(path string, strategy PersistenceStrategy, truncateFileOnOpen bool, lg *zap.Logger) (*journal, error) {
	flags := os.O_CREATE | os.O_RDWR
	if truncateFileOnOpen {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, storage.DefaultFilePerm)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open journal %s", path)
	}

	return &journal{path: path, strategy: strategy, f: f, lg: lg}, nil
}

// replay feeds every sealed batch to apply, in order. A journal that was
// written for another database file is discarded, and a torn tail left by
// a crash is cut off. It returns the number of batches applied.
func (j *journal) replay(base string, apply func(cmd *journalCmd) error) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.f.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrapf(ErrStorageFailed, "could not rewind journal %s: %v", j.path, err)
	}

	p := &parser{}
	r := bufio.NewReader(j.f)

	var (
		pending  []*journalCmd
		sealed   int64
		commits  int
		seenBase bool
		parseErr error
	)

	for {
		cmd, err := p.next(r)
		if err != nil {
			parseErr = err
			break
		}

		if !seenBase {
			if cmd.code != baseCode {
				return 0, errors.Wrapf(ErrCommandInvalid, "journal %s does not start with a base line", j.path)
			}

			if cmd.checksum != base {
				j.lg.Warn("discarding journal of another database file",
					zap.String("path", j.path),
					zap.String("journal_base", cmd.checksum),
					zap.String("base", base),
				)
				return 0, j.resetUnderLock(base)
			}

			seenBase = true
			sealed = p.offset
			continue
		}

		switch cmd.code {
		case baseCode:
			return 0, errors.Wrapf(ErrCommandInvalid, "journal %s holds a second base line", j.path)
		case commitCode:
			sum, err := batchChecksum(pending)
			if err != nil {
				return 0, err
			}

			if sum != cmd.checksum {
				return 0, errors.Wrapf(ErrChecksumMismatch, "journal %s batch #%d: expected %s, got %s", j.path, commits+1, cmd.checksum, sum)
			}

			for _, c := range pending {
				if err := apply(c); err != nil {
					return 0, errors.Wrapf(err, "could not replay journal %s batch #%d", j.path, commits+1)
				}
			}

			pending = nil
			sealed = p.offset
			commits++
		default:
			pending = append(pending, cmd)
		}
	}

	if parseErr != io.EOF && !errors.Is(parseErr, io.ErrUnexpectedEOF) {
		return 0, parseErr
	}

	if !seenBase {
		return 0, j.resetUnderLock(base)
	}

	total, err := storage.FileSize(j.f)
	if err != nil {
		return 0, err
	}

	if total > sealed {
		j.lg.Warn("cutting off unsealed journal tail",
			zap.String("path", j.path),
			zap.Int64("sealed", sealed),
			zap.Int64("discarded", total-sealed),
		)
	}

	if err := j.f.Truncate(sealed); err != nil {
		return 0, errors.Wrapf(ErrStorageFailed, "could not truncate journal %s: %v", j.path, err)
	}

	if _, err := j.f.Seek(sealed, io.SeekStart); err != nil {
		return 0, errors.Wrapf(ErrStorageFailed, "could not move the cursor in journal %s: %v", j.path, err)
	}

	j.size = sealed
	j.commits = commits

	return commits, nil
}

// append writes cmds as one sealed batch. In sync mode the batch is on
// disk when append returns.
func (j *journal) append(cmds []*journalCmd) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var rs respSerializer
	if err := rs.serializeBatch(cmds); err != nil {
		return err
	}

	return j.writeUnderLock(rs.buf.Bytes())
}

func (j *journal) writeUnderLock(b []byte) error {
	n, err := j.f.Write(b)
	if err != nil {
		if n > 0 {
			// partial write occurred, must rollback the file
			if tErr := j.f.Truncate(j.size); tErr != nil {
				return errors.Wrapf(ErrDbFileWriteFailed, "%v, and could not truncate journal %s: %v", err, j.path, tErr)
			}

			if _, sErr := j.f.Seek(j.size, io.SeekStart); sErr != nil {
				return errors.Wrapf(ErrDbFileWriteFailed, "%v, and could not seek journal %s: %v", err, j.path, sErr)
			}
		}

		return errors.Wrap(ErrDbFileWriteFailed, err.Error())
	}

	if j.strategy == Sync {
		if err := j.f.Sync(); err != nil {
			return errors.Wrapf(ErrDbFileWriteFailed, "could not sync journal %s: %v", j.path, err)
		}
	} else {
		j.unsynced = true
	}

	j.size += int64(n)
	j.commits++
	return nil
}

func (j *journal) sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.unsynced {
		return nil
	}

	if err := j.f.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync journal %s", j.path)
	}

	j.unsynced = false
	return nil
}

// reset swaps the journal for an empty one extending base.
func (j *journal) reset(base string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.resetUnderLock(base)
}

func (j *journal) resetUnderLock(base string) error {
	var rs respSerializer
	if err := rs.serialize(&journalCmd{code: baseCode, checksum: base}); err != nil {
		return err
	}

	tmpPath := j.path + ".tmp"
	tmpF, tmpClose, err := storage.CreateFile(tmpPath, storage.DefaultFilePerm)
	if err != nil {
		return err
	}

	defer func() {
		_ = tmpClose()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpF.Write(rs.buf.Bytes()); err != nil {
		return errors.Wrapf(err, "could not write into %s", tmpPath)
	}

	if err := tmpF.Sync(); err != nil {
		return errors.Wrapf(err, "could not sync %s", tmpPath)
	}

	if err := j.f.Close(); err != nil {
		return errors.Wrapf(err, "could not close journal %s to swap it", j.path)
	}

	if rnErr := os.Rename(tmpPath, j.path); rnErr != nil {
		resultErr := errors.Wrapf(rnErr, "could not swap journal %s for %s", j.path, tmpPath)
		j.f, err = os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, storage.DefaultFilePerm)
		if err != nil {
			return errors.Wrapf(resultErr, "and could not reopen old journal: %s", err.Error())
		}
		return resultErr
	}

	j.f, err = os.OpenFile(j.path, os.O_RDWR, storage.DefaultFilePerm)
	if err != nil {
		return errors.Wrapf(err, "could not reopen swapped journal %s", j.path)
	}

	pos, err := j.f.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not move the cursor in journal %s: %v", j.path, err)
	}

	j.size = pos
	j.commits = 0
	j.unsynced = false

	return nil
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}

	syncErr := j.f.Sync()
	closeErr := j.f.Close()
	j.f = nil

	if syncErr != nil {
		return errors.Wrapf(syncErr, "could not sync journal %s", j.path)
	}

	if closeErr != nil {
		return errors.Wrapf(closeErr, "could not close journal %s", j.path)
	}

	return nil
}

// remove closes and deletes the journal file.
func (j *journal) remove() error {
	_ = j.close()

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove %s", j.path)
	}

	return nil
}
