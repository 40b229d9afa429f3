package jsonstorage

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/denismitr/edusiap/internal/storage"
	"github.com/pkg/errors"
)

// Storage keeps a single JSON document on disk. Writes go to a sibling
// tmp file which is synced and renamed over the original, so a crash
// leaves either the old or the new document.
type Storage struct {
	mu       sync.Mutex
	fullPath string
	tmpPath  string
}

func New(fullPath string) (*Storage, error) {
	if fullPath == "" {
		return nil, errors.New("database path is empty")
	}

	if err := storage.EnsureDir(fullPath); err != nil {
		return nil, err
	}

	return &Storage{fullPath: fullPath, tmpPath: fullPath + ".tmp"}, nil
}

func (s *Storage) Path() string {
	return s.fullPath
}

func (s *Storage) Exists() bool {
	return storage.FileExists(s.fullPath)
}

func (s *Storage) Write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpF, tmpClose, err := storage.CreateFile(s.tmpPath, storage.DefaultFilePerm)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(tmpF).Encode(v); err != nil {
		_ = tmpClose()
		_ = os.Remove(s.tmpPath)
		return errors.Wrapf(err, "could not write to tmp file %s", s.tmpPath)
	}

	if err := tmpF.Sync(); err != nil {
		_ = tmpClose()
		_ = os.Remove(s.tmpPath)
		return errors.Wrapf(err, "could not sync tmp file %s", s.tmpPath)
	}

	if err := tmpClose(); err != nil {
		_ = os.Remove(s.tmpPath)
		return errors.Wrapf(err, "could not close tmp file %s", s.tmpPath)
	}

	if err := os.Rename(s.tmpPath, s.fullPath); err != nil {
		_ = os.Remove(s.tmpPath)
		return errors.Wrapf(err, "could not replace %s with %s", s.fullPath, s.tmpPath)
	}

	return nil
}

func (s *Storage) Read(dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, fClose, err := storage.OpenFile(s.fullPath)
	if err != nil {
		return err
	}

	defer fClose()

	size, err := storage.FileSize(f)
	if err != nil {
		return err
	}

	buf := bytes.NewBuffer(make([]byte, 0, size+1))
	if _, err := io.Copy(buf, f); err != nil {
		return errors.Wrapf(err, "could not read %s", s.fullPath)
	}

	if err := json.Unmarshal(buf.Bytes(), dest); err != nil {
		return errors.Wrapf(err, "could not unmarshal %s", s.fullPath)
	}

	return nil
}

// Remove deletes the document and any leftover tmp file.
func (s *Storage) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.fullPath, s.tmpPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove %s", p)
		}
	}

	return nil
}
