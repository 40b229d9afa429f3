package storage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const DefaultFilePerm os.FileMode = 0600
const DefaultDirPerm os.FileMode = 0700

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
		return errors.Wrapf(err, "could not create directory %s", dir)
	}
	return nil
}

// CreateFile truncates or creates path and returns it with a closer.
func CreateFile(path string, perm os.FileMode) (*os.File, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not create file %s", path)
	}
	return f, f.Close, nil
}

func OpenFile(path string) (*os.File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open file %s", path)
	}
	return f, f.Close, nil
}

func FileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "could not measure file %s", f.Name())
	}
	return info.Size(), nil
}
