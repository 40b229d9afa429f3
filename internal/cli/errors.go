package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/denismitr/edusiap"
)

const (
	ExitCodeSuccess      = 0
	ExitCodeGeneric      = 1
	ExitCodeUsage        = 2
	ExitCodeNotFound     = 3
	ExitCodeIO           = 4
	ExitCodeInvalidInput = 5
	ExitCodeConflict     = 6
	ExitCodeInit         = 7
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

func asExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}

	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}

	switch {
	case errors.Is(err, edusiap.ErrInitialization):
		return asExitError(ExitCodeInit, err)
	case errors.Is(err, edusiap.ErrUnknownCollection), errors.Is(err, edusiap.ErrUnknownIndex):
		return asExitError(ExitCodeNotFound, err)
	case errors.Is(err, edusiap.ErrInvalidSnapshot):
		return asExitError(ExitCodeInvalidInput, err)
	case errors.Is(err, edusiap.ErrConstraintViolation), errors.Is(err, edusiap.ErrTxAborted):
		return asExitError(ExitCodeConflict, err)
	case errors.Is(err, edusiap.ErrStorageFailed):
		return asExitError(ExitCodeIO, err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) {
		return asExitError(ExitCodeIO, err)
	}

	return asExitError(ExitCodeGeneric, err)
}

func usageErrorf(format string, args ...interface{}) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}
