package edusiap

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrInitialization = errors.New("database could not be initialized")
var ErrUnknownCollection = errors.New("unknown collection")
var ErrUnknownIndex = errors.New("unknown index")
var ErrConstraintViolation = errors.New("constraint violation")
var ErrInvalidSnapshot = errors.New("invalid snapshot")
var ErrTxAborted = errors.New("transaction aborted")
var ErrTxIsReadOnly = errors.New("transaction is read only")
var ErrMissingKey = errors.New("record has no primary key")
var ErrInvalidKey = errors.New("invalid key value")
var ErrDatabaseClosed = errors.New("database is closed")
var ErrInvalidRegistry = errors.New("invalid schema registry")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrStorageFailed = errors.New("storage error")

// AbortedError is returned when a multi-collection write was rolled back.
// It matches ErrTxAborted and unwraps to the error that caused the abort,
// so errors.Is(err, ErrConstraintViolation) keeps working.
type AbortedError struct {
	Op  string
	Err error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTxAborted.Error(), e.Err)
}

func (e *AbortedError) Unwrap() error {
	return e.Err
}

func (e *AbortedError) Is(target error) bool {
	return target == ErrTxAborted
}

func abort(op string, err error) error {
	return &AbortedError{Op: op, Err: err}
}
