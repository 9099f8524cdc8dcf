package blob

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("blob: object not found")
	ErrAccessDenied     = errors.New("blob: access denied")
	ErrChecksumMismatch = errors.New("blob: checksum mismatch")
	ErrInvalidKey       = errors.New("blob: invalid key")
	ErrUnknownBackend   = errors.New("blob: unknown backend")
)

// Error is returned by every IBlobClient operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func newError(op, key string, err error) *Error {
	return &Error{Op: op, Key: key, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("blob %s '%s': %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
