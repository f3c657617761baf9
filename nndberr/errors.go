// Package nndberr defines the sentinel error kinds surfaced by the core
// table and index engine. Callers should match them with errors.Is/errors.As
// rather than string comparison.
package nndberr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions the core can detect on its own.
var (
	ErrTableMissing    = errors.New("table does not exist")
	ErrTableExists     = errors.New("table already exists")
	ErrIndexMissing    = errors.New("index does not exist")
	ErrIndexExists     = errors.New("index already exists")
	ErrNoKey           = errors.New("document has no _id")
	ErrNotFound        = errors.New("index points at a document that does not exist")
	ErrWriteFail       = errors.New("underlying write failed")
	ErrReindexMismatch = errors.New("old index key not found during save")
	ErrBadTemplate     = errors.New("malformed key template")
	ErrTypeError       = errors.New("value cannot be coerced to the expected type")
	ErrReservedName    = errors.New("name uses a reserved prefix")
)

// Wrap attaches op context to err and preserves it for errors.Is/As.
// It formats as "op: err" via fmt.Errorf with %w.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Fatal reports whether err represents on-disk corruption rather than a
// recoverable condition. Callers should not retry or paper over these.
func Fatal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrReindexMismatch)
}
