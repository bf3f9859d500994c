package tallybase

import (
	"fmt"
	"syscall"
)

// ErrNotImplemented marks operations we refuse rather than fake.
var ErrNotImplemented = fmt.Errorf("%w: not implemented", syscall.ENOSYS)

// ValidationError means a charge field, state, or context name failed
// a pre-I/O check.  Nothing has touched the disk when one of these is
// returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NotFoundError is returned where absence is exceptional -- e.g.
// marking a charge that doesn't exist.  Plain lookups return nil or
// empty instead.
type NotFoundError struct {
	Kind string // "charge" or "context"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// StorageError wraps an underlying I/O, directory-creation, or
// compression failure.  The cause is never swallowed.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Cause supports github.com/pkg/errors.Cause.
func (e *StorageError) Cause() error { return e.Err }

// CorruptError means an object file exists but can't be decompressed,
// parsed, or re-validated.  Distinguishable from "never existed",
// which GetCharge reports as a nil charge.
type CorruptError struct {
	Hash string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt object %s: %v", e.Hash, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Cause() error { return e.Err }
