package core

import (
	"errors"
	"fmt"
)

// Kind is a coarse error taxonomy shared across MetaDB, StateDB and StoneReader.
type Kind string

const (
	NotFound           Kind = "not_found"
	Corrupt            Kind = "corrupt"
	IOError            Kind = "io_error"
	MalformedEntry     Kind = "malformed_entry"
	TransactionAborted Kind = "transaction_aborted"
)

// Sentinel errors for errors.Is comparisons.
var (
	ErrNotFound           = errors.New("not found")
	ErrCorrupt            = errors.New("corrupt")
	ErrIOError            = errors.New("io error")
	ErrMalformedEntry     = errors.New("malformed entry")
	ErrTransactionAborted = errors.New("transaction aborted")
)

func sentinelFor(k Kind) error {
	switch k {
	case NotFound:
		return ErrNotFound
	case Corrupt:
		return ErrCorrupt
	case IOError:
		return ErrIOError
	case MalformedEntry:
		return ErrMalformedEntry
	case TransactionAborted:
		return ErrTransactionAborted
	default:
		return nil
	}
}

// Error wraps a low-level failure with the kind of thing that went wrong and
// the operation that was attempted, so callers can errors.Is() against a
// taxonomy instead of matching string messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// Offset is set for Corrupt errors raised while parsing a stone archive,
	// where known; zero otherwise.
	Offset int64
}

func (e *Error) Error() string {
	if e.Offset != 0 {
		return fmt.Sprintf("%s: %s (at offset %d): %v", e.Op, e.Kind, e.Offset, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelFor(e.Kind)
}

// Is lets errors.Is(err, core.ErrNotFound) succeed even when Err is nil,
// by matching on Kind's sentinel directly.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

// Wrap produces an *Error tagging err with op and kind.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WrapAt is Wrap with a known byte offset, for Corrupt archive errors.
func WrapAt(op string, kind Kind, offset int64, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Offset: offset}
}

// NotFoundError gives queries context about exactly what was missing.
type NotFoundError struct {
	Table string
	Key   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Table, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// MalformedEntryError names which entry field violated an invariant.
type MalformedEntryError struct {
	PkgID string
	Field string
	Why   string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("entry %s: field %s: %s", e.PkgID, e.Field, e.Why)
}

func (e *MalformedEntryError) Unwrap() error {
	return ErrMalformedEntry
}
