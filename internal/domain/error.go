package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrConstraint         = errors.New("constraint violation")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// UpsertError is the result of a failed profile upsert. Callers on the
// message path receive it from a detached task and discard it.
type UpsertError struct {
	TelegramID int64
	Err        error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert user %d: %v", e.TelegramID, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }
