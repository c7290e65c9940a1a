package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReason is returned when a delete is requested with a reason
	// other than completed or deleted.
	ErrInvalidReason = errors.New("invalid history reason")
)

// HistoryError reports that a history snapshot could not be composed. The
// operation that triggered it is aborted as a whole.
type HistoryError struct {
	Entity string
	ID     int64
	Err    error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("%s %d: invalid history record: %v", e.Entity, e.ID, e.Err)
}

func (e *HistoryError) Unwrap() error {
	return e.Err
}
