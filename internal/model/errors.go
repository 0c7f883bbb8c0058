package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("unique constraint violated")
	// ErrReferenced is returned when a delete would leave a dangling reference behind.
	ErrReferenced = errors.New("record is still referenced")
)

// ConflictError reports which unique field rejected a write.
type ConflictError struct {
	Entity string
	Field  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with this %s already exists", e.Entity, e.Field)
}

// Is makes errors.Is(err, ErrConflict) hold for any ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ErrDanglingReference is returned when a write references a record that does not exist.
var ErrDanglingReference = errors.New("referenced record does not exist")
