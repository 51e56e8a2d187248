package diary

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalid is returned for out-of-range query or patch parameters.
	ErrInvalid = errors.New("invalid argument")
)

// NotFound wraps ErrNotFound with the missing id.
func NotFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}
