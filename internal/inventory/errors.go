package inventory

import (
	"errors"
	"fmt"

	"netdoc/internal/store"
)

var (
	// ErrNotFound marks a stale device, port or rack reference.
	ErrNotFound = store.ErrNotFound

	// ErrCapacity is the parent of every placement rejection.
	ErrCapacity       = errors.New("capacity violation")
	ErrShelfFull      = fmt.Errorf("%w: shelf already holds %d devices", ErrCapacity, ShelfSlots)
	ErrShelfZeroUOnly = fmt.Errorf("%w: only 0U devices can be mounted on a shelf", ErrCapacity)
	ErrOccupied       = fmt.Errorf("%w: rack units already occupied", ErrCapacity)
	ErrOutOfRange     = fmt.Errorf("%w: span does not fit in rack", ErrCapacity)

	// ErrPartial means the first step of a two-step change was written
	// and the second was not.
	ErrPartial = errors.New("partial multi-step failure")

	ErrInvalid = errors.New("invalid request")
)

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}
