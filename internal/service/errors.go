package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/equipment-lending/internal/repository"
)

// Business outcomes surfaced to callers. Check them with errors.Is; the
// wrapped message carries the detail.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	// ErrCapacityConflict means the request would exceed the item's total
	// quantity on at least one day.
	ErrCapacityConflict = fmt.Errorf("%w: capacity exceeded", ErrConflict)
	// ErrInvalidTransition means the reservation's current state does not
	// permit the operation.
	ErrInvalidTransition = fmt.Errorf("%w: not possible in current state", ErrConflict)
)

// fromRepo translates storage sentinels into service ones.
func fromRepo(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
