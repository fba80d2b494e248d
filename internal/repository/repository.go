package repository

import (
	"context"
	"time"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// ItemRepository persists catalog items and their quantity counters.
type ItemRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.Item, error)
	// GetByIDForUpdate reads the item and, inside a transaction, locks its
	// row until commit.
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Item, error)
	List(ctx context.Context, f model.ItemFilter) ([]model.Item, error)
	Create(ctx context.Context, it *model.Item) error
	Update(ctx context.Context, it *model.Item) error
	Delete(ctx context.Context, id uint64) (bool, error)
	// AdjustAvailable adds delta to the available quantity in one atomic
	// step, clamping the result to [0, total]. A missing item is a no-op.
	AdjustAvailable(ctx context.Context, id uint64, delta int) error
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	Create(ctx context.Context, r *model.Reservation) error
	// Update writes the mutable part of a reservation: status and decision.
	Update(ctx context.Context, r *model.Reservation) error
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
	// ListActiveOverlapping returns the reservations of itemID whose status
	// is one of statuses and whose inclusive range overlaps [start, end].
	ListActiveOverlapping(ctx context.Context, itemID uint64, statuses []model.ReservationStatus, start, end time.Time) ([]model.Reservation, error)
	CountActiveByItem(ctx context.Context, itemID uint64) (int, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

// Store bundles the repositories over one connection (or one open
// transaction).
type Store interface {
	Items() ItemRepository
	Reservations() ReservationRepository
	Users() UserRepository
	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a Store that is already transactional runs fn in
	// the same transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
