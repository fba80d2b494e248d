package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/lock"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/repository"
)

// CatalogService manages item metadata. Quantities are written only
// through the Ledger.
type CatalogService struct {
	store  repository.Store
	ledger *Ledger
	locker lock.Locker
	log    *zap.Logger
}

// NewCatalogService wires the catalog. log may be nil.
func NewCatalogService(store repository.Store, ledger *Ledger, locker lock.Locker, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{store: store, ledger: ledger, locker: locker, log: log}
}

// ItemInput carries catalog fields. Nil fields are left unchanged on
// update; on create, Name and TotalQuantity are required and
// AvailableQuantity defaults to TotalQuantity.
type ItemInput struct {
	Name              *string
	Category          *string
	ConditionNote     *string
	TotalQuantity     *int
	AvailableQuantity *int
}

func (in ItemInput) applyTo(it *model.Item) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 200 {
			return fmt.Errorf("%w: name must be 1-200 characters", ErrInvalidInput)
		}
		it.Name = name
	}
	if in.Category != nil {
		it.Category = strings.TrimSpace(*in.Category)
	}
	if in.ConditionNote != nil {
		it.ConditionNote = strings.TrimSpace(*in.ConditionNote)
	}
	if in.TotalQuantity != nil {
		if *in.TotalQuantity < 0 {
			return fmt.Errorf("%w: total quantity must not be negative", ErrInvalidInput)
		}
		it.TotalQuantity = *in.TotalQuantity
	}
	if in.AvailableQuantity != nil {
		if *in.AvailableQuantity < 0 {
			return fmt.Errorf("%w: available quantity must not be negative", ErrInvalidInput)
		}
		it.AvailableQuantity = *in.AvailableQuantity
	}
	return nil
}

// List returns the catalog filtered by f.
func (s *CatalogService) List(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	return s.store.Items().List(ctx, f)
}

// Get returns one item.
func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Item, error) {
	it, err := s.store.Items().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, fromRepo(err))
	}
	return it, nil
}

// Create adds an item to the catalog.
func (s *CatalogService) Create(ctx context.Context, in ItemInput) (*model.Item, error) {
	if in.Name == nil || in.TotalQuantity == nil {
		return nil, fmt.Errorf("%w: name and total_quantity are required", ErrInvalidInput)
	}
	it := &model.Item{}
	if err := in.applyTo(it); err != nil {
		return nil, err
	}
	if in.AvailableQuantity == nil {
		it.AvailableQuantity = it.TotalQuantity
	}
	if err := s.ledger.Upsert(ctx, it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.log.Info("item created", zap.Uint64("item_id", it.ID), zap.String("name", it.Name))
	return it, nil
}

// Update applies in to an existing item under the item's lock, so it
// cannot interleave with an issue or return.
func (s *CatalogService) Update(ctx context.Context, id uint64, in ItemInput) (*model.Item, error) {
	unlock, err := s.locker.Lock(ctx, itemLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock item %d: %w", id, err)
	}
	defer unlock()

	var out *model.Item
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		it, err := tx.Items().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("item %d: %w", id, fromRepo(err))
		}
		prevTotal := it.TotalQuantity
		if err := in.applyTo(it); err != nil {
			return err
		}
		if it.TotalQuantity < prevTotal {
			peak, err := peakDemand(ctx, tx, id)
			if err != nil {
				return err
			}
			if it.TotalQuantity < peak {
				return fmt.Errorf("%w: item %d has %d units committed on its busiest day", ErrConflict, id, peak)
			}
		}
		if err := s.ledger.On(tx).Upsert(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("item updated", zap.Uint64("item_id", id))
	return out, nil
}

// peakDemand is the largest quantity APPROVED or ISSUED for the item on
// any single day. The busiest day always starts some reservation, so only
// start dates are probed.
func peakDemand(ctx context.Context, tx repository.Store, itemID uint64) (int, error) {
	list, err := tx.Reservations().List(ctx, model.ReservationFilter{ItemID: itemID})
	if err != nil {
		return 0, fmt.Errorf("list reservations: %w", err)
	}
	active := list[:0]
	for _, r := range list {
		if r.Status.Active() {
			active = append(active, r)
		}
	}
	peak := 0
	for _, day := range active {
		sum := 0
		for _, r := range active {
			if !r.StartDate.After(day.StartDate) && !r.EndDate.Before(day.StartDate) {
				sum += r.Quantity
			}
		}
		peak = max(peak, sum)
	}
	return peak, nil
}

// Delete removes an item. It is refused while any APPROVED or ISSUED
// reservation references the item.
func (s *CatalogService) Delete(ctx context.Context, id uint64) error {
	unlock, err := s.locker.Lock(ctx, itemLockKey(id))
	if err != nil {
		return fmt.Errorf("lock item %d: %w", id, err)
	}
	defer unlock()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Items().GetByIDForUpdate(ctx, id); err != nil {
			return fmt.Errorf("item %d: %w", id, fromRepo(err))
		}
		n, err := tx.Reservations().CountActiveByItem(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: item %d has %d active reservations", ErrConflict, id, n)
		}
		ok, err := tx.Items().Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("item deleted", zap.Uint64("item_id", id))
	return nil
}
