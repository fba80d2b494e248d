package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/repository"
)

// Ledger keeps each item's available quantity inside [0, total]. It is a
// mechanical counter: whether a hand-out is legitimate is decided by the
// reservation engine before it gets here.
type Ledger struct {
	store repository.Store
}

// NewLedger returns a Ledger writing through store.
func NewLedger(store repository.Store) *Ledger {
	return &Ledger{store: store}
}

// On returns a Ledger bound to s, typically an open transaction.
func (l *Ledger) On(s repository.Store) *Ledger {
	return &Ledger{store: s}
}

// HandOut lowers the available quantity by amount, floored at zero.
// A missing item is a no-op.
func (l *Ledger) HandOut(ctx context.Context, itemID uint64, amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: hand-out amount %d", ErrInvalidInput, amount)
	}
	return l.store.Items().AdjustAvailable(ctx, itemID, -amount)
}

// BringBack raises the available quantity by amount, capped at the
// item's total. A missing item is a no-op.
func (l *Ledger) BringBack(ctx context.Context, itemID uint64, amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: bring-back amount %d", ErrInvalidInput, amount)
	}
	return l.store.Items().AdjustAvailable(ctx, itemID, amount)
}

// Upsert clamps it.AvailableQuantity to [0, total] and persists it,
// inserting when it.ID is zero.
func (l *Ledger) Upsert(ctx context.Context, it *model.Item) error {
	if it.TotalQuantity < 0 {
		return fmt.Errorf("%w: total quantity must not be negative", ErrInvalidInput)
	}
	it.ClampAvailable()
	if it.ID == 0 {
		return l.store.Items().Create(ctx, it)
	}
	return fromRepo(l.store.Items().Update(ctx, it))
}
