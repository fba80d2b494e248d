package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/equipment-lending/internal/lock"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func newCatalog() (*CatalogService, *ReservationService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	ledger := NewLedger(store)
	locker := lock.NewLocalLocker()
	return NewCatalogService(store, ledger, locker, nil),
		NewReservationService(store, ledger, locker, nil, nil),
		store
}

func TestCatalog_CreateDefaultsAvailable(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newCatalog()

	it, err := cat.Create(ctx, ItemInput{Name: ptr(" Chemistry Lab Set "), Category: ptr("Lab"), TotalQuantity: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, "Chemistry Lab Set", it.Name)
	assert.Equal(t, 10, it.AvailableQuantity)

	_, err = cat.Create(ctx, ItemInput{Name: ptr("No total")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cat.Create(ctx, ItemInput{Name: ptr("  "), TotalQuantity: ptr(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cat.Create(ctx, ItemInput{Name: ptr("Neg"), TotalQuantity: ptr(1), AvailableQuantity: ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalog_UpdateIsPartialAndClamped(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newCatalog()

	it, err := cat.Create(ctx, ItemInput{Name: ptr("Camera"), Category: ptr("Camera"), TotalQuantity: ptr(5)})
	require.NoError(t, err)

	got, err := cat.Update(ctx, it.ID, ItemInput{ConditionNote: ptr("lens cap missing"), TotalQuantity: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Camera", got.Name)
	assert.Equal(t, "lens cap missing", got.ConditionNote)
	assert.Equal(t, 2, got.TotalQuantity)
	assert.Equal(t, 2, got.AvailableQuantity)

	_, err = cat.Update(ctx, 999, ItemInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_ShrinkRefusedBelowCommittedDemand(t *testing.T) {
	ctx := context.Background()
	cat, res, _ := newCatalog()

	it, err := cat.Create(ctx, ItemInput{Name: ptr("Canon EOS 80D"), TotalQuantity: ptr(5)})
	require.NoError(t, err)
	d := func(day int) time.Time { return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC) }
	approve := func(start, end, qty int) *model.Reservation {
		r, err := res.Create(ctx, CreateInput{RequesterID: 1, ItemID: it.ID, StartDate: d(start), EndDate: d(end), Quantity: qty})
		require.NoError(t, err)
		r, err = res.Approve(ctx, r.ID, "")
		require.NoError(t, err)
		return r
	}
	// Jan 1-5 holds 2, Jan 4-8 holds 2, so Jan 4-5 carry 4.
	first := approve(1, 5, 2)
	approve(4, 8, 2)
	// pending requests hold nothing
	_, err = res.Create(ctx, CreateInput{RequesterID: 1, ItemID: it.ID, StartDate: d(1), EndDate: d(1), Quantity: 1})
	require.NoError(t, err)

	_, err = cat.Update(ctx, it.ID, ItemInput{TotalQuantity: ptr(3)})
	assert.ErrorIs(t, err, ErrConflict)
	got, err := cat.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalQuantity, "refused update leaves the item untouched")

	got, err = cat.Update(ctx, it.ID, ItemInput{TotalQuantity: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalQuantity)

	_, err = res.Issue(ctx, first.ID)
	require.NoError(t, err)
	_, err = cat.Update(ctx, it.ID, ItemInput{TotalQuantity: ptr(3)})
	assert.ErrorIs(t, err, ErrConflict, "issued units still count")

	_, err = res.Reject(ctx, first.ID, "")
	require.NoError(t, err)
	got, err = cat.Update(ctx, it.ID, ItemInput{TotalQuantity: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalQuantity)

	_, err = cat.Update(ctx, it.ID, ItemInput{TotalQuantity: ptr(1)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCatalog_DeleteRefusedWhileActive(t *testing.T) {
	ctx := context.Background()
	cat, res, store := newCatalog()

	it, err := cat.Create(ctx, ItemInput{Name: ptr("Guitar"), TotalQuantity: ptr(3)})
	require.NoError(t, err)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r, err := res.Create(ctx, CreateInput{RequesterID: 1, ItemID: it.ID, StartDate: day, EndDate: day, Quantity: 1})
	require.NoError(t, err)
	_, err = res.Approve(ctx, r.ID, "")
	require.NoError(t, err)

	assert.ErrorIs(t, cat.Delete(ctx, it.ID), ErrConflict)

	_, err = res.Reject(ctx, r.ID, "cancelled")
	require.NoError(t, err)
	require.NoError(t, cat.Delete(ctx, it.ID))

	_, err = cat.Get(ctx, it.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	left, _ := store.Reservations().List(ctx, model.ReservationFilter{ItemID: it.ID})
	assert.Empty(t, left)

	assert.ErrorIs(t, cat.Delete(ctx, it.ID), ErrNotFound)
}

func TestCatalog_ListFilters(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newCatalog()
	_, err := cat.Create(ctx, ItemInput{Name: ptr("Basketball Kit"), Category: ptr("Sports"), TotalQuantity: ptr(20)})
	require.NoError(t, err)
	_, err = cat.Create(ctx, ItemInput{Name: ptr("Empty Shelf"), Category: ptr("Misc"), TotalQuantity: ptr(0)})
	require.NoError(t, err)

	sports, err := cat.List(ctx, model.ItemFilter{Category: "sports"})
	require.NoError(t, err)
	assert.Len(t, sports, 1)

	avail, err := cat.List(ctx, model.ItemFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, avail, 1)
}
