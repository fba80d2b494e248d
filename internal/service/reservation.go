package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/lock"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/queue"
	"github.com/iliyamo/equipment-lending/internal/repository"
)

// MaxNoteLength bounds a decision note, in characters.
const MaxNoteLength = 1024

// EventPublisher receives lifecycle events after the change that caused
// them has been committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// ReservationService owns the reservation state machine and the capacity
// check. Every transition runs under the item's lock and inside one
// storage transaction, so the status change and its ledger effect commit
// together or not at all.
type ReservationService struct {
	store  repository.Store
	ledger *Ledger
	locker lock.Locker
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// NewReservationService wires the engine. events and log may be nil.
func NewReservationService(store repository.Store, ledger *Ledger, locker lock.Locker, events EventPublisher, log *zap.Logger) *ReservationService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{
		store:  store,
		ledger: ledger,
		locker: locker,
		events: events,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for creation and decision
// stamps.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// CreateInput is a reservation request from an authenticated caller.
type CreateInput struct {
	RequesterID uint64
	ItemID      uint64
	StartDate   time.Time
	EndDate     time.Time
	Quantity    int
}

func itemLockKey(itemID uint64) string { return fmt.Sprintf("item:%d", itemID) }

// IsConflicting reports whether qty more units of itemID over [start, end]
// would push some day past the item's total quantity, counting APPROVED
// and ISSUED reservations other than excludeID (zero excludes nothing).
// A missing item is reported as a conflict.
func (s *ReservationService) IsConflicting(ctx context.Context, itemID uint64, start, end time.Time, qty int, excludeID uint64) (bool, error) {
	return isConflicting(ctx, s.store, itemID, start, end, qty, excludeID)
}

func isConflicting(ctx context.Context, st repository.Store, itemID uint64, start, end time.Time, qty int, excludeID uint64) (bool, error) {
	item, err := st.Items().GetByID(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	overlapping, err := st.Reservations().ListActiveOverlapping(ctx, itemID, model.ActiveStatuses, start, end)
	if err != nil {
		return false, err
	}
	sum := 0
	for _, r := range overlapping {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		sum += r.Quantity
	}
	return sum+qty > item.TotalQuantity, nil
}

// Create validates in and stores a PENDING reservation. Racing creations
// are not serialized; capacity is enforced again at approval.
func (s *ReservationService) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	start, end := model.DateOnly(in.StartDate), model.DateOnly(in.EndDate)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if _, err := s.store.Items().GetByID(ctx, in.ItemID); err != nil {
		return nil, fmt.Errorf("item %d: %w", in.ItemID, fromRepo(err))
	}
	conflict, err := s.IsConflicting(ctx, in.ItemID, start, end, in.Quantity, 0)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return nil, fmt.Errorf("%w: item %d cannot supply %d for %s..%s",
			ErrCapacityConflict, in.ItemID, in.Quantity,
			start.Format(model.DateLayout), end.Format(model.DateLayout))
	}

	r := &model.Reservation{
		RequesterID: in.RequesterID,
		ItemID:      in.ItemID,
		StartDate:   start,
		EndDate:     end,
		Quantity:    in.Quantity,
		Status:      model.StatusPending,
		Decision:    model.Undecided{},
		CreatedAt:   s.now(),
	}
	if err := s.store.Reservations().Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("item_id", r.ItemID),
		zap.Int("quantity", r.Quantity))
	s.publish(ctx, queue.EventCreated, r)
	return r, nil
}

// Approve moves a PENDING reservation to APPROVED if it still fits.
func (s *ReservationService) Approve(ctx context.Context, id uint64, note string) (*model.Reservation, error) {
	return s.transition(ctx, id, transApprove, note)
}

// Reject moves any non-terminal reservation to REJECTED. Rejecting an
// ISSUED reservation gives its units back to the ledger.
func (s *ReservationService) Reject(ctx context.Context, id uint64, note string) (*model.Reservation, error) {
	return s.transition(ctx, id, transReject, note)
}

// Issue hands an APPROVED reservation's units out.
func (s *ReservationService) Issue(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, transIssue, "")
}

// MarkReturned takes an ISSUED reservation's units back.
func (s *ReservationService) MarkReturned(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, transReturn, "")
}

type transitionKind int

const (
	transApprove transitionKind = iota
	transReject
	transIssue
	transReturn
)

func (k transitionKind) String() string {
	switch k {
	case transApprove:
		return "approve"
	case transReject:
		return "reject"
	case transIssue:
		return "issue"
	default:
		return "return"
	}
}

func (k transitionKind) event() string {
	switch k {
	case transApprove:
		return queue.EventApproved
	case transReject:
		return queue.EventRejected
	case transIssue:
		return queue.EventIssued
	default:
		return queue.EventReturned
	}
}

func (s *ReservationService) transition(ctx context.Context, id uint64, kind transitionKind, note string) (*model.Reservation, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, fmt.Errorf("%w: note longer than %d characters", ErrInvalidInput, MaxNoteLength)
	}

	out, err := s.commit(ctx, id, kind, note)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.log.Info("reservation transition refused",
				zap.Uint64("reservation_id", id),
				zap.String("op", kind.String()),
				zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("reservation transition",
		zap.Uint64("reservation_id", out.ID),
		zap.String("op", kind.String()),
		zap.String("status", string(out.Status)))
	s.publish(ctx, kind.event(), out)
	return out, nil
}

// commit runs one transition under the item lock and a transaction. The
// lock is released before commit returns, so publishing never holds it.
func (s *ReservationService) commit(ctx context.Context, id uint64, kind transitionKind, note string) (*model.Reservation, error) {
	// The item id never changes, so it is safe to read it before locking.
	current, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", id, fromRepo(err))
	}
	unlock, err := s.locker.Lock(ctx, itemLockKey(current.ItemID))
	if err != nil {
		return nil, fmt.Errorf("lock item %d: %w", current.ItemID, err)
	}
	defer unlock()

	var out *model.Reservation
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Items().GetByIDForUpdate(ctx, current.ItemID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		r, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, fromRepo(err))
		}
		if err := s.apply(ctx, tx, r, kind, note); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// apply checks the precondition for kind, then writes the new state and
// its ledger effect through tx. On refusal r and tx are left untouched.
func (s *ReservationService) apply(ctx context.Context, tx repository.Store, r *model.Reservation, kind transitionKind, note string) error {
	refuse := func() error {
		return fmt.Errorf("%w: cannot %s reservation %d in status %s", ErrInvalidTransition, kind, r.ID, r.Status)
	}
	now := s.now()
	ledger := s.ledger.On(tx)

	var (
		next     model.ReservationStatus
		decision model.Decision
		effect   func() error
	)
	switch kind {
	case transApprove:
		if r.Status != model.StatusPending {
			return refuse()
		}
		conflict, err := isConflicting(ctx, tx, r.ItemID, r.StartDate, r.EndDate, r.Quantity, r.ID)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return fmt.Errorf("%w: approving reservation %d would exceed item %d capacity", ErrCapacityConflict, r.ID, r.ItemID)
		}
		next, decision = model.StatusApproved, model.Decided{At: now, Note: note}
	case transReject:
		if r.Status.Terminal() {
			return refuse()
		}
		if r.Status == model.StatusIssued {
			effect = func() error { return ledger.BringBack(ctx, r.ItemID, r.Quantity) }
		}
		next, decision = model.StatusRejected, model.Decided{At: now, Note: note}
	case transIssue:
		if r.Status != model.StatusApproved {
			return refuse()
		}
		effect = func() error { return ledger.HandOut(ctx, r.ItemID, r.Quantity) }
		next, decision = model.StatusIssued, model.Restamp(r.Decision, now)
	case transReturn:
		if r.Status != model.StatusIssued {
			return refuse()
		}
		effect = func() error { return ledger.BringBack(ctx, r.ItemID, r.Quantity) }
		next, decision = model.StatusReturned, model.Restamp(r.Decision, now)
	}

	updated := *r
	updated.Status, updated.Decision = next, decision
	if err := tx.Reservations().Update(ctx, &updated); err != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, fromRepo(err))
	}
	if effect != nil {
		if err := effect(); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	*r = updated
	return nil
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", id, fromRepo(err))
	}
	return r, nil
}

// List returns reservations matching f, newest first.
func (s *ReservationService) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.store.Reservations().List(ctx, f)
}

func (s *ReservationService) publish(ctx context.Context, typ string, r *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, queue.NewReservationEvent(typ, r, s.now())); err != nil {
		s.log.Warn("publish reservation event",
			zap.String("type", typ),
			zap.Uint64("reservation_id", r.ID),
			zap.Error(err))
	}
}
