package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending  ReservationStatus = "PENDING"
	StatusApproved ReservationStatus = "APPROVED"
	StatusIssued   ReservationStatus = "ISSUED"
	StatusRejected ReservationStatus = "REJECTED"
	StatusReturned ReservationStatus = "RETURNED"
)

// ActiveStatuses are the states that hold capacity of an item.
var ActiveStatuses = []ReservationStatus{StatusApproved, StatusIssued}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusIssued, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

// Active reports whether s counts against an item's capacity.
func (s ReservationStatus) Active() bool {
	return s == StatusApproved || s == StatusIssued
}

// Reservation is a request to borrow Quantity units of an item for the
// inclusive day range [StartDate, EndDate].
//
// Fields:
//  ID          – reservations.id
//  RequesterID – user who asked for the items; read-only reference.
//  ItemID      – catalog item being reserved.
//  StartDate   – first day of the loan (UTC midnight).
//  EndDate     – last day of the loan (UTC midnight), never before StartDate.
//  Quantity    – number of units, at least 1.
//  Status      – lifecycle state, see ReservationStatus.
//  Decision    – Undecided until a decider acts on the reservation.
//  CreatedAt   – set once on creation.
type Reservation struct {
	ID          uint64            `json:"id"`
	RequesterID uint64            `json:"requester_id"`
	ItemID      uint64            `json:"item_id"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Quantity    int               `json:"quantity"`
	Status      ReservationStatus `json:"status"`
	Decision    Decision          `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Covers reports whether the reservation's range overlaps [start, end].
func (r *Reservation) Covers(start, end time.Time) bool {
	return RangesOverlap(r.StartDate, r.EndDate, start, end)
}

// ReservationFilter selects reservations for listing. Zero-valued fields
// are ignored, so the zero filter lists everything.
type ReservationFilter struct {
	RequesterID uint64
	ItemID      uint64
	Status      ReservationStatus
}
