// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// Event types published on the reservations queue.
const (
	EventCreated  = "reservation.created"
	EventApproved = "reservation.approved"
	EventRejected = "reservation.rejected"
	EventIssued   = "reservation.issued"
	EventReturned = "reservation.returned"
)

// ReservationEvent is published after a reservation is created or changes
// state. It carries enough for downstream consumers to log or notify
// without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	RequesterID   uint64 `json:"requester_id"`
	ItemID        uint64 `json:"item_id"`
	Quantity      int    `json:"quantity"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent snapshots r as an event of the given type.
func NewReservationEvent(typ string, r *model.Reservation, at time.Time) ReservationEvent {
	_, note, _ := model.DecisionOf(r.Decision)
	return ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		RequesterID:   r.RequesterID,
		ItemID:        r.ItemID,
		Quantity:      r.Quantity,
		StartDate:     r.StartDate.Format(model.DateLayout),
		EndDate:       r.EndDate.Format(model.DateLayout),
		Status:        string(r.Status),
		Note:          note,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
