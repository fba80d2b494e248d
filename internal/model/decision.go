package model

import "time"

// Decision records whether, when and with what note a reservation was
// last acted upon. It is either Undecided or Decided; there is no other
// implementation.
type Decision interface {
	isDecision()
}

// Undecided marks a reservation nobody has acted on yet.
type Undecided struct{}

// Decided carries the time of the latest transition out of PENDING or
// APPROVED and the optional note given with it.
type Decided struct {
	At   time.Time
	Note string
}

func (Undecided) isDecision() {}
func (Decided) isDecision()   {}

// DecisionOf unpacks d. ok is false for Undecided and for a nil Decision.
func DecisionOf(d Decision) (at time.Time, note string, ok bool) {
	if dd, isDecided := d.(Decided); isDecided {
		return dd.At, dd.Note, true
	}
	return time.Time{}, "", false
}

// Restamp returns a Decided at the given time that keeps the note of the
// previous decision, if any.
func Restamp(prev Decision, at time.Time) Decided {
	_, note, _ := DecisionOf(prev)
	return Decided{At: at, Note: note}
}
