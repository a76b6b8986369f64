package booking

import "time"

type Status string

const (
	StatusDraft                 Status = "Draft"
	StatusAvailabilityConfirmed Status = "AvailabilityConfirmed"
	StatusAwaitingPayment       Status = "AwaitingPayment"
	StatusBooked                Status = "Booked"
	StatusCancelled             Status = "Cancelled"
	StatusExpired               Status = "Expired"
	// StatusCompleted is never stored, see EffectiveStatus.
	StatusCompleted Status = "Completed"
)

var validTransitions = map[Status][]Status{
	StatusDraft:                 {StatusAvailabilityConfirmed},
	StatusAvailabilityConfirmed: {StatusAwaitingPayment},
	StatusAwaitingPayment:       {StatusBooked, StatusExpired},
	StatusBooked:                {StatusCancelled},
	StatusCancelled:             {},
	StatusExpired:               {},
	StatusCompleted:             {},
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}

	return false
}

func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s Status) Blocking() bool {
	return s == StatusAwaitingPayment || s == StatusBooked
}

func NewDraft(ownerID string, stay StayRequest, now time.Time) *Booking {
	return &Booking{
		ListingID: stay.ListingID,
		OwnerID:   ownerID,
		Stay:      stay,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves b to target or fails with IllegalTransitionError. It is the only place Status is assigned.
func (b *Booking) Transition(target Status, now time.Time) error {
	if !b.Status.CanTransitionTo(target) {
		return &IllegalTransitionError{From: b.Status, To: target}
	}

	b.Status = target
	b.UpdatedAt = now

	return nil
}

func (b *Booking) EffectiveStatus(now time.Time) Status {
	if b.Status == StatusBooked && !now.Before(b.Stay.EndDate) {
		return StatusCompleted
	}

	return b.Status
}

type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseOngoing   Phase = "ongoing"
	PhaseCompleted Phase = "completed"
)

func (b *Booking) Phase(now time.Time) Phase {
	switch {
	case now.Before(b.Stay.StartDate):
		return PhaseUpcoming
	case now.Before(b.Stay.EndDate):
		return PhaseOngoing
	default:
		return PhaseCompleted
	}
}

func (b *Booking) IsHoldExpired(now time.Time, ttl time.Duration) bool {
	if b.Status != StatusAwaitingPayment || ttl <= 0 {
		return false
	}

	return !now.Before(b.CreatedAt.Add(ttl))
}
