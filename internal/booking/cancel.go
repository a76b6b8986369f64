package booking

import "time"

// CancellationHandler applies the cancellation policy: only a Booked stay that has not started yet
// can be cancelled. No refund is computed here.
type CancellationHandler struct {
	now func() time.Time
}

func NewCancellationHandler(now func() time.Time) *CancellationHandler {
	return &CancellationHandler{now: now}
}

func (h *CancellationHandler) Cancel(b *Booking) (*Booking, error) {
	if b.Status != StatusBooked {
		return nil, &IllegalCancellationError{BookingID: b.ID, Reason: "booking is " + string(b.Status)}
	}

	now := h.now()
	if !now.Before(b.Stay.StartDate) {
		return nil, &IllegalCancellationError{BookingID: b.ID, Reason: "stay has already started"}
	}

	cancelled := b.Clone()
	if err := cancelled.Transition(StatusCancelled, now); err != nil {
		return nil, err
	}

	return cancelled, nil
}
