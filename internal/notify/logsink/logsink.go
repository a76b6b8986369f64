package logsink

import (
	"context"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

type Publisher struct {
	l *logger.Logger
}

func New(l *logger.Logger) *Publisher {
	return &Publisher{l: l}
}

func (p *Publisher) Publish(_ context.Context, event *booking.Event) error {
	p.l.With(map[string]any{
		"event_id":   event.ID,
		"booking_id": event.BookingID,
		"listing_id": event.ListingID,
		"status":     string(event.Status),
	}).LogInfo("Booking event %v", event.Kind)

	return nil
}
