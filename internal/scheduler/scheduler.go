package scheduler

import (
	"context"
	"time"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

type holdExpirer interface {
	ExpireHolds(ctx context.Context) ([]*booking.Booking, error)
}

type Scheduler struct {
	expirer  holdExpirer
	interval time.Duration
	l        *logger.Logger
}

func New(expirer holdExpirer, interval time.Duration, l *logger.Logger) *Scheduler {
	return &Scheduler{
		expirer:  expirer,
		interval: interval,
		l:        l,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.l.LogInfo("Expiry scheduler started, interval %v", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.l.LogInfo("Expiry scheduler stopped")

			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	expired, err := s.expirer.ExpireHolds(ctx)

	for _, b := range expired {
		s.l.With(map[string]any{
			"booking_id": b.ID,
			"listing_id": b.ListingID,
			"owner_id":   b.OwnerID,
		}).LogInfo("Payment hold expired")
	}

	if err != nil {
		s.l.LogErrorf("Failed to expire payment holds: %v", err.Error())
	}
}
