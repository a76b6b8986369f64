package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DateRange is half-open: [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

type ConflictPolicy struct {
	Now     time.Time
	HoldTTL time.Duration
}

func (p ConflictPolicy) blocks(b *Booking) bool {
	return b.Status.Blocking() && !b.IsHoldExpired(p.Now, p.HoldTTL)
}

// FindConflicts filters candidates down to blocking bookings on listingID overlapping rng.
// excludeID skips the booking being committed. Stores call it inside their atomic section.
func FindConflicts(candidates []*Booking, listingID string, rng DateRange, policy ConflictPolicy, excludeID string) []*Booking {
	var conflicts []*Booking

	for _, c := range candidates {
		if c.ListingID != listingID || (excludeID != "" && c.ID == excludeID) {
			continue
		}

		if policy.blocks(c) && c.Range().Overlaps(rng) {
			conflicts = append(conflicts, c)
		}
	}

	return conflicts
}

type Availability struct {
	Available bool       `json:"available"`
	Conflicts []*Booking `json:"conflictingBookings"`
}

type AvailabilityChecker struct {
	storage StorageReader
	tracer  trace.Tracer
	holdTTL time.Duration
	now     func() time.Time
}

func NewAvailabilityChecker(storage StorageReader, tracer trace.Tracer, holdTTL time.Duration, now func() time.Time) *AvailabilityChecker {
	return &AvailabilityChecker{
		storage: storage,
		tracer:  tracer,
		holdTTL: holdTTL,
		now:     now,
	}
}

// Check is advisory. The storage repeats the same test atomically when a booking is reserved.
func (c *AvailabilityChecker) Check(ctx context.Context, listingID string, start, end time.Time) (_ *Availability, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.check_availability",
		trace.WithAttributes(attribute.String("listing.id", listingID)))
	defer func() { endSpan(span, err) }()

	rng := DateRange{Start: start, End: end}

	candidates, err := c.storage.ListBookingsByListing(ctx, listingID, rng)
	if err != nil {
		return nil, fmt.Errorf("list bookings of listing %v: %w", listingID, err)
	}

	conflicts := FindConflicts(candidates, listingID, rng, c.policy(), "")

	return &Availability{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

func (c *AvailabilityChecker) policy() ConflictPolicy {
	return ConflictPolicy{Now: c.now(), HoldTTL: c.holdTTL}
}
