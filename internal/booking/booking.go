package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/roomstay/internal/logger"
)

type IDGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type StorageReader interface {
	GetListing(ctx context.Context, id string) (*Listing, error)
	ListListings(ctx context.Context) ([]*Listing, error)
	GetBooking(ctx context.Context, id string) (*Booking, error)
	GetBookingByOrderID(ctx context.Context, orderID string) (*Booking, error)
	ListBookingsByListing(ctx context.Context, listingID string, rng DateRange) ([]*Booking, error)
	ListBookingsByOwner(ctx context.Context, ownerID string) ([]*Booking, error)
	ListBookingsByStatus(ctx context.Context, status Status) ([]*Booking, error)
	GetOrder(ctx context.Context, orderID string) (*PaymentOrder, error)
	GetOrderByIdempotencyKey(ctx context.Context) (*PaymentOrder, error)
}

type StorageWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	// ReserveBooking inserts b (from == "") or moves it from status `from`, failing with
	// *AvailabilityConflictError when another blocking booking overlaps. Check and write are atomic.
	ReserveBooking(ctx context.Context, b *Booking, from Status, policy ConflictPolicy) error
	// UpdateBookingStatus is a compare-and-set on the stored status.
	UpdateBookingStatus(ctx context.Context, b *Booking, from Status) error
	SaveOrder(ctx context.Context, order *PaymentOrder) error
	SaveEvent(ctx context.Context, event *Event) error
}

type Storage interface {
	StorageReader
	StorageWriter
}

type Pricer interface {
	ComputeCost(nights int, guests GuestComposition, roomType RoomType, purpose Purpose, listing *Listing) int64
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

var ErrStatusChanged = errors.New("booking status changed concurrently")

var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

type Conf struct {
	L         *logger.Logger
	Storage   Storage
	IDGen     IDGenerator
	Pricer    Pricer
	Gateway   Gateway
	Publisher Publisher
	Tracer    trace.Tracer
	Now       func() time.Time
	HoldTTL   time.Duration
	Currency  string
}

type engine struct {
	l         *logger.Logger
	storage   Storage
	idGen     IDGenerator
	pricer    Pricer
	publisher Publisher
	tracer    trace.Tracer
	now       func() time.Time
	holdTTL   time.Duration
}

type Manager struct {
	*engine

	checker      *AvailabilityChecker
	payments     *PaymentOrchestrator
	cancellation *CancellationHandler
}

func New(conf Conf) *Manager {
	now := conf.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	e := &engine{
		l:         conf.L,
		storage:   conf.Storage,
		idGen:     conf.IDGen,
		pricer:    conf.Pricer,
		publisher: conf.Publisher,
		tracer:    conf.Tracer,
		now:       now,
		holdTTL:   conf.HoldTTL,
	}

	return &Manager{
		engine:       e,
		checker:      NewAvailabilityChecker(conf.Storage, conf.Tracer, conf.HoldTTL, now),
		payments:     newPaymentOrchestrator(e, conf.Gateway, conf.Currency),
		cancellation: NewCancellationHandler(now),
	}
}

func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) Checker() *AvailabilityChecker {
	return m.checker
}

func (m *Manager) Payments() *PaymentOrchestrator {
	return m.payments
}

func (m *Manager) Listings(ctx context.Context) ([]*Listing, error) {
	listings, err := m.storage.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	return listings, nil
}

func (m *Manager) Listing(ctx context.Context, id string) (*Listing, error) {
	listing, err := m.storage.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing %v: %w", id, err)
	}

	return listing, nil
}

// ActiveBookings lists the stays on listingID that still hold dates from today on.
func (m *Manager) ActiveBookings(ctx context.Context, listingID string) ([]*Booking, error) {
	now := m.now()
	rng := DateRange{Start: now.Truncate(day), End: farFuture}

	candidates, err := m.storage.ListBookingsByListing(ctx, listingID, rng)
	if err != nil {
		return nil, fmt.Errorf("list bookings of listing %v: %w", listingID, err)
	}

	return FindConflicts(candidates, listingID, rng, m.policy(now), ""), nil
}

func (m *Manager) Quote(ctx context.Context, stay StayRequest) (*PricedStay, error) {
	return m.quote(ctx, stay)
}

func (e *engine) quote(ctx context.Context, stay StayRequest) (*PricedStay, error) {
	if err := stay.validate(); err != nil {
		return nil, err
	}

	if stay.StartDate.Before(e.now().Truncate(day)) {
		ve := newValidationError()
		ve.addError("startDate", "startDate must not be in the past")

		return nil, ve
	}

	return e.price(ctx, stay)
}

func (e *engine) price(ctx context.Context, stay StayRequest) (*PricedStay, error) {
	listing, err := e.storage.GetListing(ctx, stay.ListingID)
	if err != nil {
		return nil, fmt.Errorf("get listing %v: %w", stay.ListingID, err)
	}

	if !listing.Offers(stay.RoomType) {
		ve := newValidationError()
		ve.addError("type", fmt.Sprintf("listing offers %v rooms only", listing.Type))

		return nil, ve
	}

	nights := stay.Nights()
	total := e.pricer.ComputeCost(nights, stay.Guests, stay.RoomType, stay.Purpose, listing)

	return &PricedStay{
		StayRequest: stay,
		Nights:      nights,
		TotalCost:   total,
	}, nil
}

// CheckAvailability moves a Draft to AvailabilityConfirmed. On overlap it returns the availability
// together with an *AvailabilityConflictError and leaves draft untouched.
func (m *Manager) CheckAvailability(ctx context.Context, draft *Booking) (*Availability, *PricedStay, error) {
	if draft.Status != StatusDraft {
		return nil, nil, &IllegalTransitionError{From: draft.Status, To: StatusAvailabilityConfirmed}
	}

	priced, err := m.quote(ctx, draft.Stay)
	if err != nil {
		return nil, nil, err
	}

	availability, err := m.checker.Check(ctx, draft.ListingID, draft.Stay.StartDate, draft.Stay.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("check availability: %w", err)
	}

	if !availability.Available {
		return availability, priced, &AvailabilityConflictError{
			ListingID: draft.ListingID,
			Range:     draft.Range(),
			Conflicts: availability.Conflicts,
		}
	}

	if err := draft.Transition(StatusAvailabilityConfirmed, m.now()); err != nil {
		return nil, nil, err
	}

	return availability, priced, nil
}

func (m *Manager) CreateOrder(ctx context.Context, draft *Booking, total int64) (*PaymentOrder, error) {
	priced := PricedStay{
		StayRequest: draft.Stay,
		Nights:      draft.Stay.Nights(),
		TotalCost:   total,
	}

	return m.payments.CreateOrder(ctx, draft, priced)
}

func (m *Manager) VerifyAndCommit(ctx context.Context, ownerID string, cb PaymentReference, total int64) (*Booking, error) {
	if ownerID == "" {
		return nil, ErrOwnerMissing
	}

	pending, err := m.storage.GetBookingByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get booking of order %v: %w", cb.OrderID, err)
	}

	if pending.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	if total != pending.TotalCost {
		return nil, &AmountMismatchError{Expected: pending.TotalCost, Got: total}
	}

	return m.payments.VerifyAndCommit(ctx, cb, pending)
}

func (m *Manager) Cancel(ctx context.Context, bookingID, ownerID string) (_ *Booking, err error) {
	ctx, span := m.tracer.Start(ctx, "booking.cancel",
		trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer func() { endSpan(span, err) }()

	b, err := m.GetBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	cancelled, err := m.cancellation.Cancel(b)
	if err != nil {
		return nil, err
	}

	event, err := m.buildEvent(ctx, EventBookingCancelled, cancelled)
	if err != nil {
		return nil, err
	}

	err = m.withTransaction(ctx, func(ctx context.Context) error {
		if err := m.storage.UpdateBookingStatus(ctx, cancelled, StatusBooked); err != nil {
			return fmt.Errorf("save cancelled booking: %w", err)
		}

		if err := m.storage.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Booking %v has been cancelled", cancelled.ID)
	m.publish(ctx, event)

	return cancelled, nil
}

func (m *Manager) GetBooking(ctx context.Context, bookingID, ownerID string) (*Booking, error) {
	if ownerID == "" {
		return nil, ErrOwnerMissing
	}

	b, err := m.storage.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %v: %w", bookingID, err)
	}

	if b.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	return b, nil
}

func (m *Manager) ListBookings(ctx context.Context, ownerID string) ([]*Booking, error) {
	if ownerID == "" {
		return nil, ErrOwnerMissing
	}

	bookings, err := m.storage.ListBookingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of %v: %w", ownerID, err)
	}

	return bookings, nil
}

// ExpireHolds moves every abandoned AwaitingPayment hold to Expired. Holds committed or expired
// concurrently are skipped.
func (m *Manager) ExpireHolds(ctx context.Context) ([]*Booking, error) {
	holds, err := m.storage.ListBookingsByStatus(ctx, StatusAwaitingPayment)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}

	now := m.now()

	var expired []*Booking

	for _, hold := range holds {
		if !hold.IsHoldExpired(now, m.holdTTL) {
			continue
		}

		b := hold.Clone()
		if err := b.Transition(StatusExpired, now); err != nil {
			return expired, err
		}

		event, err := m.buildEvent(ctx, EventBookingExpired, b)
		if err != nil {
			return expired, err
		}

		err = m.withTransaction(ctx, func(ctx context.Context) error {
			if err := m.storage.UpdateBookingStatus(ctx, b, StatusAwaitingPayment); err != nil {
				return fmt.Errorf("save expired hold: %w", err)
			}

			return m.storage.SaveEvent(ctx, event)
		})
		if errors.Is(err, ErrStatusChanged) {
			continue
		}

		if err != nil {
			return expired, fmt.Errorf("expire hold %v: %w", b.ID, err)
		}

		m.publish(ctx, event)

		expired = append(expired, b)
	}

	return expired, nil
}

func (e *engine) buildEvent(ctx context.Context, kind EventKind, b *Booking) (*Event, error) {
	id, err := e.idGen.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	return &Event{
		ID:        id,
		Kind:      kind,
		BookingID: b.ID,
		ListingID: b.ListingID,
		OwnerID:   b.OwnerID,
		Status:    b.Status,
		CreatedAt: e.now(),
	}, nil
}

func (e *engine) publish(ctx context.Context, event *Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.l.LogErrorf("Could not publish %v for booking %v: %v", event.Kind, event.BookingID, err.Error())
	}
}

func (e *engine) withTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, err = e.storage.BeginTransaction(ctx, "READ COMMITTED")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := e.storage.RollbackTransaction(ctx); rbErr != nil {
				e.l.LogErrorf("Could not rollback booking transaction after panic %v", p)
			}

			e.l.LogInfo("Transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := e.storage.RollbackTransaction(ctx); rbErr != nil {
				e.l.LogErrorf("Could not rollback booking transaction after error %v", rbErr.Error())
			}

			e.l.LogDebugf("Transaction has been roll backed after error")

			return
		}

		if err = e.storage.CommitTransaction(ctx); err != nil {
			e.l.LogErrorf("Could not commit booking transaction, err %v", err.Error())

			return
		}

		e.l.LogDebugf("Transaction has been committed")
	}()

	return fn(ctx)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
