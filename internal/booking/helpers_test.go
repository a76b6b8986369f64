package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/gateway/local"
	"github.com/avstrong/roomstay/internal/idgen/simple"
	"github.com/avstrong/roomstay/internal/logger"
	"github.com/avstrong/roomstay/internal/pricing"
	"github.com/avstrong/roomstay/internal/storage/memory"
)

const (
	owner   = "user-1"
	holdTTL = 15 * time.Minute
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = t
}

func (c *clock) Add(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*booking.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *booking.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) kinds() []booking.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := make([]booking.EventKind, 0, len(p.events))
	for _, e := range p.events {
		res = append(res, e.Kind)
	}

	return res
}

type fixture struct {
	manager   *booking.Manager
	storage   *memory.DB
	gateway   *local.Gateway
	clock     *clock
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := &clock{t: date(2024, 1, 1).Add(9 * time.Hour)}
	l := logger.Discard()
	storage := memory.New(memory.Config{L: l})

	ctx, err := storage.BeginTransaction(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, storage.SaveListings(ctx, []*booking.Listing{
		{ID: "room-1", Title: "Kanchenjunga 1", Type: booking.RoomTypeBoth, SingleOccupancyRate: 1000, DoubleOccupancyRate: 1500},
		{ID: "room-2", Title: "Kanchenjunga 2", Type: booking.RoomTypeNonAC, SingleOccupancyRate: 800, DoubleOccupancyRate: 1200},
	}))
	require.NoError(t, storage.CommitTransaction(ctx))

	gw := local.New("test-secret", c.Now)
	pub := &recordingPublisher{}

	m := booking.New(booking.Conf{
		L:         l,
		Storage:   storage,
		IDGen:     simple.New("id-"),
		Pricer:    pricing.New(pricing.DefaultRates()),
		Gateway:   gw,
		Publisher: pub,
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Now:       c.Now,
		HoldTTL:   holdTTL,
		Currency:  "INR",
	})

	return &fixture{
		manager:   m,
		storage:   storage,
		gateway:   gw,
		clock:     c,
		publisher: pub,
	}
}

func stay(listingID string, from, to time.Time, adults int, rt booking.RoomType) booking.StayRequest {
	return booking.StayRequest{
		ListingID: listingID,
		StartDate: from,
		EndDate:   to,
		Guests:    booking.GuestComposition{Adults: adults},
		RoomType:  rt,
		Purpose:   booking.PurposePersonal,
	}
}

// book runs a stay all the way to Booked.
func (f *fixture) book(t *testing.T, s booking.StayRequest) *booking.Booking {
	t.Helper()

	ctx := context.Background()

	priced, err := f.manager.Quote(ctx, s)
	require.NoError(t, err)

	order, err := f.manager.StartPayment(ctx, owner, s, priced.TotalCost)
	require.NoError(t, err)

	cb, ok := f.gateway.Pay(order.OrderID)
	require.True(t, ok)

	b, err := f.manager.VerifyAndCommit(ctx, owner, cb, priced.TotalCost)
	require.NoError(t, err)

	return b
}
