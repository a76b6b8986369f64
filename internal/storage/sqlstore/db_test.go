package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

var (
	now    = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	policy = booking.ConflictPolicy{Now: now, HoldTTL: 15 * time.Minute}
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func setupDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{L: logger.Discard(), Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(ctx))

	trxCtx, err := db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, db.SaveListings(trxCtx, []*booking.Listing{
		{ID: "room-1", Title: "Room 1", Type: booking.RoomTypeBoth, SingleOccupancyRate: 1000, DoubleOccupancyRate: 1500},
	}))
	require.NoError(t, db.CommitTransaction(trxCtx))

	return db
}

func hold(id string, from, to int) *booking.Booking {
	return &booking.Booking{
		ID:        id,
		ListingID: "room-1",
		OwnerID:   "user-1",
		Stay: booking.StayRequest{
			ListingID: "room-1",
			StartDate: day(from),
			EndDate:   day(to),
			Guests:    booking.GuestComposition{Adults: 2, Children: 1},
			RoomType:  booking.RoomTypeAC,
			Purpose:   booking.PurposePersonal,
		},
		TotalCost: 4000,
		Status:    booking.StatusAwaitingPayment,
		OrderID:   "order_" + id,
		ReceiptID: "rcpt_" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func reserve(t *testing.T, db *DB, b *booking.Booking, from booking.Status) error {
	t.Helper()

	ctx, err := db.BeginTransaction(context.Background(), "READ COMMITTED")
	require.NoError(t, err)

	if err := db.ReserveBooking(ctx, b, from, policy); err != nil {
		require.NoError(t, db.RollbackTransaction(ctx))

		return err
	}

	return db.CommitTransaction(ctx)
}

func TestDB_ReserveAndRead(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	b := hold("bk-1", 10, 12)
	require.NoError(t, reserve(t, db, b, ""))

	stored, err := db.GetBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	byOrder, err := db.GetBookingByOrderID(ctx, "order_bk-1")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", byOrder.ID)

	_, err = db.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	listing, err := db.GetListing(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, booking.RoomTypeBoth, listing.Type)
}

func TestDB_ReserveRejectsOverlap(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, reserve(t, db, hold("bk-1", 10, 15), ""))

	err := reserve(t, db, hold("bk-2", 12, 14), "")
	conflict := booking.IsAvailabilityConflictError(err)
	require.NotNil(t, conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "bk-1", conflict.Conflicts[0].ID)

	require.NoError(t, reserve(t, db, hold("bk-3", 15, 17), ""))
	require.NoError(t, reserve(t, db, hold("bk-4", 8, 10), ""))
}

func TestDB_StaleHoldDoesNotBlock(t *testing.T) {
	db := setupDB(t)

	stale := hold("bk-1", 10, 12)
	stale.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, reserve(t, db, stale, ""))

	assert.NoError(t, reserve(t, db, hold("bk-2", 10, 12), ""))
}

func TestDB_CommitIsCompareAndSet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	b := hold("bk-1", 10, 12)
	require.NoError(t, reserve(t, db, b, ""))

	committed := b.Clone()
	committed.Status = booking.StatusBooked
	committed.Payment = &booking.PaymentReference{OrderID: b.OrderID, PaymentID: "pay_1", Signature: "sig"}
	require.NoError(t, reserve(t, db, committed, booking.StatusAwaitingPayment))

	stored, err := db.GetBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusBooked, stored.Status)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, *committed.Payment, *stored.Payment)

	err = reserve(t, db, committed, booking.StatusAwaitingPayment)
	assert.ErrorIs(t, err, booking.ErrStatusChanged)

	trxCtx, err := db.BeginTransaction(ctx, "")
	require.NoError(t, err)

	cancelled := stored.Clone()
	cancelled.Status = booking.StatusCancelled
	require.NoError(t, db.UpdateBookingStatus(trxCtx, cancelled, booking.StatusBooked))
	require.NoError(t, db.CommitTransaction(trxCtx))

	bookings, err := db.ListBookingsByStatus(ctx, booking.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, bookings, 1)

	require.NoError(t, reserve(t, db, hold("bk-2", 10, 12), ""))
}

func TestDB_RollbackDiscardsWrites(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	trxCtx, err := db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, db.ReserveBooking(trxCtx, hold("bk-1", 10, 12), "", policy))
	require.NoError(t, db.RollbackTransaction(trxCtx))

	_, err = db.GetBooking(ctx, "bk-1")
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)
}

func TestDB_OrdersAndIdempotencyKey(t *testing.T) {
	db := setupDB(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "key-1")

	_, err := db.GetOrderByIdempotencyKey(ctx)
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	trxCtx, err := db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, db.SaveOrder(trxCtx, &booking.PaymentOrder{
		OrderID:   "order_1",
		BookingID: "bk-1",
		Amount:    4000,
		Currency:  "INR",
		ReceiptID: "rcpt_1",
		CreatedAt: now,
	}))
	require.NoError(t, db.SaveEvent(trxCtx, &booking.Event{
		ID:        "ev-1",
		Kind:      booking.EventBookingHeld,
		BookingID: "bk-1",
		ListingID: "room-1",
		OwnerID:   "user-1",
		Status:    booking.StatusAwaitingPayment,
		CreatedAt: now,
	}))
	require.NoError(t, db.CommitTransaction(trxCtx))

	order, err := db.GetOrderByIdempotencyKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.OrderID)
	assert.Equal(t, int64(4000), order.Amount)

	order, err = db.GetOrder(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", order.BookingID)

	var events []eventRow
	require.NoError(t, db.gdb.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, booking.EventBookingHeld, events[0].toEvent().Kind)

	_, err = db.GetOrderByIdempotencyKey(context.Background())
	assert.ErrorIs(t, err, booking.ErrIdempotencyKey)
}

func TestDB_IdempotencyKeyCannotBeReused(t *testing.T) {
	db := setupDB(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "user-1/key-1")

	save := func(orderID string) error {
		trxCtx, err := db.BeginTransaction(ctx, "")
		require.NoError(t, err)

		if err := db.SaveOrder(trxCtx, &booking.PaymentOrder{
			OrderID:   orderID,
			BookingID: "bk-" + orderID,
			Amount:    4000,
			Currency:  "INR",
			CreatedAt: now,
		}); err != nil {
			require.NoError(t, db.RollbackTransaction(trxCtx))

			return err
		}

		return db.CommitTransaction(trxCtx)
	}

	require.NoError(t, save("order_a"))
	require.NoError(t, save("order_a"))
	assert.ErrorIs(t, save("order_b"), booking.ErrDuplicateIdempotencyKey)

	_, err := db.GetOrder(context.Background(), "order_b")
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	order, err := db.GetOrderByIdempotencyKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order_a", order.OrderID)
}

func TestDB_WritesNeedTransaction(t *testing.T) {
	db := setupDB(t)

	err := db.ReserveBooking(context.Background(), hold("bk-1", 10, 12), "", policy)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
