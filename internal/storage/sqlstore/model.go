package sqlstore

import (
	"time"

	"github.com/avstrong/roomstay/internal/booking"
)

type listingRow struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Title               string `gorm:"not null"`
	Description         string `gorm:"type:text"`
	Type                string `gorm:"size:16;not null"`
	SingleOccupancyRate int64  `gorm:"not null"`
	DoubleOccupancyRate int64  `gorm:"not null"`
}

func (listingRow) TableName() string {
	return "listings"
}

type bookingRow struct {
	ID               string    `gorm:"primaryKey;size:64"`
	ListingID        string    `gorm:"size:64;not null;index:idx_bookings_listing_status"`
	OwnerID          string    `gorm:"size:128;not null;index"`
	StartDate        time.Time `gorm:"not null"`
	EndDate          time.Time `gorm:"not null"`
	Adults           int       `gorm:"not null"`
	Children         int       `gorm:"not null"`
	RoomType         string    `gorm:"size:16;not null"`
	Purpose          string    `gorm:"size:32;not null"`
	TotalCost        int64     `gorm:"not null"`
	Status           string    `gorm:"size:32;not null;index:idx_bookings_listing_status"`
	OrderID          string    `gorm:"size:64;uniqueIndex"`
	ReceiptID        string    `gorm:"size:64"`
	PaymentID        *string   `gorm:"size:64"`
	PaymentSignature *string   `gorm:"size:128"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (bookingRow) TableName() string {
	return "bookings"
}

type orderRow struct {
	OrderID        string  `gorm:"primaryKey;size:64"`
	BookingID      string  `gorm:"size:64;not null;index"`
	Amount         int64   `gorm:"not null"`
	Currency       string  `gorm:"size:8;not null"`
	ReceiptID      string  `gorm:"size:64"`
	IdempotencyKey *string `gorm:"size:128;uniqueIndex"`
	CreatedAt      time.Time
}

func (orderRow) TableName() string {
	return "payment_orders"
}

type eventRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Kind      string    `gorm:"size:32;not null"`
	BookingID string    `gorm:"size:64;not null;index"`
	ListingID string    `gorm:"size:64;not null"`
	OwnerID   string    `gorm:"size:128;not null"`
	Status    string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (eventRow) TableName() string {
	return "booking_events"
}

func models() []any {
	return []any{&listingRow{}, &bookingRow{}, &orderRow{}, &eventRow{}}
}

func toListingRow(l *booking.Listing) listingRow {
	return listingRow{
		ID:                  l.ID,
		Title:               l.Title,
		Description:         l.Description,
		Type:                string(l.Type),
		SingleOccupancyRate: l.SingleOccupancyRate,
		DoubleOccupancyRate: l.DoubleOccupancyRate,
	}
}

func (r *listingRow) toListing() *booking.Listing {
	return &booking.Listing{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Type:                booking.RoomType(r.Type),
		SingleOccupancyRate: r.SingleOccupancyRate,
		DoubleOccupancyRate: r.DoubleOccupancyRate,
	}
}

func toBookingRow(b *booking.Booking) bookingRow {
	row := bookingRow{
		ID:        b.ID,
		ListingID: b.ListingID,
		OwnerID:   b.OwnerID,
		StartDate: b.Stay.StartDate.UTC(),
		EndDate:   b.Stay.EndDate.UTC(),
		Adults:    b.Stay.Guests.Adults,
		Children:  b.Stay.Guests.Children,
		RoomType:  string(b.Stay.RoomType),
		Purpose:   string(b.Stay.Purpose),
		TotalCost: b.TotalCost,
		Status:    string(b.Status),
		OrderID:   b.OrderID,
		ReceiptID: b.ReceiptID,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}

	if b.Payment != nil {
		row.PaymentID = &b.Payment.PaymentID
		row.PaymentSignature = &b.Payment.Signature
	}

	return row
}

func (r *bookingRow) toBooking() *booking.Booking {
	b := &booking.Booking{
		ID:        r.ID,
		ListingID: r.ListingID,
		OwnerID:   r.OwnerID,
		Stay: booking.StayRequest{
			ListingID: r.ListingID,
			StartDate: r.StartDate.UTC(),
			EndDate:   r.EndDate.UTC(),
			Guests:    booking.GuestComposition{Adults: r.Adults, Children: r.Children},
			RoomType:  booking.RoomType(r.RoomType),
			Purpose:   booking.Purpose(r.Purpose),
		},
		TotalCost: r.TotalCost,
		Status:    booking.Status(r.Status),
		OrderID:   r.OrderID,
		ReceiptID: r.ReceiptID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}

	if r.PaymentID != nil && r.PaymentSignature != nil {
		b.Payment = &booking.PaymentReference{
			OrderID:   r.OrderID,
			PaymentID: *r.PaymentID,
			Signature: *r.PaymentSignature,
		}
	}

	return b
}

func toOrderRow(o *booking.PaymentOrder) orderRow {
	return orderRow{
		OrderID:   o.OrderID,
		BookingID: o.BookingID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		ReceiptID: o.ReceiptID,
		CreatedAt: o.CreatedAt.UTC(),
	}
}

func (r *orderRow) toOrder() *booking.PaymentOrder {
	return &booking.PaymentOrder{
		OrderID:   r.OrderID,
		BookingID: r.BookingID,
		Amount:    r.Amount,
		Currency:  r.Currency,
		ReceiptID: r.ReceiptID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func toEventRow(e *booking.Event) eventRow {
	return eventRow{
		ID:        e.ID,
		Kind:      string(e.Kind),
		BookingID: e.BookingID,
		ListingID: e.ListingID,
		OwnerID:   e.OwnerID,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (r *eventRow) toEvent() *booking.Event {
	return &booking.Event{
		ID:        r.ID,
		Kind:      booking.EventKind(r.Kind),
		BookingID: r.BookingID,
		ListingID: r.ListingID,
		OwnerID:   r.OwnerID,
		Status:    booking.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}
}
