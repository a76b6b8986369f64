package booking

import (
	"time"
)

type RoomType string

const (
	RoomTypeAC    RoomType = "AC"
	RoomTypeNonAC RoomType = "NonAC"
	RoomTypeBoth  RoomType = "Both"
)

type Purpose string

const (
	PurposePersonal          Purpose = "Personal"
	PurposeCampusRecruitment Purpose = "Campus_Recruitment"
)

type Listing struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Type                RoomType `json:"type"`
	SingleOccupancyRate int64    `json:"singleOccupancy"`
	DoubleOccupancyRate int64    `json:"doubleOccupancy"`
}

func (l *Listing) Offers(rt RoomType) bool {
	switch l.Type {
	case RoomTypeBoth:
		return rt == RoomTypeAC || rt == RoomTypeNonAC
	case RoomTypeAC, RoomTypeNonAC:
		return rt == l.Type
	default:
		return false
	}
}

type GuestComposition struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

type StayRequest struct {
	ListingID string           `json:"listingId"`
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	Guests    GuestComposition `json:"guests"`
	RoomType  RoomType         `json:"type"`
	Purpose   Purpose          `json:"purpose"`
}

func (s *StayRequest) Range() DateRange {
	return DateRange{Start: s.StartDate, End: s.EndDate}
}

// Nights is the ceiling of the calendar-day difference between the dates. Unix seconds are used
// because time.Duration saturates after about 292 years.
func (s *StayRequest) Nights() int {
	secs := s.EndDate.Unix() - s.StartDate.Unix()
	nanos := s.EndDate.Nanosecond() - s.StartDate.Nanosecond()

	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}

	if secs < 0 || (secs == 0 && nanos == 0) {
		return 0
	}

	nights := secs / secondsPerDay
	if secs%secondsPerDay != 0 || nanos != 0 {
		nights++
	}

	return int(nights)
}

type PricedStay struct {
	StayRequest
	Nights    int   `json:"nights"`
	TotalCost int64 `json:"totalCost"`
}

type PaymentOrder struct {
	OrderID   string    `json:"id"`
	BookingID string    `json:"-"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ReceiptID string    `json:"receipt"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentReference struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type Booking struct {
	ID        string            `json:"id"`
	ListingID string            `json:"listingId"`
	OwnerID   string            `json:"ownerId"`
	Stay      StayRequest       `json:"stay"`
	TotalCost int64             `json:"total"`
	Status    Status            `json:"status"`
	OrderID   string            `json:"orderId,omitempty"`
	ReceiptID string            `json:"receiptId,omitempty"`
	Payment   *PaymentReference `json:"payment,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (b *Booking) Range() DateRange {
	return b.Stay.Range()
}

func (b *Booking) Clone() *Booking {
	c := *b
	if b.Payment != nil {
		p := *b.Payment
		c.Payment = &p
	}

	return &c
}

type EventKind string

const (
	EventBookingHeld      EventKind = "booking.held"
	EventBookingCommitted EventKind = "booking.committed"
	EventBookingCancelled EventKind = "booking.cancelled"
	EventBookingExpired   EventKind = "booking.expired"
)

type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	BookingID string    `json:"booking_id"`
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	day           = 24 * time.Hour
	secondsPerDay = int64(day / time.Second)
)
