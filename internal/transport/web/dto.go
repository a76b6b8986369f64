package web

import (
	"time"

	"github.com/avstrong/roomstay/internal/booking"
)

type response struct {
	Success bool                `json:"success"`
	Error   bool                `json:"error"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// stayWindow exposes another guest's booking without saying whose it is.
type stayWindow struct {
	StartDate time.Time      `json:"startDate"`
	EndDate   time.Time      `json:"endDate"`
	Status    booking.Status `json:"status"`
}

type listingView struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Type            booking.RoomType `json:"type"`
	SingleOccupancy int64            `json:"singleOccupancy"`
	DoubleOccupancy int64            `json:"doubleOccupancy"`
	Bookings        []stayWindow     `json:"bookings,omitempty"`
}

type bookingView struct {
	ID        string                    `json:"id"`
	ListingID string                    `json:"listingId"`
	StartDate time.Time                 `json:"startDate"`
	EndDate   time.Time                 `json:"endDate"`
	Guests    booking.GuestComposition  `json:"guests"`
	Type      booking.RoomType          `json:"type"`
	Purpose   booking.Purpose           `json:"purpose"`
	Nights    int                       `json:"nights"`
	Total     int64                     `json:"total"`
	Status    booking.Status            `json:"status"`
	Phase     booking.Phase             `json:"phase,omitempty"`
	OrderID   string                    `json:"orderId,omitempty"`
	ReceiptID string                    `json:"receiptId,omitempty"`
	Payment   *booking.PaymentReference `json:"payment,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type availabilityView struct {
	Available bool         `json:"available"`
	Conflicts []stayWindow `json:"conflictingBookings"`
	Nights    int          `json:"nights,omitempty"`
	Total     int64        `json:"total,omitempty"`
}

type createPaymentRequest struct {
	booking.StayInput
	Total int64 `json:"total"`
}

type orderResponse struct {
	Success bool `json:"success"`
	*booking.PaymentOrder
	BookingID string `json:"bookingId"`
}

type createBookingRequest struct {
	Total     int64  `json:"total"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func toListingView(l *booking.Listing, active []*booking.Booking) listingView {
	return listingView{
		ID:              l.ID,
		Title:           l.Title,
		Description:     l.Description,
		Type:            l.Type,
		SingleOccupancy: l.SingleOccupancyRate,
		DoubleOccupancy: l.DoubleOccupancyRate,
		Bookings:        toWindows(active),
	}
}

func toWindows(bookings []*booking.Booking) []stayWindow {
	res := make([]stayWindow, 0, len(bookings))
	for _, b := range bookings {
		res = append(res, stayWindow{
			StartDate: b.Stay.StartDate,
			EndDate:   b.Stay.EndDate,
			Status:    b.Status,
		})
	}

	return res
}

func toBookingView(b *booking.Booking, now time.Time) bookingView {
	v := bookingView{
		ID:        b.ID,
		ListingID: b.ListingID,
		StartDate: b.Stay.StartDate,
		EndDate:   b.Stay.EndDate,
		Guests:    b.Stay.Guests,
		Type:      b.Stay.RoomType,
		Purpose:   b.Stay.Purpose,
		Nights:    b.Stay.Nights(),
		Total:     b.TotalCost,
		Status:    b.EffectiveStatus(now),
		OrderID:   b.OrderID,
		ReceiptID: b.ReceiptID,
		Payment:   b.Payment,
		CreatedAt: b.CreatedAt,
	}

	if b.Status == booking.StatusBooked {
		v.Phase = b.Phase(now)
	}

	return v
}
