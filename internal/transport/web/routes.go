package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/avstrong/roomstay/internal/booking"
)

const (
	userHeader        = "X-User-ID"
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

func currentUser(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

func pathParam(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Error: true, Message: "Request body is not valid JSON"})

		return false
	}

	return true
}

func (s *Server) listListingsHandler(w http.ResponseWriter, r *http.Request) {
	listings, err := s.bManager.Listings(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, toListingView(l, nil))
	}

	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Rooms fetched", Data: views})
}

func (s *Server) getListingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathParam(r, "id")

	listing, err := s.bManager.Listing(ctx, id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	active, err := s.bManager.ActiveBookings(ctx, id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Room fetched", Data: toListingView(listing, active)})
}

func (s *Server) checkAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input booking.StayInput
	if !s.decode(w, r, &input) {
		return
	}

	input.ListingID = pathParam(r, "id")

	listingID, rng, err := input.BuildRange()
	if err != nil {
		s.writeError(w, err)

		return
	}

	if _, err := s.bManager.Listing(ctx, listingID); err != nil {
		s.writeError(w, err)

		return
	}

	view := availabilityView{}

	if input.HasStayDetails() {
		stay, err := input.Build()
		if err != nil {
			s.writeError(w, err)

			return
		}

		priced, err := s.bManager.Quote(ctx, stay)
		if err != nil {
			s.writeError(w, err)

			return
		}

		view.Nights = priced.Nights
		view.Total = priced.TotalCost
	}

	availability, err := s.bManager.Checker().Check(ctx, listingID, rng.Start, rng.End)
	if err != nil {
		s.writeError(w, err)

		return
	}

	view.Available = availability.Available
	view.Conflicts = toWindows(availability.Conflicts)

	if !availability.Available {
		s.writeJSON(w, http.StatusConflict, response{
			Error:   true,
			Message: "Room is not available for the selected dates",
			Data:    view,
		})

		return
	}

	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Room is available", Data: view})
}

func (s *Server) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input createPaymentRequest
	if !s.decode(w, r, &input) {
		return
	}

	if !input.HasStayDetails() && input.ListingID != "" {
		listing, err := s.bManager.Listing(ctx, input.ListingID)
		if err != nil {
			s.writeError(w, err)

			return
		}

		input.StayInput = input.StayInput.WithDefaults(listing.Type)
	}

	stay, err := input.Build()
	if err != nil {
		s.writeError(w, err)

		return
	}

	if key := r.Header.Get(idempotencyHeader); key != "" {
		ctx = booking.NewContextWithIdempotencyKey(ctx, key)
	}

	order, err := s.bManager.StartPayment(ctx, currentUser(r), stay, input.Total)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, orderResponse{Success: true, PaymentOrder: order, BookingID: order.BookingID})
}

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var input createBookingRequest
	if !s.decode(w, r, &input) {
		return
	}

	cb := booking.PaymentReference{
		OrderID:   input.OrderID,
		PaymentID: input.PaymentID,
		Signature: input.Signature,
	}

	b, err := s.bManager.VerifyAndCommit(r.Context(), currentUser(r), cb, input.Total)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if listingID := pathParam(r, "id"); b.ListingID != listingID {
		s.l.LogWarnf("Booking %v committed for listing %v but callback was posted for %v", b.ID, b.ListingID, listingID)
	}

	s.writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "Room booked successfully",
		Data:    toBookingView(b, s.bManager.Now()),
	})
}

func (s *Server) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.bManager.Cancel(r.Context(), pathParam(r, "id"), currentUser(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Booking cancelled",
		Data:    toBookingView(b, s.bManager.Now()),
	})
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.bManager.GetBooking(r.Context(), pathParam(r, "id"), currentUser(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Booking fetched",
		Data:    toBookingView(b, s.bManager.Now()),
	})
}

func (s *Server) myBookingsHandler(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bManager.ListBookings(r.Context(), currentUser(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	now := s.bManager.Now()

	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, toBookingView(b, now))
	}

	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Bookings fetched", Data: views})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusNotFound, response{Error: true, Message: "Route not found"})
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, response{Error: true, Message: "Method not allowed"})
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if ve := booking.IsValidationError(err); ve != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Error: true, Message: "Invalid request", Fields: ve.Fields()})

		return
	}

	if ce := booking.IsAvailabilityConflictError(err); ce != nil {
		s.writeJSON(w, http.StatusConflict, response{
			Error:   true,
			Message: "Room is not available for the selected dates",
			Data:    availabilityView{Available: false, Conflicts: toWindows(ce.Conflicts)},
		})

		return
	}

	status, message := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)

	switch {
	case booking.IsAmountMismatchError(err) != nil:
		status, message = http.StatusConflict, "Total does not match the price of the stay"
	case booking.IsPaymentVerificationError(err) != nil:
		status, message = http.StatusPaymentRequired, "Payment could not be verified"
	case booking.IsIllegalCancellationError(err) != nil:
		status, message = http.StatusConflict, "Booking can no longer be cancelled"
	case booking.IsIllegalTransitionError(err) != nil:
		status, message = http.StatusConflict, "Booking is not in a state that allows this operation"
	case errors.Is(err, booking.ErrOwnerMissing):
		status, message = http.StatusUnauthorized, userHeader+" header is missing"
	case errors.Is(err, booking.ErrForbidden):
		status, message = http.StatusForbidden, "Booking belongs to another user"
	case errors.Is(err, booking.ErrRecordNotFound):
		status, message = http.StatusNotFound, "Not found"
	default:
		s.l.LogErrorf("Request failed: %v", err.Error())
	}

	if status != http.StatusInternalServerError {
		s.l.LogDebugf("Request rejected with %d: %v", status, err.Error())
	}

	s.writeJSON(w, status, response{Error: true, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) addRoutes(r *httprouter.Router) {
	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{method: http.MethodGet, path: "/api/rooms", handler: s.listListingsHandler},
		{method: http.MethodGet, path: "/api/rooms/:id", handler: s.getListingHandler},
		{method: http.MethodPost, path: "/api/bookings/check-availability/:id", handler: s.checkAvailabilityHandler},
		{method: http.MethodPost, path: "/api/bookings/create-payment", handler: s.createPaymentHandler},
		{method: http.MethodPost, path: "/api/bookings/create/:id", handler: s.createBookingHandler},
		{method: http.MethodDelete, path: "/api/bookings/delete/:id", handler: s.cancelBookingHandler},
		{method: http.MethodGet, path: "/api/bookings/get-booking/:id", handler: s.getBookingHandler},
		{method: http.MethodGet, path: "/api/bookings/mine", handler: s.myBookingsHandler},
		{method: http.MethodGet, path: s.conf.LivenessEndpoint, handler: s.livenessHandler},
	}

	for _, route := range routes {
		r.Handler(route.method, route.path, s.applyMiddlewares(
			route.handler,
			s.loggerMiddleware(),
			s.tracingMiddleware(route.path),
			s.recoverMiddleware(),
		))
	}
}
