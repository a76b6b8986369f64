package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/gateway/local"
	"github.com/avstrong/roomstay/internal/idgen/simple"
	"github.com/avstrong/roomstay/internal/logger"
	"github.com/avstrong/roomstay/internal/migration"
	"github.com/avstrong/roomstay/internal/pricing"
	"github.com/avstrong/roomstay/internal/storage/memory"
)

const user = "user-1"

type testServer struct {
	server  *Server
	gateway *local.Gateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	l := logger.Discard()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	storage := memory.New(memory.Config{L: l})
	require.NoError(t, migration.Up(ctx, l, storage))

	gw := local.New("secret", func() time.Time { return now })
	tracer := noop.NewTracerProvider().Tracer("test")

	m := booking.New(booking.Conf{
		L:        l,
		Storage:  storage,
		IDGen:    simple.New("id-"),
		Pricer:   pricing.New(pricing.DefaultRates()),
		Gateway:  gw,
		Tracer:   tracer,
		Now:      func() time.Time { return now },
		HoldTTL:  15 * time.Minute,
		Currency: "INR",
	})

	s, err := New(ctx, Conf{
		L:                l,
		Tracer:           tracer,
		Host:             "localhost",
		Port:             "0",
		LivenessEndpoint: "/liveness",
	}, m)
	require.NoError(t, err)

	return &testServer{server: s, gateway: gw}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}

	return rec, decoded
}

func stayBody(total int64) map[string]any {
	return map[string]any{
		"listingId": "himalaya-101",
		"startDate": "2024-01-10",
		"endDate":   "2024-01-12",
		"guests":    "2A+0C",
		"type":      "AC",
		"purpose":   "Personal",
		"total":     total,
	}
}

// startPayment creates an order and returns the gateway callback for it.
func (ts *testServer) startPayment(t *testing.T, userID string, headers ...string) (map[string]any, booking.PaymentReference) {
	t.Helper()

	rec, body := ts.do(t, http.MethodPost, "/api/bookings/create-payment", userID, stayBody(4000), headers...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cb, ok := ts.gateway.Pay(body["id"].(string))
	require.True(t, ok)

	return body, cb
}

func callback(cb booking.PaymentReference, total int64) map[string]any {
	return map[string]any{
		"total":               total,
		"razorpay_order_id":   cb.OrderID,
		"razorpay_payment_id": cb.PaymentID,
		"razorpay_signature":  cb.Signature,
	}
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/liveness", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRooms(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], len(migration.Listings()))

	rec, body = ts.do(t, http.MethodGet, "/api/rooms/himalaya-101", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "Himalaya 101", data["title"])
	assert.Equal(t, float64(1000), data["singleOccupancy"])

	rec, _ = ts.do(t, http.MethodGet, "/api/rooms/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAvailability(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/bookings/check-availability/himalaya-101", user, map[string]any{
		"startDate": "2024-01-10",
		"endDate":   "2024-01-12",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["data"].(map[string]any)["available"])

	rec, body = ts.do(t, http.MethodPost, "/api/bookings/check-availability/himalaya-101", user, map[string]any{
		"startDate": "2024-01-10",
		"endDate":   "2024-01-12",
		"guests":    "1A+0C",
		"type":      "AC",
		"purpose":   "Personal",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2800), body["data"].(map[string]any)["total"])

	rec, body = ts.do(t, http.MethodPost, "/api/bookings/check-availability/himalaya-101", user, map[string]any{
		"startDate": "2024-01-12",
		"endDate":   "2024-01-10",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"], "endDate")

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/check-availability/missing", user, map[string]any{
		"startDate": "2024-01-10",
		"endDate":   "2024-01-12",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/bookings/create-payment", "", stayBody(4000))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	order, cb := ts.startPayment(t, user)
	assert.Equal(t, float64(4000), order["amount"])
	assert.Equal(t, "INR", order["currency"])
	assert.NotEmpty(t, order["receipt"])

	rec, body := ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(cb, 4000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	booked := body["data"].(map[string]any)
	bookingID := booked["id"].(string)
	assert.Equal(t, "Booked", booked["status"])
	assert.Equal(t, "upcoming", booked["phase"])
	assert.Equal(t, "2A+0C", booked["guests"])

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(cb, 4000))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/bookings/get-booking/"+bookingID, user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/bookings/get-booking/"+bookingID, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/bookings/mine", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, body = ts.do(t, http.MethodPost, "/api/bookings/check-availability/himalaya-101", "user-2", map[string]any{
		"startDate": "2024-01-11",
		"endDate":   "2024-01-13",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, body["data"].(map[string]any)["conflictingBookings"], 1)

	rec, body = ts.do(t, http.MethodGet, "/api/rooms/himalaya-101", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].(map[string]any)["bookings"], 1)

	rec, _ = ts.do(t, http.MethodDelete, "/api/bookings/delete/"+bookingID, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodDelete, "/api/bookings/delete/"+bookingID, user, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = ts.do(t, http.MethodDelete, "/api/bookings/delete/missing", user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePayment_Rejections(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/bookings/create-payment", user, stayBody(1))
	assert.Equal(t, http.StatusConflict, rec.Code)

	invalid := stayBody(4000)
	invalid["guests"] = "many"

	rec, body := ts.do(t, http.MethodPost, "/api/bookings/create-payment", user, invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"], "guests")

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/create-payment", bytes.NewBufferString("{"))
	req.Header.Set(userHeader, user)

	raw := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	ts.startPayment(t, user)

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create-payment", "user-2", stayBody(4000))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePayment_DatesOnlyBody(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"listingId": "himalaya-101",
		"startDate": "2024-01-10",
		"endDate":   "2024-01-12",
		"total":     3000,
	}

	rec, order := ts.do(t, http.MethodPost, "/api/bookings/create-payment", user, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(3000), order["amount"])

	cb, ok := ts.gateway.Pay(order["id"].(string))
	require.True(t, ok)

	rec, booked := ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(cb, 3000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := booked["data"].(map[string]any)
	assert.Equal(t, "2A+0C", data["guests"])
	assert.Equal(t, "NonAC", data["type"])
	assert.Equal(t, "Personal", data["purpose"])

	body["listingId"] = "missing"
	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create-payment", user, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePayment_IdempotencyKey(t *testing.T) {
	ts := newTestServer(t)

	first, _ := ts.startPayment(t, user, idempotencyHeader, "key-1")
	second, _ := ts.startPayment(t, user, idempotencyHeader, "key-1")

	assert.Equal(t, first["id"], second["id"])
}

func TestCreateBooking_Rejections(t *testing.T) {
	ts := newTestServer(t)

	_, cb := ts.startPayment(t, user)

	forged := cb
	forged.Signature = "forged"

	rec, _ := ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(forged, 4000))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(cb, 3999))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", "user-2", callback(cb, 4000))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	unknown := cb
	unknown.OrderID = "order_unknown"

	rec, _ = ts.do(t, http.MethodPost, "/api/bookings/create/himalaya-101", user, callback(unknown, 4000))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	ts := newTestServer(t)

	h := ts.server.applyMiddlewares(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), ts.server.recoverMiddleware())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, true, body["error"])

	rec, _ = ts.do(t, http.MethodPut, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(context.Background(), Conf{}, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)
}
