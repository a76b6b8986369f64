package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/gateway/razorpay"
)

type Gateway struct {
	mu     sync.Mutex
	secret string
	now    func() time.Time
	orders map[string]*booking.GatewayOrder
}

func New(secret string, now func() time.Time) *Gateway {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Gateway{
		secret: secret,
		now:    now,
		orders: make(map[string]*booking.GatewayOrder),
	}
}

func (g *Gateway) CreateOrder(_ context.Context, req booking.GatewayOrderRequest) (*booking.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := &booking.GatewayOrder{
		ID:        "order_" + compactUUID(),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		CreatedAt: g.now(),
	}

	g.orders[order.ID] = order

	return order, nil
}

func (g *Gateway) VerifySignature(ref booking.PaymentReference) bool {
	return razorpay.Verify(g.secret, ref.OrderID, ref.PaymentID, ref.Signature)
}

func (g *Gateway) Pay(orderID string) (booking.PaymentReference, bool) {
	g.mu.Lock()
	_, ok := g.orders[orderID]
	g.mu.Unlock()

	if !ok {
		return booking.PaymentReference{}, false
	}

	paymentID := "pay_" + compactUUID()

	return booking.PaymentReference{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: razorpay.Sign(g.secret, orderID, paymentID),
	}, true
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
