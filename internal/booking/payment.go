package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type GatewayOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type GatewayOrder struct {
	ID        string
	Amount    int64
	Currency  string
	Receipt   string
	CreatedAt time.Time
}

type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	VerifySignature(ref PaymentReference) bool
}

type PaymentOrchestrator struct {
	*engine

	gateway  Gateway
	currency string
}

func newPaymentOrchestrator(e *engine, gateway Gateway, currency string) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		engine:   e,
		gateway:  gateway,
		currency: currency,
	}
}

// StartPayment runs a stay from Draft to AwaitingPayment for ownerID. A request repeated with the
// same idempotency key returns the order created the first time.
func (m *Manager) StartPayment(ctx context.Context, ownerID string, stay StayRequest, total int64) (*PaymentOrder, error) {
	if ownerID == "" {
		return nil, ErrOwnerMissing
	}

	ctx = scopeIdempotencyKey(ctx, ownerID)

	if _, ok := IdempotencyKeyFromContext(ctx); ok {
		order, err := m.storage.GetOrderByIdempotencyKey(ctx)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("get order by idempotency key: %w", err)
		}

		if err == nil {
			return order, nil
		}
	}

	draft := NewDraft(ownerID, stay, m.now())

	if _, _, err := m.CheckAvailability(ctx, draft); err != nil {
		return nil, err
	}

	order, err := m.CreateOrder(ctx, draft, total)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		m.l.LogDebugf("Concurrent request with the same idempotency key won, returning its order")

		return m.storage.GetOrderByIdempotencyKey(ctx)
	}

	return order, err
}

func (o *PaymentOrchestrator) CreateOrder(ctx context.Context, pending *Booking, priced PricedStay) (_ *PaymentOrder, err error) {
	ctx, span := o.tracer.Start(ctx, "booking.create_order",
		trace.WithAttributes(attribute.String("listing.id", pending.ListingID)))
	defer func() { endSpan(span, err) }()

	if !pending.Status.CanTransitionTo(StatusAwaitingPayment) {
		return nil, &IllegalTransitionError{From: pending.Status, To: StatusAwaitingPayment}
	}

	recomputed, err := o.price(ctx, pending.Stay)
	if err != nil {
		return nil, err
	}

	if recomputed.TotalCost != priced.TotalCost {
		return nil, &AmountMismatchError{Expected: recomputed.TotalCost, Got: priced.TotalCost}
	}

	if recomputed.Nights <= 0 || recomputed.TotalCost <= 0 {
		ve := newValidationError()
		ve.addError("endDate", "stay must last at least one night")

		return nil, ve
	}

	bookingID, err := o.idGen.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	receiptID, err := o.idGen.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	gwOrder, err := o.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   recomputed.TotalCost,
		Currency: o.currency,
		Receipt:  "rcpt_" + receiptID,
		Notes: map[string]string{
			"booking_id": bookingID,
			"listing_id": pending.ListingID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if gwOrder.Amount != recomputed.TotalCost {
		return nil, fmt.Errorf("gateway order %v has amount %d, want %d: %w",
			gwOrder.ID, gwOrder.Amount, recomputed.TotalCost, ErrLogic)
	}

	span.SetAttributes(attribute.String("order.id", gwOrder.ID), attribute.String("booking.id", bookingID))

	now := o.now()

	hold := pending.Clone()
	hold.ID = bookingID
	hold.TotalCost = recomputed.TotalCost
	hold.OrderID = gwOrder.ID
	hold.ReceiptID = gwOrder.Receipt
	hold.CreatedAt = now

	if err := hold.Transition(StatusAwaitingPayment, now); err != nil {
		return nil, err
	}

	order := &PaymentOrder{
		OrderID:   gwOrder.ID,
		BookingID: hold.ID,
		Amount:    gwOrder.Amount,
		Currency:  gwOrder.Currency,
		ReceiptID: gwOrder.Receipt,
		CreatedAt: gwOrder.CreatedAt,
	}

	event, err := o.buildEvent(ctx, EventBookingHeld, hold)
	if err != nil {
		return nil, err
	}

	err = o.withTransaction(ctx, func(ctx context.Context) error {
		if err := o.storage.ReserveBooking(ctx, hold, "", o.policy(now)); err != nil {
			return fmt.Errorf("reserve hold: %w", err)
		}

		if err := o.storage.SaveOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := o.storage.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	*pending = *hold

	o.l.LogInfo("Order %v created for booking %v, amount %d %v", order.OrderID, hold.ID, order.Amount, order.Currency)
	o.publish(ctx, event)

	return order, nil
}

// VerifyAndCommit checks the gateway signature and moves pending to Booked. Calling it again with the
// same verified callback returns the committed booking unchanged.
func (o *PaymentOrchestrator) VerifyAndCommit(ctx context.Context, cb PaymentReference, pending *Booking) (_ *Booking, err error) {
	ctx, span := o.tracer.Start(ctx, "booking.verify_and_commit",
		trace.WithAttributes(
			attribute.String("order.id", cb.OrderID),
			attribute.String("booking.id", pending.ID),
		))
	defer func() { endSpan(span, err) }()

	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return nil, &PaymentVerificationError{OrderID: cb.OrderID, Reason: "incomplete callback"}
	}

	if pending.OrderID != cb.OrderID {
		return nil, &PaymentVerificationError{OrderID: cb.OrderID, Reason: "order does not belong to booking"}
	}

	if !o.gateway.VerifySignature(cb) {
		return nil, &PaymentVerificationError{OrderID: cb.OrderID, Reason: "signature mismatch"}
	}

	if pending.Status == StatusBooked {
		return o.alreadyCommitted(pending, cb)
	}

	if err := o.checkTamper(ctx, pending); err != nil {
		return nil, err
	}

	now := o.now()

	committed := pending.Clone()
	ref := cb
	committed.Payment = &ref

	if err := committed.Transition(StatusBooked, now); err != nil {
		return nil, err
	}

	event, err := o.buildEvent(ctx, EventBookingCommitted, committed)
	if err != nil {
		return nil, err
	}

	err = o.withTransaction(ctx, func(ctx context.Context) error {
		if err := o.storage.ReserveBooking(ctx, committed, StatusAwaitingPayment, o.policy(now)); err != nil {
			return fmt.Errorf("commit booking: %w", err)
		}

		return o.storage.SaveEvent(ctx, event)
	})
	if errors.Is(err, ErrStatusChanged) {
		// a duplicate delivery may have won the race
		stored, getErr := o.storage.GetBooking(ctx, pending.ID)
		if getErr != nil {
			return nil, fmt.Errorf("reload booking %v: %w", pending.ID, getErr)
		}

		if stored.Status == StatusBooked {
			return o.alreadyCommitted(stored, cb)
		}

		return nil, &IllegalTransitionError{From: stored.Status, To: StatusBooked}
	}

	if err != nil {
		return nil, err
	}

	o.l.LogInfo("Booking %v committed, payment %v", committed.ID, cb.PaymentID)
	o.publish(ctx, event)

	return committed, nil
}

func (o *PaymentOrchestrator) alreadyCommitted(b *Booking, cb PaymentReference) (*Booking, error) {
	if b.Payment == nil || *b.Payment != cb {
		return nil, &PaymentVerificationError{OrderID: cb.OrderID, Reason: "order already settled by another payment"}
	}

	o.l.LogDebugf("Duplicate confirmation for booking %v ignored", b.ID)

	return b, nil
}

func (o *PaymentOrchestrator) checkTamper(ctx context.Context, pending *Booking) error {
	priced, err := o.price(ctx, pending.Stay)
	if err != nil {
		return err
	}

	if priced.TotalCost != pending.TotalCost {
		return &AmountMismatchError{Expected: priced.TotalCost, Got: pending.TotalCost}
	}

	order, err := o.storage.GetOrder(ctx, pending.OrderID)
	if err != nil {
		return fmt.Errorf("get order %v: %w", pending.OrderID, err)
	}

	if order.Amount != pending.TotalCost {
		return &AmountMismatchError{Expected: pending.TotalCost, Got: order.Amount}
	}

	return nil
}

func (e *engine) policy(now time.Time) ConflictPolicy {
	return ConflictPolicy{Now: now, HoldTTL: e.holdTTL}
}
