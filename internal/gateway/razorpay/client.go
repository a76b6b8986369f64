package razorpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

const subunitsPerUnit = 100

var ErrGateway = errors.New("razorpay request failed")

type Conf struct {
	L          *logger.Logger
	BaseURL    string
	KeyID      string
	KeySecret  string
	HTTPClient *http.Client
}

type Client struct {
	l         *logger.Logger
	api       *rzp.Client
	keySecret string
}

func New(conf Conf) *Client {
	api := rzp.NewClient(conf.KeyID, conf.KeySecret)

	if conf.BaseURL != "" {
		api.Request.BaseURL = conf.BaseURL
	}

	if conf.HTTPClient != nil {
		api.Request.HTTPClient = conf.HTTPClient
	}

	return &Client{
		l:         conf.L,
		api:       api,
		keySecret: conf.KeySecret,
	}
}

// CreateOrder sends the amount in subunits and converts the answer back to whole units.
// The SDK takes no context, so cancellation is only checked before the call.
func (c *Client) CreateOrder(ctx context.Context, req booking.GatewayOrderRequest) (*booking.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	data := map[string]interface{}{
		"amount":   req.Amount * subunitsPerUnit,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}

	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	resp, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("post order: %v: %w", err, ErrGateway)
	}

	id, _ := resp["id"].(string)
	amount := number(resp["amount"])

	if id == "" {
		return nil, fmt.Errorf("order response has no id: %w", ErrGateway)
	}

	if amount%subunitsPerUnit != 0 {
		return nil, fmt.Errorf("order %v amount %d is not whole units: %w", id, amount, ErrGateway)
	}

	currency, _ := resp["currency"].(string)
	receipt, _ := resp["receipt"].(string)

	c.l.LogDebugf("Razorpay order %v created, receipt %v", id, receipt)

	return &booking.GatewayOrder{
		ID:        id,
		Amount:    amount / subunitsPerUnit,
		Currency:  currency,
		Receipt:   receipt,
		CreatedAt: time.Unix(number(resp["created_at"]), 0).UTC(),
	}, nil
}

func (c *Client) VerifySignature(ref booking.PaymentReference) bool {
	return Verify(c.keySecret, ref.OrderID, ref.PaymentID, ref.Signature)
}

func number(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
