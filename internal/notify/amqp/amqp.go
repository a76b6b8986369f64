package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	rabbit "github.com/streadway/amqp"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

const exchangeKind = "fanout"

type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args rabbit.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg rabbit.Publishing) error
	Close() error
}

type Conf struct {
	L        *logger.Logger
	URL      string
	Exchange string
}

type Publisher struct {
	l        *logger.Logger
	mu       sync.Mutex
	ch       Channel
	conn     *rabbit.Connection
	exchange string
}

func Dial(conf Conf) (*Publisher, error) {
	conn, err := rabbit.Dial(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	p, err := New(conf.L, ch, conf.Exchange)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	p.conn = conn

	return p, nil
}

func New(l *logger.Logger, ch Channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %v: %w", exchange, err)
	}

	l.LogInfo("Exchange %v (%v) declared", exchange, exchangeKind)

	return &Publisher{
		l:        l,
		ch:       ch,
		exchange: exchange,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event *booking.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %v: %w", event.ID, err)
	}

	headers := rabbit.Table{
		"event_kind": string(event.Kind),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		headers["trace_id"] = sc.TraceID().String()
	}

	msg := rabbit.Publishing{
		DeliveryMode: rabbit.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.CreatedAt,
		Type:         string(event.Kind),
		Headers:      headers,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Publish(p.exchange, string(event.Kind), false, false, msg); err != nil {
		return fmt.Errorf("publish %v to %v: %w", event.Kind, p.exchange, err)
	}

	p.l.LogDebugf("Event %v (%v) published to %v", event.ID, event.Kind, p.exchange)

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("close amqp channel: %w", err)
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close amqp connection: %w", err)
		}
	}

	return nil
}
