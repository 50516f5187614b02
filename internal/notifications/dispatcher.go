package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/acecharity/raffle-backend/pkg/logger"
)

// Event types carried on the notification topic. A downstream mailer consumes
// them and renders the actual emails.
const (
	EventPaymentConfirmation = "order.payment_confirmation"
	EventTicketDelivery      = "order.ticket_delivery"
)

// Dispatcher fans order lifecycle events out to the notification pipeline.
type Dispatcher interface {
	SendPaymentConfirmation(ctx context.Context, orderID string, orderNumber int64) error
	SendTicketDelivery(ctx context.Context, orderID string, orderNumber int64, ticketCount int) error
}

// Envelope is the wire shape published for every notification event.
type Envelope struct {
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	TicketCount int       `json:"ticket_count,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubDispatcher publishes notification events to a Pub/Sub topic.
type PubSubDispatcher struct {
	publisher publisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewPubSubDispatcher builds a dispatcher over the notification topic.
func NewPubSubDispatcher(pub publisher, logg *logger.Logger) (*PubSubDispatcher, error) {
	if pub == nil {
		return nil, fmt.Errorf("notification publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubDispatcher{publisher: pub, logg: logg, now: time.Now}, nil
}

func (d *PubSubDispatcher) SendPaymentConfirmation(ctx context.Context, orderID string, orderNumber int64) error {
	return d.publish(ctx, Envelope{
		EventType:   EventPaymentConfirmation,
		OrderID:     orderID,
		OrderNumber: orderNumber,
	})
}

func (d *PubSubDispatcher) SendTicketDelivery(ctx context.Context, orderID string, orderNumber int64, ticketCount int) error {
	return d.publish(ctx, Envelope{
		EventType:   EventTicketDelivery,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		TicketCount: ticketCount,
	})
}

func (d *PubSubDispatcher) publish(ctx context.Context, envelope Envelope) error {
	envelope.EmittedAt = d.now().UTC()
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	result := d.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": envelope.EventType},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing %s: %w", envelope.EventType, err)
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"order_number": envelope.OrderNumber,
	})
	d.logg.Info(logCtx, "notification published")
	return nil
}

// NoopDispatcher logs events without publishing. Wired when Pub/Sub is not
// configured, so dev environments keep the checkout flow working.
type NoopDispatcher struct {
	logg *logger.Logger
}

// NewNoopDispatcher builds the log-only dispatcher.
func NewNoopDispatcher(logg *logger.Logger) *NoopDispatcher {
	return &NoopDispatcher{logg: logg}
}

func (d *NoopDispatcher) SendPaymentConfirmation(ctx context.Context, orderID string, orderNumber int64) error {
	d.log(ctx, EventPaymentConfirmation, orderNumber)
	return nil
}

func (d *NoopDispatcher) SendTicketDelivery(ctx context.Context, orderID string, orderNumber int64, ticketCount int) error {
	d.log(ctx, EventTicketDelivery, orderNumber)
	return nil
}

func (d *NoopDispatcher) log(ctx context.Context, eventType string, orderNumber int64) {
	if d.logg == nil {
		return
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_type":   eventType,
		"order_number": orderNumber,
	})
	d.logg.Info(logCtx, "notification skipped, pubsub not configured")
}
