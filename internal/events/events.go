// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectOrderCreated is the NATS subject for committed orders.
const SubjectOrderCreated = "orders.created"

// OrderCreated is the payload published after checkout commits.
type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	PrincipalID string    `json:"principal_id"`
	CartID      string    `json:"cart_id"`
	TotalCents  int32     `json:"total_cents"`
	Currency    string    `json:"currency"`
	ChargeID    string    `json:"charge_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Publisher emits order events. Publishing is best effort: checkout has
// already committed by the time an event goes out, so failures are logged,
// never surfaced to the customer.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreated) error
}

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) PublishOrderCreated(ctx context.Context, event OrderCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(SubjectOrderCreated, data); err != nil {
		return err
	}
	p.logger.Debug("published order event",
		"subject", SubjectOrderCreated,
		"order_id", event.OrderID)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

// NoopPublisher discards events. Used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(ctx context.Context, event OrderCreated) error {
	return nil
}
