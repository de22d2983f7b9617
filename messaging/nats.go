package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"sealed-ballot/models"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NATSPublisher publishes events as JSON on <prefix>.<election id>.<event type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "elections"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, event), data); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Subject is the NATS subject an event is published on.
func Subject(prefix string, event models.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.ElectionID, event.Type)
}
