package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"liaptui/internal/log"
	"liaptui/internal/model"
)

var ErrNotConnected = errors.New("nats not connected")

// NatsPublisher emits every event on "<prefix>.<event_type>".
type NatsPublisher struct {
	prefix string
	conn   *nats.Conn
}

func NewNatsPublisher(url, prefix string) (*NatsPublisher, error) {
	log.Info("connecting to nats, url:%s", url)
	conn, err := nats.Connect(url,
		nats.Name("liaptui"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected, url:%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	if prefix == "" {
		prefix = "liaptui"
	}
	return &NatsPublisher{prefix: prefix, conn: conn}, nil
}

func (p *NatsPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NatsPublisher) PublishBatch(_ context.Context, batch []model.DomainEvent) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return ErrNotConnected
	}
	var errs []error
	for _, e := range batch {
		data, err := Encode(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.conn.Publish(p.Subject(e.EventType()), data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", e.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *NatsPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	log.Info("nats connection closed")
	return nil
}
