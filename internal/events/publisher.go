package events

import (
	"context"
	"errors"

	"liaptui/internal/log"
	"liaptui/internal/model"
)

// Publisher is the sink side of the event stream.
type Publisher interface {
	PublishBatch(ctx context.Context, batch []model.DomainEvent) error
}

// LogPublisher writes each event to the debug log.
type LogPublisher struct{}

func (LogPublisher) PublishBatch(_ context.Context, batch []model.DomainEvent) error {
	for _, e := range batch {
		log.Debug("event %s room=%s at=%s", e.EventType(), e.Room(), e.OccurredAt().Format("15:04:05.000"))
	}
	return nil
}

// Fanout hands every batch to each sink in order. One failing sink does not
// stop the others.
type Fanout []Publisher

func (f Fanout) PublishBatch(ctx context.Context, batch []model.DomainEvent) error {
	if len(batch) == 0 {
		return nil
	}
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishBatch(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
