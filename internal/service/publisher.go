package service

import (
	"context"

	"liaptui/internal/log"
	"liaptui/internal/model"
)

// EventPublisher receives domain events once the unit of work that produced
// them has committed. Implemented outside this package to avoid import cycles.
type EventPublisher interface {
	PublishBatch(ctx context.Context, batch []model.DomainEvent) error
}

// publish is fire-and-forget: a failed publish never fails the operation
// whose state change already committed.
func publish(ctx context.Context, pub EventPublisher, batch []model.DomainEvent) {
	if pub == nil || len(batch) == 0 {
		return
	}
	if err := pub.PublishBatch(ctx, batch); err != nil {
		log.Warn("publish %d events failed: %v", len(batch), err)
	}
}
