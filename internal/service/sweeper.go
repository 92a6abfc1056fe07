package service

import (
	"context"
	"errors"
	"time"

	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/repository"
)

// Sweeper periodically runs the maintenance passes of every room: stale
// session reporting, expired message cleanup and removal of players who
// never came back.
type Sweeper struct {
	uow               repository.UnitOfWork
	reconnect         *ReconnectionService
	queues            *MessageQueueService
	interval          time.Duration
	messageMaxAge     time.Duration
	disconnectTimeout time.Duration
}

func NewSweeper(
	uow repository.UnitOfWork,
	reconnect *ReconnectionService,
	queues *MessageQueueService,
	interval, messageMaxAge, disconnectTimeout time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if messageMaxAge <= 0 {
		messageMaxAge = DefaultMessageMaxAge
	}
	if disconnectTimeout <= 0 {
		disconnectTimeout = DefaultDisconnectTimeout
	}
	return &Sweeper{
		uow:               uow,
		reconnect:         reconnect,
		queues:            queues,
		interval:          interval,
		messageMaxAge:     messageMaxAge,
		disconnectTimeout: disconnectTimeout,
	}
}

// SweepReport totals one pass over all rooms.
type SweepReport struct {
	Rooms           int
	StaleSessions   int
	MessagesDropped int
	PlayersRemoved  int
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info("sweeper started, interval %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil {
				log.Error("sweep failed: %v", err)
				continue
			}
			if report.MessagesDropped > 0 || report.PlayersRemoved > 0 || report.StaleSessions > 0 {
				log.Info("sweep: %d rooms, %d stale sessions, %d messages dropped, %d players removed",
					report.Rooms, report.StaleSessions, report.MessagesDropped, report.PlayersRemoved)
			}
		}
	}
}

// SweepOnce runs every pass over every room once. A room that disappears
// mid-sweep is skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var ids []string
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ids, err = repos.Rooms.ListIDs(ctx)
		return err
	})
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Rooms: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		health, err := s.reconnect.CheckConnectionHealth(ctx, id, 0)
		if skipRoom(id, err) {
			continue
		}
		for _, h := range health {
			if h.Health == model.HealthStale {
				report.StaleSessions++
				log.Warn("stale session %s for %s in room %s", h.WebsocketID, h.PlayerName, id)
			}
		}

		dropped, err := s.queues.CleanupOldMessages(ctx, id, s.messageMaxAge)
		if skipRoom(id, err) {
			continue
		}
		report.MessagesDropped += dropped

		removed, err := s.reconnect.CleanupDisconnectedPlayers(ctx, id, s.disconnectTimeout)
		if skipRoom(id, err) {
			continue
		}
		report.PlayersRemoved += removed
	}
	return report, nil
}

func skipRoom(roomID string, err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, model.ErrRoomNotFound) {
		log.Error("sweep room %s: %v", roomID, err)
	}
	return true
}
