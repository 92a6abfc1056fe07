package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SweepOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.seedRoom(t, "R1", "Alice", "Bob", "Carol")
	f.seedRoom(t, "R2", "Dave")
	f.startGame(t, "R1")

	_, err := f.reconnect.HandleReconnect(f.ctx, "R1", "Carol", "ws-carol")
	require.NoError(t, err)
	require.NoError(t, f.reconnect.HandleDisconnect(f.ctx, "R1", "Alice", true))
	_, err = f.queues.QueueMessage(f.ctx, "R1", "Alice", "stale", nil, false)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.reconnect.HandleDisconnect(f.ctx, "R1", "Bob", true))
	_, err = f.queues.QueueMessage(f.ctx, "R1", "Bob", "expired", nil, false)
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)
	_, err = f.queues.QueueMessage(f.ctx, "R1", "Bob", "fresh", nil, false)
	require.NoError(t, err)

	sweeper := NewSweeper(f.store, f.reconnect, f.queues, time.Minute, 5*time.Minute, 10*time.Minute)
	report, err := sweeper.SweepOnce(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Rooms)
	assert.Equal(t, 1, report.StaleSessions, "carol has been silent for 11 minutes")
	assert.Equal(t, 2, report.MessagesDropped)
	assert.Equal(t, 1, report.PlayersRemoved)

	room := f.room(t, "R1")
	assert.Nil(t, room.Player("Alice"))
	assert.Equal(t, []string{"fresh"}, eventTypes(f.queue(t, "R1", "Bob").Messages))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 10)
	sweeper := NewSweeper(f.store, f.reconnect, f.queues, 10*time.Millisecond, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
