package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liaptui/internal/model"
)

func TestQueueMessage_CriticalEvictsOldestNonCritical(t *testing.T) {
	f := newFixture(t, 3)

	for _, name := range []string{"A", "B", "C"} {
		added, err := f.queues.QueueMessage(f.ctx, "R1", "alice", name, nil, false)
		require.NoError(t, err)
		assert.True(t, added)
	}
	added, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "D", nil, true)
	require.NoError(t, err)
	assert.True(t, added)

	q := f.queue(t, "R1", "alice")
	require.NotNil(t, q)
	assert.Equal(t, []string{"B", "C", "D"}, eventTypes(q.Messages))
	assert.Equal(t, []string{
		model.EventMessageQueued, model.EventMessageQueued, model.EventMessageQueued, model.EventMessageQueued,
	}, f.events.Types())
}

func TestQueueMessage_FullOfCriticalDropsAndEmitsOverflow(t *testing.T) {
	f := newFixture(t, 3)

	for _, name := range []string{"A", "B", "C"} {
		_, err := f.queues.QueueMessage(f.ctx, "R1", "alice", name, nil, true)
		require.NoError(t, err)
	}
	f.events.Reset()

	added, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "D", nil, true)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"A", "B", "C"}, eventTypes(f.queue(t, "R1", "alice").Messages))

	evs := f.events.Events()
	require.Len(t, evs, 1)
	overflow, ok := evs[0].(model.MessageQueueOverflow)
	require.True(t, ok)
	assert.Equal(t, 1, overflow.DroppedCount)
	assert.Equal(t, 3, overflow.RetainedCriticalCount)
	assert.Equal(t, 3, overflow.QueueCapacity)
}

func TestQueueMessage_NonCriticalOnFullQueueIsDropped(t *testing.T) {
	f := newFixture(t, 2)
	for _, name := range []string{"A", "B"} {
		_, err := f.queues.QueueMessage(f.ctx, "R1", "alice", name, nil, false)
		require.NoError(t, err)
	}
	added, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "C", nil, false)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 2, f.queue(t, "R1", "alice").Len())
}

func TestDeliverMessages_DrainsOnceInOrder(t *testing.T) {
	f := newFixture(t, 10)
	want := []string{"m1", "m2", "m3", "m4", "m5"}
	for i, name := range want {
		_, err := f.queues.QueueMessage(f.ctx, "R1", "bob", name, map[string]any{"i": i}, i == 2)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	f.events.Reset()

	msgs, err := f.queues.DeliverMessages(f.ctx, "R1", "bob")
	require.NoError(t, err)
	assert.Equal(t, want, eventTypes(msgs))

	evs := f.events.Events()
	require.Len(t, evs, 1)
	delivered := evs[0].(model.QueuedMessagesDelivered)
	assert.Equal(t, 5, delivered.MessageCount)
	assert.Equal(t, 1, delivered.CriticalMessageCount)
	assert.Equal(t, float64(5), delivered.OldestMessageAgeSeconds)

	again, err := f.queues.DeliverMessages(f.ctx, "R1", "bob")
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.NotNil(t, again)
	assert.Len(t, f.events.Events(), 1, "empty delivery emits nothing")
	assert.Nil(t, f.queue(t, "R1", "bob"))
}

func TestGetQueueStats(t *testing.T) {
	f := newFixture(t, 10)
	f.seedRoom(t, "R1", "alice", "bob")

	_, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "a1", nil, true)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)
	_, err = f.queues.QueueMessage(f.ctx, "R1", "alice", "a2", nil, false)
	require.NoError(t, err)
	_, err = f.queues.QueueMessage(f.ctx, "R1", "bob", "b1", nil, false)
	require.NoError(t, err)
	_, err = f.queues.QueueMessage(f.ctx, "R2", "carol", "c1", nil, false)
	require.NoError(t, err)

	stats, err := f.queues.GetQueueStats(f.ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQueues)
	assert.Equal(t, 3, stats.TotalMessages)
	require.Len(t, stats.PerPlayer, 2)
	assert.Equal(t, "alice", stats.PerPlayer[0].PlayerName)
	assert.Equal(t, 2, stats.PerPlayer[0].QueueSize)
	assert.Equal(t, 1, stats.PerPlayer[0].CriticalMessages)
	assert.Equal(t, float64(10), stats.PerPlayer[0].OldestMessageAgeSecs)

	_, err = f.queues.GetQueueStats(f.ctx, "missing")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
	assert.ErrorIs(t, err, model.ErrResourceNotFound)
}

func TestCleanupOldMessages_DropsOnlyExpired(t *testing.T) {
	f := newFixture(t, 10)
	f.seedRoom(t, "R1", "alice")

	_, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "old", nil, false)
	require.NoError(t, err)
	f.clock.Advance(35 * time.Minute)
	_, err = f.queues.QueueMessage(f.ctx, "R1", "alice", "recent", nil, false)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	dropped, err := f.queues.CleanupOldMessages(f.ctx, "R1", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"recent"}, eventTypes(f.queue(t, "R1", "alice").Messages))

	_, err = f.queues.CleanupOldMessages(f.ctx, "nope", time.Minute)
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestPrioritizeCriticalMessages_StablePartition(t *testing.T) {
	f := newFixture(t, 10)
	for _, m := range []struct {
		name     string
		critical bool
	}{{"N1", false}, {"C1", true}, {"N2", false}, {"C2", true}} {
		_, err := f.queues.QueueMessage(f.ctx, "R1", "alice", m.name, nil, m.critical)
		require.NoError(t, err)
	}

	require.NoError(t, f.queues.PrioritizeCriticalMessages(f.ctx, "R1", "alice"))
	assert.Equal(t, []string{"C1", "C2", "N1", "N2"}, eventTypes(f.queue(t, "R1", "alice").Messages))

	err := f.queues.PrioritizeCriticalMessages(f.ctx, "R1", "nobody")
	assert.ErrorIs(t, err, model.ErrQueueNotFound)
}

func TestQueueMessage_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, 5)
	f.events.FailWith(errors.New("broker down"))

	added, err := f.queues.QueueMessage(f.ctx, "R1", "alice", "A", nil, false)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, f.queue(t, "R1", "alice").Len())
}

func TestQueueMessage_ConcurrentWritersLoseNothing(t *testing.T) {
	f := newFixture(t, 100)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.queues.QueueMessage(context.Background(), "R1", "alice", "tick", nil, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, f.queue(t, "R1", "alice").Len())
	assert.Zero(t, f.locks.size())
}
