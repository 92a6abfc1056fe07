package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"liaptui/internal/model"
	"liaptui/internal/repository"
)

// MessageQueueCache stores offline player queues in Redis, one hash per room
// keyed by player name. Redis drops the hash with its last queue.
type MessageQueueCache interface {
	repository.QueueStore
}

type messageQueueCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMessageQueueCache creates a queue cache. A zero ttl keeps the 24h default.
func NewMessageQueueCache(client *redis.Client, ttl time.Duration) MessageQueueCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &messageQueueCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *messageQueueCache) key(roomID string) string {
	return fmt.Sprintf("room:%s:mq", roomID)
}

func (c *messageQueueCache) Get(ctx context.Context, roomID, playerName string) (*model.PlayerQueue, error) {
	data, err := c.client.HGet(ctx, c.key(roomID), playerName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q model.PlayerQueue
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, fmt.Errorf("decode queue %s/%s: %w", roomID, playerName, err)
	}
	return &q, nil
}

func (c *messageQueueCache) ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerQueue, error) {
	data, err := c.client.HGetAll(ctx, c.key(roomID)).Result()
	if err != nil {
		return nil, err
	}
	queues := make([]*model.PlayerQueue, 0, len(data))
	for name, raw := range data {
		var q model.PlayerQueue
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode queue %s/%s: %w", roomID, name, err)
		}
		queues = append(queues, &q)
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i].PlayerName < queues[j].PlayerName })
	return queues, nil
}

// Apply writes the batch in one MULTI/EXEC so readers never see half of it.
func (c *messageQueueCache) Apply(ctx context.Context, writes []repository.QueueWrite) error {
	if len(writes) == 0 {
		return nil
	}
	encoded := make([][]byte, len(writes))
	for i, w := range writes {
		if w.Queue == nil {
			continue
		}
		data, err := json.Marshal(w.Queue)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		touched := make(map[string]bool)
		for i, w := range writes {
			key := c.key(w.RoomID)
			if w.Queue == nil {
				pipe.HDel(ctx, key, w.PlayerName)
				continue
			}
			pipe.HSet(ctx, key, w.PlayerName, encoded[i])
			touched[key] = true
		}
		for key := range touched {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	return err
}
