package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"liaptui/internal/model"
)

// HealthCache keeps recent room health reports in process so polling
// clients do not hit the store on every request. Each room carries a
// generation bumped by Invalidate; a report computed under an older
// generation is never stored.
type HealthCache struct {
	cache *ristretto.Cache
	ttl   time.Duration

	mu   sync.Mutex
	gens map[string]uint64
}

func NewHealthCache(maxEntries int64, ttl time.Duration) (*HealthCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create health cache: %w", err)
	}
	return &HealthCache{
		cache: cache,
		ttl:   ttl,
		gens:  make(map[string]uint64),
	}, nil
}

func (c *HealthCache) Get(roomID string) ([]model.ConnectionHealth, bool) {
	value, ok := c.cache.Get(roomID)
	if !ok {
		return nil, false
	}
	report, ok := value.([]model.ConnectionHealth)
	return report, ok
}

// Generation returns the room's current generation. Read it before
// computing a report and hand it to Set.
func (c *HealthCache) Generation(roomID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[roomID]
}

// Set stores report if no invalidation happened since gen was read, and
// waits for the write to land so the next Get sees it.
func (c *HealthCache) Set(roomID string, gen uint64, report []model.ConnectionHealth) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[roomID] != gen {
		return false
	}
	ok := c.cache.SetWithTTL(roomID, report, 1, c.ttl)
	c.cache.Wait()
	return ok
}

func (c *HealthCache) Invalidate(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[roomID]++
	c.cache.Del(roomID)
}

func (c *HealthCache) Close() {
	c.cache.Close()
}
