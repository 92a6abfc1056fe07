package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liaptui/internal/model"
)

func TestHealthCache_SetGetInvalidate(t *testing.T) {
	c, err := NewHealthCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("r1")
	assert.False(t, ok)

	report := []model.ConnectionHealth{{PlayerName: "alice", Health: model.HealthHealthy}}
	assert.True(t, c.Set("r1", c.Generation("r1"), report))

	got, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, report, got)

	c.Invalidate("r1")
	_, ok = c.Get("r1")
	assert.False(t, ok)
}

func TestHealthCache_ZeroTTLDisablesCaching(t *testing.T) {
	c, err := NewHealthCache(100, 0)
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Set("r1", c.Generation("r1"), []model.ConnectionHealth{{PlayerName: "alice"}}))
	_, ok := c.Get("r1")
	assert.False(t, ok)
}

func TestHealthCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c, err := NewHealthCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	gen := c.Generation("r1")
	c.Invalidate("r1")
	assert.False(t, c.Set("r1", gen, []model.ConnectionHealth{{PlayerName: "alice"}}))
	_, ok := c.Get("r1")
	assert.False(t, ok)

	assert.True(t, c.Set("r1", c.Generation("r1"), []model.ConnectionHealth{{PlayerName: "bob"}}))
	got, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "bob", got[0].PlayerName)

	assert.True(t, c.Set("r2", gen, []model.ConnectionHealth{{PlayerName: "carol"}}), "other rooms keep their own generation")
}
