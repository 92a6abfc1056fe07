package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayer_DisconnectReconnectRoundTrip(t *testing.T) {
	p := NewPlayer("bob", 1, false, t0)

	assert.True(t, p.Disconnect(t0, true))
	assert.True(t, p.IsBot)
	assert.False(t, p.OriginalIsBot)
	assert.False(t, p.IsConnected)
	assert.True(t, p.InBotTakeover())

	assert.True(t, p.Reconnect())
	assert.False(t, p.IsBot)
	assert.True(t, p.IsConnected)
	assert.Nil(t, p.DisconnectTime)
	assert.False(t, p.InBotTakeover())
}

func TestPlayer_RepeatedDisconnectKeepsFirstTime(t *testing.T) {
	p := NewPlayer("bob", 1, false, t0)
	p.Disconnect(t0, true)

	assert.False(t, p.Disconnect(t0.Add(time.Minute), true))
	assert.Equal(t, t0, *p.DisconnectTime)
	assert.Equal(t, 3*time.Minute, p.DisconnectedFor(t0.Add(3*time.Minute)))
}

func TestPlayer_BotSeatStaysBot(t *testing.T) {
	p := NewPlayer("robo", 2, true, t0)
	assert.False(t, p.Disconnect(t0, true))
	assert.False(t, p.Reconnect())
	assert.True(t, p.IsBot)
}

func TestPlayer_DisconnectWithoutBot(t *testing.T) {
	p := NewPlayer("alice", 0, false, t0)
	assert.False(t, p.Disconnect(t0, false))
	assert.False(t, p.IsBot)
	assert.False(t, p.Reconnect())
	assert.Zero(t, p.DisconnectedFor(t0))
}

func TestRoom_SeatsAndSnapshot(t *testing.T) {
	r := &Room{ID: "R1", HostName: "alice", MaxPlayers: 3}
	r.Players = append(r.Players, NewPlayer("alice", 0, false, t0), NewPlayer("carol", 2, false, t0))
	assert.Equal(t, 1, r.NextSeat())
	assert.False(t, r.IsFull())

	r.Players = append(r.Players, NewPlayer("bob", r.NextSeat(), false, t0))
	assert.True(t, r.IsFull())
	assert.Equal(t, []string{"alice", "bob", "carol"}, r.PlayerNames())

	c := r.Clone()
	c.Player("bob").Disconnect(t0, true)
	assert.True(t, r.Player("bob").IsConnected)

	assert.True(t, r.RemovePlayer("carol"))
	assert.False(t, r.RemovePlayer("carol"))
	snap := r.Snapshot()
	assert.Equal(t, "R1", snap.RoomID)
	assert.Len(t, snap.Players, 2)
	assert.False(t, snap.Players[1].BotTakeover)

	r.Player("bob").Disconnect(t0, true)
	snap = r.Snapshot()
	assert.True(t, snap.Players[1].IsBot)
	assert.True(t, snap.Players[1].BotTakeover)
}

func TestGame_TurnsAndRounds(t *testing.T) {
	var none *Game
	assert.False(t, none.IsActive())
	assert.Nil(t, none.Snapshot())

	g := NewGame("R1", t0)
	g.Start([]string{"a", "b", "c"}, t0)
	assert.True(t, g.IsActive())
	assert.Equal(t, "a", g.CurrentPlayer)
	assert.Equal(t, 1, g.RoundNumber)

	assert.Equal(t, "b", g.AdvanceTurn(t0))
	assert.Equal(t, "c", g.AdvanceTurn(t0))
	assert.Equal(t, "a", g.AdvanceTurn(t0))
	assert.Equal(t, 2, g.RoundNumber)

	g.RemoveFromOrder("a", t0)
	assert.Equal(t, "b", g.CurrentPlayer)
	assert.Equal(t, []string{"b", "c"}, g.TurnOrder)

	g.Finish(t0)
	assert.False(t, g.IsActive())
	assert.Equal(t, GameFinished, g.Snapshot().Status)
}

func TestPlayerConnection_Health(t *testing.T) {
	c := &PlayerConnection{RoomID: "R1", PlayerName: "alice"}
	c.MarkConnected("ws-1", t0)
	assert.Equal(t, uint32(1), c.ConnectionCount)
	assert.Nil(t, c.ReconnectedAt)

	assert.Equal(t, HealthHealthy, c.Health(t0.Add(30*time.Second), DefaultStaleAfter))
	assert.Equal(t, HealthStale, c.Health(t0.Add(31*time.Second), DefaultStaleAfter))

	c.MarkDisconnected(t0)
	assert.Equal(t, HealthDisconnected, c.Health(t0, DefaultStaleAfter))

	c.MarkConnected("ws-2", t0.Add(time.Minute))
	assert.Equal(t, uint32(2), c.ConnectionCount)
	assert.NotNil(t, c.ReconnectedAt)
	assert.Equal(t, "ws-2", c.WebsocketID)
}
