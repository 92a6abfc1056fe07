package model

import (
	"sort"
	"time"
)

const DefaultMaxPlayers = 4

// Room is the aggregate that owns its players and their connection status.
type Room struct {
	ID         string    `json:"id" bson:"_id"`
	HostName   string    `json:"hostName" bson:"hostName"`
	MaxPlayers int       `json:"maxPlayers" bson:"maxPlayers"`
	Players    []*Player `json:"players" bson:"players"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Player returns the player with the given name, or nil.
func (r *Room) Player(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// RemovePlayer drops the player from the room. Seats of the others are kept.
func (r *Room) RemovePlayer(name string) bool {
	for i, p := range r.Players {
		if p.Name == name {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// IsFull reports whether every seat is taken.
func (r *Room) IsFull() bool {
	max := r.MaxPlayers
	if max <= 0 {
		max = DefaultMaxPlayers
	}
	return len(r.Players) >= max
}

// NextSeat returns the lowest free seat index.
func (r *Room) NextSeat() int {
	taken := make(map[int]bool, len(r.Players))
	for _, p := range r.Players {
		taken[p.Seat] = true
	}
	seat := 0
	for taken[seat] {
		seat++
	}
	return seat
}

// PlayerNames lists player names in seat order.
func (r *Room) PlayerNames() []string {
	players := make([]*Player, len(r.Players))
	copy(players, r.Players)
	sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		c.Players[i] = p.Clone()
	}
	return &c
}

// RoomSnapshot is the externally visible room state sent to clients.
type RoomSnapshot struct {
	RoomID     string           `json:"roomId"`
	HostName   string           `json:"hostName"`
	MaxPlayers int              `json:"maxPlayers"`
	Players    []PlayerSnapshot `json:"players"`
}

type PlayerSnapshot struct {
	Name        string `json:"name"`
	Seat        int    `json:"seat"`
	IsBot       bool   `json:"isBot"`
	IsConnected bool   `json:"isConnected"`
	BotTakeover bool   `json:"botTakeover"`
}

func (r *Room) Snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerSnapshot{
			Name:        p.Name,
			Seat:        p.Seat,
			IsBot:       p.IsBot,
			IsConnected: p.IsConnected,
			BotTakeover: p.InBotTakeover(),
		})
	}
	return RoomSnapshot{
		RoomID:     r.ID,
		HostName:   r.HostName,
		MaxPlayers: r.MaxPlayers,
		Players:    players,
	}
}

// RoomDetails is a room together with its game, if one was started.
type RoomDetails struct {
	Room RoomSnapshot  `json:"room"`
	Game *GameSnapshot `json:"game"`
}
