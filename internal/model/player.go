package model

import "time"

// Player is a seat in a room. OriginalIsBot records whether the seat was a
// bot before any automatic takeover; IsBot != OriginalIsBot means a human is
// temporarily being played by a bot.
type Player struct {
	Name           string     `json:"name" bson:"name"`
	Seat           int        `json:"seat" bson:"seat"`
	IsBot          bool       `json:"isBot" bson:"isBot"`
	OriginalIsBot  bool       `json:"originalIsBot" bson:"originalIsBot"`
	IsConnected    bool       `json:"isConnected" bson:"isConnected"`
	DisconnectTime *time.Time `json:"disconnectTime,omitempty" bson:"disconnectTime,omitempty"`
	JoinedAt       time.Time  `json:"joinedAt" bson:"joinedAt"`
}

// NewPlayer creates a connected player.
func NewPlayer(name string, seat int, isBot bool, now time.Time) *Player {
	return &Player{
		Name:          name,
		Seat:          seat,
		IsBot:         isBot,
		OriginalIsBot: isBot,
		IsConnected:   true,
		JoinedAt:      now,
	}
}

// Disconnect marks the player offline. The first disconnect time is kept on
// repeated calls. It reports whether this call handed the seat to a bot.
func (p *Player) Disconnect(at time.Time, activateBot bool) bool {
	p.IsConnected = false
	if p.DisconnectTime == nil {
		t := at
		p.DisconnectTime = &t
	}
	if activateBot && !p.IsBot {
		p.IsBot = true
		return true
	}
	return false
}

// Reconnect marks the player online and gives the seat back to its original
// controller. It reports whether a bot was switched off.
func (p *Player) Reconnect() bool {
	wasBot := p.IsBot
	p.IsConnected = true
	p.DisconnectTime = nil
	p.IsBot = p.OriginalIsBot
	return wasBot != p.IsBot
}

// InBotTakeover reports whether a human seat is currently bot controlled.
func (p *Player) InBotTakeover() bool {
	return p.IsBot != p.OriginalIsBot
}

// DisconnectedFor returns how long the player has been offline, zero when connected.
func (p *Player) DisconnectedFor(now time.Time) time.Duration {
	if p.DisconnectTime == nil {
		return 0
	}
	return now.Sub(*p.DisconnectTime)
}

func (p *Player) Clone() *Player {
	c := *p
	if p.DisconnectTime != nil {
		t := *p.DisconnectTime
		c.DisconnectTime = &t
	}
	return &c
}
