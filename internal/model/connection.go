package model

import "time"

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

type HealthStatus string

const (
	HealthHealthy      HealthStatus = "healthy"
	HealthStale        HealthStatus = "stale"
	HealthDisconnected HealthStatus = "disconnected"
)

// DefaultStaleAfter is how long a connected session may stay silent before
// it is reported as stale.
const DefaultStaleAfter = 30 * time.Second

// PlayerConnection binds one player in one room to its transport session.
// WebsocketID is replaced on every reconnect.
type PlayerConnection struct {
	RoomID          string           `json:"roomId" bson:"roomId"`
	PlayerName      string           `json:"playerName" bson:"playerName"`
	Status          ConnectionStatus `json:"status" bson:"status"`
	WebsocketID     string           `json:"websocketId" bson:"websocketId"`
	DisconnectedAt  *time.Time       `json:"disconnectedAt,omitempty" bson:"disconnectedAt,omitempty"`
	ReconnectedAt   *time.Time       `json:"reconnectedAt,omitempty" bson:"reconnectedAt,omitempty"`
	ConnectionCount uint32           `json:"connectionCount" bson:"connectionCount"`
	LastActivity    *time.Time       `json:"lastActivity,omitempty" bson:"lastActivity,omitempty"`
}

func (c *PlayerConnection) IsConnected() bool {
	return c.Status == StatusConnected
}

// MarkConnected binds a new session. The first bind counts as connection one.
func (c *PlayerConnection) MarkConnected(websocketID string, at time.Time) {
	if c.ConnectionCount > 0 {
		reconnected := at
		c.ReconnectedAt = &reconnected
	}
	c.Status = StatusConnected
	c.WebsocketID = websocketID
	c.ConnectionCount++
	c.Touch(at)
}

func (c *PlayerConnection) MarkDisconnected(at time.Time) {
	c.Status = StatusDisconnected
	disconnected := at
	c.DisconnectedAt = &disconnected
}

func (c *PlayerConnection) Touch(at time.Time) {
	t := at
	c.LastActivity = &t
}

// Health classifies the connection for liveness sweeps.
func (c *PlayerConnection) Health(now time.Time, staleAfter time.Duration) HealthStatus {
	if !c.IsConnected() {
		return HealthDisconnected
	}
	if c.LastActivity != nil && now.Sub(*c.LastActivity) > staleAfter {
		return HealthStale
	}
	return HealthHealthy
}

func (c *PlayerConnection) Clone() *PlayerConnection {
	if c == nil {
		return nil
	}
	cp := *c
	cp.DisconnectedAt = cloneTime(c.DisconnectedAt)
	cp.ReconnectedAt = cloneTime(c.ReconnectedAt)
	cp.LastActivity = cloneTime(c.LastActivity)
	return &cp
}

// ConnectionHealth is one row of a room health report.
type ConnectionHealth struct {
	PlayerName   string           `json:"playerName"`
	Status       ConnectionStatus `json:"status"`
	WebsocketID  string           `json:"websocketId"`
	LastActivity *time.Time       `json:"lastActivity,omitempty"`
	Health       HealthStatus     `json:"health"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
