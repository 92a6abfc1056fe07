package model

import "github.com/golang-jwt/jwt/v5"

// PlayerClaims are the JWT claims of a room-scoped player session token.
type PlayerClaims struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	jwt.RegisteredClaims
}

// JoinResult is returned when a player takes a seat.
type JoinResult struct {
	RoomID     string       `json:"roomId"`
	PlayerName string       `json:"playerName"`
	Seat       int          `json:"seat"`
	Token      string       `json:"token"`
	Room       RoomSnapshot `json:"room"`
}

// ReconnectResult is what the transport pushes to a returning client: missed
// events first, in queue order, then the current game and room state.
type ReconnectResult struct {
	QueuedMessages []QueuedMessage `json:"queuedMessages"`
	GameState      *GameSnapshot   `json:"gameState"`
	RoomState      RoomSnapshot    `json:"roomState"`

	// PreviousWebsocketID is the session this reconnect replaced, if it was
	// still marked live. The transport closes it.
	PreviousWebsocketID string `json:"-"`
}
