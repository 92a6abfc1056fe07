package model

import "time"

type GameStatus string

const (
	GameWaiting    GameStatus = "waiting"
	GameInProgress GameStatus = "in_progress"
	GameFinished   GameStatus = "finished"
)

// Game phases exposed to clients. Rule evaluation lives outside this service.
const (
	PhasePreparation = "preparation"
	PhaseTurn        = "turn"
	PhaseScoring     = "scoring"
)

// Game is the per-room authority for whose turn it is.
type Game struct {
	RoomID        string     `json:"roomId" bson:"roomId"`
	Status        GameStatus `json:"status" bson:"status"`
	Phase         string     `json:"phase" bson:"phase"`
	RoundNumber   int        `json:"roundNumber" bson:"roundNumber"`
	TurnNumber    int        `json:"turnNumber" bson:"turnNumber"`
	CurrentPlayer string     `json:"currentPlayer" bson:"currentPlayer"`
	TurnOrder     []string   `json:"turnOrder" bson:"turnOrder"`
	StartedAt     *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

func NewGame(roomID string, now time.Time) *Game {
	return &Game{
		RoomID:    roomID,
		Status:    GameWaiting,
		UpdatedAt: now,
	}
}

// Start moves a waiting game into its first round.
func (g *Game) Start(order []string, at time.Time) {
	g.Status = GameInProgress
	g.Phase = PhasePreparation
	g.RoundNumber = 1
	g.TurnNumber = 0
	g.TurnOrder = append([]string(nil), order...)
	if len(order) > 0 {
		g.CurrentPlayer = order[0]
	}
	started := at
	g.StartedAt = &started
	g.UpdatedAt = at
}

// AdvanceTurn passes the turn to the next seat and returns the new current
// player. A full cycle through the order starts a new round.
func (g *Game) AdvanceTurn(at time.Time) string {
	if len(g.TurnOrder) == 0 {
		return ""
	}
	idx := 0
	for i, name := range g.TurnOrder {
		if name == g.CurrentPlayer {
			idx = i
			break
		}
	}
	next := (idx + 1) % len(g.TurnOrder)
	if next == 0 {
		g.RoundNumber++
	}
	g.TurnNumber++
	g.Phase = PhaseTurn
	g.CurrentPlayer = g.TurnOrder[next]
	g.UpdatedAt = at
	return g.CurrentPlayer
}

// RemoveFromOrder takes a permanently removed player out of the rotation.
func (g *Game) RemoveFromOrder(name string, at time.Time) {
	for i, n := range g.TurnOrder {
		if n != name {
			continue
		}
		if g.CurrentPlayer == name && len(g.TurnOrder) > 1 {
			g.CurrentPlayer = g.TurnOrder[(i+1)%len(g.TurnOrder)]
		}
		g.TurnOrder = append(g.TurnOrder[:i], g.TurnOrder[i+1:]...)
		if len(g.TurnOrder) == 0 {
			g.CurrentPlayer = ""
		}
		g.UpdatedAt = at
		return
	}
}

func (g *Game) Finish(at time.Time) {
	g.Status = GameFinished
	g.Phase = PhaseScoring
	finished := at
	g.FinishedAt = &finished
	g.UpdatedAt = at
}

func (g *Game) IsFinished() bool {
	return g.Status == GameFinished
}

// IsActive reports whether a game exists and has not finished. Messages are
// only buffered for absent players while this holds.
func (g *Game) IsActive() bool {
	return g != nil && !g.IsFinished()
}

func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.TurnOrder = append([]string(nil), g.TurnOrder...)
	if g.StartedAt != nil {
		t := *g.StartedAt
		c.StartedAt = &t
	}
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// GameSnapshot is the catch-up state sent to a reconnecting client.
type GameSnapshot struct {
	RoomID        string     `json:"roomId"`
	Status        GameStatus `json:"status"`
	Phase         string     `json:"phase"`
	RoundNumber   int        `json:"roundNumber"`
	TurnNumber    int        `json:"turnNumber"`
	CurrentPlayer string     `json:"currentPlayer"`
	TurnOrder     []string   `json:"turnOrder"`
}

func (g *Game) Snapshot() *GameSnapshot {
	if g == nil {
		return nil
	}
	return &GameSnapshot{
		RoomID:        g.RoomID,
		Status:        g.Status,
		Phase:         g.Phase,
		RoundNumber:   g.RoundNumber,
		TurnNumber:    g.TurnNumber,
		CurrentPlayer: g.CurrentPlayer,
		TurnOrder:     append([]string(nil), g.TurnOrder...),
	}
}
