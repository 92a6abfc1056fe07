package model

import "time"

// DefaultQueueSize bounds the buffer kept for one disconnected player.
const DefaultQueueSize = 50

// QueuedMessage is one outbound event buffered while its player is offline.
type QueuedMessage struct {
	EventType  string         `json:"eventType"`
	Data       map[string]any `json:"data"`
	Timestamp  time.Time      `json:"timestamp"`
	IsCritical bool           `json:"isCritical"`
}

// PlayerQueue holds pending messages for one (room, player) pair in delivery
// order. len(Messages) never exceeds MaxSize.
type PlayerQueue struct {
	RoomID     string          `json:"roomId"`
	PlayerName string          `json:"playerName"`
	Messages   []QueuedMessage `json:"messages"`
	MaxSize    int             `json:"maxSize"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func NewPlayerQueue(roomID, playerName string, maxSize int, now time.Time) *PlayerQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueSize
	}
	return &PlayerQueue{
		RoomID:     roomID,
		PlayerName: playerName,
		Messages:   make([]QueuedMessage, 0),
		MaxSize:    maxSize,
		CreatedAt:  now,
	}
}

// AddMessage appends msg when there is room. A full queue makes space for a
// critical message by evicting its oldest non-critical one; the new message
// still goes to the end. Returns false when msg was dropped.
func (q *PlayerQueue) AddMessage(msg QueuedMessage) bool {
	if len(q.Messages) < q.MaxSize {
		q.Messages = append(q.Messages, msg)
		return true
	}
	if !msg.IsCritical {
		return false
	}
	for i, m := range q.Messages {
		if !m.IsCritical {
			q.Messages = append(q.Messages[:i], q.Messages[i+1:]...)
			q.Messages = append(q.Messages, msg)
			return true
		}
	}
	return false
}

// Drain returns every message in delivery order and empties the queue.
func (q *PlayerQueue) Drain() []QueuedMessage {
	msgs := q.Messages
	q.Messages = make([]QueuedMessage, 0)
	if msgs == nil {
		return []QueuedMessage{}
	}
	return msgs
}

// PrioritizeCritical moves critical messages ahead of the rest, keeping the
// relative order inside each class.
func (q *PlayerQueue) PrioritizeCritical() {
	if len(q.Messages) <= 1 {
		return
	}
	ordered := make([]QueuedMessage, 0, len(q.Messages))
	for _, m := range q.Messages {
		if m.IsCritical {
			ordered = append(ordered, m)
		}
	}
	for _, m := range q.Messages {
		if !m.IsCritical {
			ordered = append(ordered, m)
		}
	}
	q.Messages = ordered
}

// DropOlderThan discards messages stamped before cutoff and returns how many went.
func (q *PlayerQueue) DropOlderThan(cutoff time.Time) int {
	kept := q.Messages[:0]
	dropped := 0
	for _, m := range q.Messages {
		if m.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	q.Messages = kept
	return dropped
}

func (q *PlayerQueue) Len() int {
	return len(q.Messages)
}

func (q *PlayerQueue) CriticalCount() int {
	n := 0
	for _, m := range q.Messages {
		if m.IsCritical {
			n++
		}
	}
	return n
}

// OldestAge is the age of the first message, zero for an empty queue.
func (q *PlayerQueue) OldestAge(now time.Time) time.Duration {
	if len(q.Messages) == 0 {
		return 0
	}
	oldest := q.Messages[0].Timestamp
	for _, m := range q.Messages[1:] {
		if m.Timestamp.Before(oldest) {
			oldest = m.Timestamp
		}
	}
	return now.Sub(oldest)
}

func (q *PlayerQueue) Clone() *PlayerQueue {
	if q == nil {
		return nil
	}
	c := *q
	c.Messages = append(make([]QueuedMessage, 0, len(q.Messages)), q.Messages...)
	return &c
}

// QueueStats summarises every queue in a room.
type QueueStats struct {
	RoomID        string             `json:"roomId"`
	TotalQueues   int                `json:"totalQueues"`
	TotalMessages int                `json:"totalMessages"`
	PerPlayer     []PlayerQueueStats `json:"perPlayer"`
}

type PlayerQueueStats struct {
	PlayerName           string  `json:"playerName"`
	QueueSize            int     `json:"queueSize"`
	CriticalMessages     int     `json:"criticalMessages"`
	OldestMessageAgeSecs float64 `json:"oldestMessageAgeSeconds"`
}
