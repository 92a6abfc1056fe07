package service

import "sync"

// RoomLocks serializes mutations per room. Entries are reference counted so
// idle rooms do not accumulate.
type RoomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewRoomLocks() *RoomLocks {
	return &RoomLocks{locks: make(map[string]*roomLock)}
}

// Lock blocks until roomID is free and returns the matching unlock.
func (l *RoomLocks) Lock(roomID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}

func (l *RoomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
