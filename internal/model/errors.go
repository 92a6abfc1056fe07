package model

import (
	"errors"
	"fmt"
)

// ErrResourceNotFound is the kind shared by every lookup failure. Callers
// match it with errors.Is to map to "not found" responses.
var ErrResourceNotFound = errors.New("resource not found")

var (
	ErrRoomNotFound   = fmt.Errorf("room %w", ErrResourceNotFound)
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrResourceNotFound)
	ErrQueueNotFound  = fmt.Errorf("message queue %w", ErrResourceNotFound)
)

var (
	ErrRoomFull           = errors.New("room is full")
	ErrNameTaken          = errors.New("player name already taken")
	ErrInvalidName        = errors.New("player name must be 1-20 characters")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameNotInProgress  = errors.New("no game in progress")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
)
