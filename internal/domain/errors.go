package domain

import "errors"

var (
	ErrOutOfBounds      = errors.New("coordinates out of bounds")
	ErrOccupiedCell     = errors.New("cell is already occupied")
	ErrNoColor          = errors.New("participant has no seat in this game")
	ErrBoardNotReady    = errors.New("board is not initialized")
	ErrInvalidBoardSize = errors.New("invalid board size")
	ErrGameNotFound     = errors.New("game not found")
	ErrViewClosed       = errors.New("game view is closed")
)
