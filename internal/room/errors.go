package room

import "errors"

// Every failure surfaces to the originating connection as a single
// ERROR{message}; these are the messages clients see.
var (
	ErrRoomNotFound  = errors.New("Room not found")
	ErrRoomFull      = errors.New("Room is full")
	ErrWrongPassword = errors.New("Incorrect room password")
	ErrNotCreator    = errors.New("Only the room creator can start the game")
	ErrNotInRoom     = errors.New("You are not in this room")
)
