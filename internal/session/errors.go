package session

import "errors"

var (
	ErrStopped      = errors.New("session coordinator stopped")
	ErrNotConnected = errors.New("connection not registered")
	ErrInvalidName  = errors.New("display name required")

	ErrRoomNotFound     = errors.New("room not found")
	ErrNotMember        = errors.New("not a member of this room")
	ErrNotCreator       = errors.New("only the room creator can do that")
	ErrCannotRemoveSelf = errors.New("cannot remove yourself or another creator")
	ErrMemberNotFound   = errors.New("user not found in room")

	ErrInvalidPayload    = errors.New("invalid signaling payload")
	ErrTargetUnavailable = errors.New("target unavailable")
)
