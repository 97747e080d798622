package ws

import "encoding/json"

// Envelope wraps every WS frame in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join-room"
	Body  json.RawMessage `json:"body,omitempty"` // event specific JSON object
}

func encode(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Body: body})
}

// ──────────────────────────── Request DTOs ─────────────────────────

// JoinRoomRequest is the body for "join-room".
type JoinRoomRequest struct {
	RoomID   string `json:"roomId" validate:"required,alphanum,min=4,max=12"`
	UserName string `json:"userName" validate:"required,max=50"`
}

type CodeChangeRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	Code   string `json:"code"`
}

type LanguageChangeRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	Language int    `json:"language" validate:"gt=0"`
}

// RoomRequest is the body of events that only name a room.
type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type RemoveUserRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

// VoiceRequest carries userName for older clients; the server uses the
// member's own name.
type VoiceRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserName string `json:"userName"`
}

// SignalRequest is the body of the three webrtc-* relay events. Exactly one
// of Offer, Answer or Candidate is expected, matching the event.
type SignalRequest struct {
	RoomID    string          `json:"roomId"`
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	FromUser  string          `json:"fromUser,omitempty"`
}

type PeerStateRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	Peer   string `json:"peer" validate:"required"`
	State  string `json:"state" validate:"oneof=new connecting connected disconnected failed closed"`
}

type WhiteboardDrawRequest struct {
	RoomID string  `json:"roomId" validate:"required"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	PrevX  float64 `json:"prevX"`
	PrevY  float64 `json:"prevY"`
	Color  string  `json:"color" validate:"max=32"`
	Size   float64 `json:"size" validate:"gte=0,lte=200"`
}

// Empty body (leave-room).
type EmptyRequest struct{}
