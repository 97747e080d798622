package session

import "encoding/json"

// Client to server events.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventCodeChange      = "code-change"
	EventLanguageChange  = "language-change"
	EventCloseRoom       = "close-room"
	EventRemoveUser      = "remove-user"
	EventJoinVoiceChat   = "join-voice-chat"
	EventLeaveVoiceChat  = "leave-voice-chat"
	EventWebRTCOffer     = "webrtc-offer"
	EventWebRTCAnswer    = "webrtc-answer"
	EventWebRTCICE       = "webrtc-ice-candidate"
	EventWebRTCPeerState = "webrtc-peer-state"
	EventWhiteboardDraw  = "whiteboard-draw"
	EventWhiteboardClear = "whiteboard-clear"
)

// Server to client events.
const (
	EventSession           = "session"
	EventRoomState         = "room-state"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventUserRemoved       = "user-removed"
	EventCreatorChanged    = "creator-changed"
	EventCodeUpdate        = "code-update"
	EventLanguageUpdate    = "language-update"
	EventRoomClosed        = "room-closed"
	EventRemovedFromRoom   = "removed-from-room"
	EventVoiceParticipants = "voice-chat-participants"
	EventUserJoinedVoice   = "user-joined-voice"
	EventUserLeftVoice     = "user-left-voice"
	EventWebRTCError       = "webrtc-error"
	EventWebRTCPeerReset   = "webrtc-peer-reset"
	EventErrorMessage      = "error-message"
)

type SessionPayload struct {
	ConnectionID string `json:"connectionId"`
}

type RoomStatePayload struct {
	RoomID   string     `json:"roomId"`
	Code     string     `json:"code"`
	Language int        `json:"language"`
	Users    []UserView `json:"users"`
}

type UserJoinedPayload struct {
	User  Member   `json:"user"`
	Users []Member `json:"users"`
}

type UserLeftPayload struct {
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	Users    []Member `json:"users"`
}

type UserRemovedPayload struct {
	UserID    string   `json:"userId"`
	UserName  string   `json:"userName"`
	RemovedBy string   `json:"removedBy"`
	Users     []Member `json:"users"`
}

type CreatorChangedPayload struct {
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	Users    []Member `json:"users"`
}

type CodeUpdatePayload struct {
	Code string `json:"code"`
}

type LanguageUpdatePayload struct {
	Language int `json:"language"`
}

type RoomClosedPayload struct {
	Message  string `json:"message"`
	ClosedBy string `json:"closedBy"`
}

type RemovedFromRoomPayload struct {
	RoomID    string `json:"roomId"`
	RemovedBy string `json:"removedBy"`
	Message   string `json:"message"`
}

type VoiceParticipantsPayload struct {
	Participants []VoiceParticipant `json:"participants"`
}

type VoiceUserPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// RelayedSignal carries exactly one of Offer, Answer or Candidate, verbatim.
type RelayedSignal struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	From      string          `json:"from"`
	FromUser  string          `json:"fromUser,omitempty"`
}

type SignalErrorPayload struct {
	Type    string `json:"type"`
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

type PeerResetPayload struct {
	Peer     string `json:"peer"`
	PeerName string `json:"peerName,omitempty"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Stroke is one whiteboard segment.
type Stroke struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	PrevX float64 `json:"prevX"`
	PrevY float64 `json:"prevY"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}
