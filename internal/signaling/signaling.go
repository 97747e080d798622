// Package signaling checks the shape of peer-connection negotiation
// payloads before they are relayed. Payloads are forwarded verbatim; only
// the kind tag and the presence of the SDP or candidate line are checked.
package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
)

var (
	ErrUnknownKind    = errors.New("unknown signaling kind")
	ErrEmptyPayload   = errors.New("empty payload")
	ErrNotObject      = errors.New("payload is not an object")
	ErrKindMismatch   = errors.New("session description type does not match")
	ErrEmptySDP       = errors.New("empty sdp")
	ErrEmptyCandidate = errors.New("empty candidate")
)

// Envelope is one relay hop: the sender is implicit, taken from the
// connection the envelope arrived on.
type Envelope struct {
	Kind    Kind
	RoomID  string
	To      string
	Payload json.RawMessage
}

// Validate reports whether raw is a well-formed payload of the given kind.
func Validate(kind Kind, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyPayload
	}
	if trimmed[0] != '{' {
		return ErrNotObject
	}

	switch kind {
	case KindOffer, KindAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(trimmed, &sd); err != nil {
			return fmt.Errorf("decode session description: %w", err)
		}
		want := webrtc.SDPTypeOffer
		if kind == KindAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if sd.Type != want {
			return ErrKindMismatch
		}
		if sd.SDP == "" {
			return ErrEmptySDP
		}
		return nil
	case KindCandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(trimmed, &ci); err != nil {
			return fmt.Errorf("decode ice candidate: %w", err)
		}
		if ci.Candidate == "" {
			return ErrEmptyCandidate
		}
		return nil
	default:
		return ErrUnknownKind
	}
}
