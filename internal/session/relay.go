package session

import (
	"context"
	"fmt"

	"codesync/internal/signaling"

	"go.uber.org/zap"
)

var relayEvents = map[signaling.Kind]string{
	signaling.KindOffer:     EventWebRTCOffer,
	signaling.KindAnswer:    EventWebRTCAnswer,
	signaling.KindCandidate: EventWebRTCICE,
}

// Relay forwards one negotiation message from connID to env.To when both
// are members of env.RoomID. Offers and answers report failures to the
// caller; candidates are dropped silently.
func (c *Coordinator) Relay(ctx context.Context, connID string, env signaling.Envelope) (err error) {
	if derr := c.do(ctx, func() { err = c.relay(connID, env) }); derr != nil {
		return derr
	}
	if env.Kind == signaling.KindCandidate {
		if err != nil {
			zap.L().Debug("session.candidate_dropped", zap.String("conn", connID), zap.Error(err))
		}
		return nil
	}
	return err
}

func (c *Coordinator) relay(connID string, env signaling.Envelope) error {
	event, ok := relayEvents[env.Kind]
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, signaling.ErrUnknownKind)
	}
	if err := signaling.Validate(env.Kind, env.Payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	room, ok := c.store.Room(env.RoomID)
	if !ok {
		return ErrNotMember
	}
	sender := room.member(connID)
	if sender == nil {
		return ErrNotMember
	}
	if env.To == connID || room.member(env.To) == nil {
		return ErrTargetUnavailable
	}

	out := RelayedSignal{From: connID, FromUser: sender.Name}
	switch env.Kind {
	case signaling.KindOffer:
		out.Offer = env.Payload
	case signaling.KindAnswer:
		out.Answer = env.Payload
	case signaling.KindCandidate:
		out.Candidate = env.Payload
	}
	c.bc.ToConnection(env.To, event, out)
	return nil
}
