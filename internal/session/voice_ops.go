package session

import (
	"context"

	"go.uber.org/zap"
)

// JoinVoice adds the member to the room's voice set. The newcomer receives
// everyone already present and initiates towards them; those participants
// are told about the newcomer and wait for its offer.
func (c *Coordinator) JoinVoice(ctx context.Context, connID, roomID string) (others []VoiceParticipant, err error) {
	if derr := c.do(ctx, func() { others, err = c.joinVoice(connID, roomID) }); derr != nil {
		return nil, derr
	}
	return others, err
}

func (c *Coordinator) joinVoice(connID, roomID string) ([]VoiceParticipant, error) {
	room, ok := c.store.Room(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	m := room.member(connID)
	if m == nil {
		return nil, ErrNotMember
	}

	others, added := c.voice.Join(roomID, connID, m.Name)
	c.bc.ToConnection(connID, EventVoiceParticipants, VoiceParticipantsPayload{Participants: others})
	if added {
		for _, p := range others {
			c.bc.ToConnection(p.ID, EventUserJoinedVoice, VoiceUserPayload{UserID: connID, UserName: m.Name})
		}
		zap.L().Info("session.voice_join",
			zap.String("room", roomID),
			zap.String("conn", connID),
			zap.Int("participants", len(others)+1),
		)
	}
	return others, nil
}

func (c *Coordinator) LeaveVoice(ctx context.Context, connID, roomID string) error {
	return c.do(ctx, func() { c.leaveVoice(roomID, connID) })
}

func (c *Coordinator) leaveVoice(roomID, connID string) {
	removed, remaining, ok := c.voice.Leave(roomID, connID)
	if !ok {
		return
	}
	for _, p := range remaining {
		c.bc.ToConnection(p.ID, EventUserLeftVoice, VoiceUserPayload{UserID: removed.ID, UserName: removed.Name})
	}
	zap.L().Info("session.voice_leave",
		zap.String("room", roomID),
		zap.String("conn", connID),
		zap.Int("participants", len(remaining)),
	)
}

func (c *Coordinator) VoiceParticipants(ctx context.Context, roomID string) (out []VoiceParticipant, err error) {
	err = c.do(ctx, func() { out = c.voice.Participants(roomID) })
	return out, err
}
