package session

import (
	"context"

	"go.uber.org/zap"
)

// Media connection states reported by clients.
const (
	PeerConnected = "connected"
	PeerFailed    = "failed"
)

type peerKey struct{ from, peer string }

type peerTimer struct {
	roomID string
	stop   func() bool
}

// PeerState records a client's view of its media connection to peer. A
// failed link gets NegotiationGrace to recover before both ends are told to
// renegotiate from scratch.
func (c *Coordinator) PeerState(ctx context.Context, connID, roomID, peer, state string) error {
	return c.do(ctx, func() {
		room, ok := c.store.Room(roomID)
		if !ok || room.member(connID) == nil || room.member(peer) == nil || peer == connID {
			return
		}
		key := peerKey{from: connID, peer: peer}
		switch state {
		case PeerFailed:
			if _, armed := c.peers[key]; armed {
				return
			}
			t := &peerTimer{roomID: roomID}
			t.stop = c.after(c.grace, func() {
				c.post(func() { c.peerExpired(key, t) })
			})
			c.peers[key] = t
			zap.L().Debug("session.peer_failed", zap.String("conn", connID), zap.String("peer", peer))
		case PeerConnected:
			c.disarm(key)
		}
	})
}

func (c *Coordinator) peerExpired(key peerKey, t *peerTimer) {
	if c.peers[key] != t {
		return
	}
	delete(c.peers, key)

	room, ok := c.store.Room(t.roomID)
	if !ok {
		return
	}
	from, peer := room.member(key.from), room.member(key.peer)
	if from == nil || peer == nil {
		return
	}
	c.bc.ToConnection(from.ID, EventWebRTCPeerReset, PeerResetPayload{Peer: peer.ID, PeerName: peer.Name})
	c.bc.ToConnection(peer.ID, EventWebRTCPeerReset, PeerResetPayload{Peer: from.ID, PeerName: from.Name})
	zap.L().Info("session.peer_reset",
		zap.String("room", t.roomID),
		zap.String("conn", from.ID),
		zap.String("peer", peer.ID),
	)
}

func (c *Coordinator) disarm(key peerKey) {
	if t, ok := c.peers[key]; ok {
		t.stop()
		delete(c.peers, key)
	}
}

// disarmPeers cancels every timer connID takes part in, on either end.
func (c *Coordinator) disarmPeers(connID string) {
	for key := range c.peers {
		if key.from == connID || key.peer == connID {
			c.disarm(key)
		}
	}
}
