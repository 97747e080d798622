package ws

import (
	"errors"
	"sync"

	"codesync/internal/session"

	"go.uber.org/zap"
)

// Hub delivers frames to the connections of this instance, by connection
// id or by room. On its own it is the single-instance Broadcaster.
type Hub struct {
	conns sync.Map // connID -> *clientConn
	rooms sync.Map // roomID -> *room
}

var _ session.Broadcaster = (*Hub)(nil)

func NewHub() *Hub { return &Hub{} }

func (h *Hub) register(c *clientConn) { h.conns.Store(c.id, c) }

func (h *Hub) unregister(c *clientConn) { h.conns.CompareAndDelete(c.id, c) }

func (h *Hub) Attach(roomID, connID string) { h.attach(roomID, connID) }

func (h *Hub) Detach(roomID, connID string) { h.detach(roomID, connID) }

// attach reports whether connID was newly added to the room.
func (h *Hub) attach(roomID, connID string) bool {
	for {
		v, _ := h.rooms.LoadOrStore(roomID, newRoom())
		added, ok := v.(*room).add(connID)
		if ok {
			return added
		}
		// Lost a race with the last detach; drop the stale entry.
		h.rooms.CompareAndDelete(roomID, v)
	}
}

func (h *Hub) detach(roomID, connID string) bool {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return false
	}
	removed, empty := v.(*room).remove(connID)
	if empty {
		h.rooms.CompareAndDelete(roomID, v)
	}
	return removed
}

func (h *Hub) ToRoom(roomID, event string, payload any) {
	h.toRoom(roomID, "", event, payload)
}

func (h *Hub) ToRoomExcept(roomID, senderID, event string, payload any) {
	h.toRoom(roomID, senderID, event, payload)
}

func (h *Hub) toRoom(roomID, except, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliverRoom(roomID, except, msg)
}

func (h *Hub) ToConnection(connID, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return
	}
	h.send(connID, msg)
}

// deliverRoom hands an encoded frame to every local member of the room
// except the one named by except.
func (h *Hub) deliverRoom(roomID, except string, msg []byte) {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return
	}
	for _, id := range v.(*room).snapshot() {
		if id == except {
			continue
		}
		h.send(id, msg)
	}
}

func (h *Hub) send(connID string, msg []byte) {
	v, ok := h.conns.Load(connID)
	if !ok {
		return
	}
	if err := v.(*clientConn).trySend(msg); err != nil {
		if errors.Is(err, ErrBackpressure) {
			zap.L().Warn("ws.drop", zap.String("conn", connID), zap.Error(err))
		}
	}
}
