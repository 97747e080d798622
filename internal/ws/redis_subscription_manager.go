package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func roomChannel(roomID string) string { return "room:" + roomID + ":events" }

// roomFrame is what travels over a room channel: an event for every local
// member of the room except, optionally, one connection.
type roomFrame struct {
	Event  string          `json:"event"`
	Except string          `json:"except,omitempty"`
	Body   json.RawMessage `json:"body"`
}

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per "room:<id>:events" channel, no matter how many local
// connections sit in the same room.
//
// Subscribe and Unsubscribe only queue the change; Run applies the queue in
// order on its own goroutine, so a slow Redis dial never stalls the caller.
type subscriptionManager struct {
	rdb *redis.Client
	hub *Hub

	mu      sync.Mutex
	pending []subOp
	wake    chan struct{}

	subs map[string]*subEntry // roomID -> subscription data, owned by Run
}

type subOp struct {
	roomID string
	delta  int // +1 subscribe, -1 unsubscribe
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		wake: make(chan struct{}, 1),
		subs: make(map[string]*subEntry),
	}
}

// Subscribe asks for the room's channel; only the first request per room
// opens a Redis SUB.
func (sm *subscriptionManager) Subscribe(roomID string) { sm.enqueue(subOp{roomID: roomID, delta: 1}) }

// Unsubscribe releases one request; the SUB closes with the last one.
func (sm *subscriptionManager) Unsubscribe(roomID string) {
	sm.enqueue(subOp{roomID: roomID, delta: -1})
}

func (sm *subscriptionManager) enqueue(op subOp) {
	sm.mu.Lock()
	sm.pending = append(sm.pending, op)
	sm.mu.Unlock()

	select {
	case sm.wake <- struct{}{}:
	default:
	}
}

func (sm *subscriptionManager) take() []subOp {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ops := sm.pending
	sm.pending = nil
	return ops
}

// Run applies queued subscription changes until ctx is cancelled, then
// closes every open subscription.
func (sm *subscriptionManager) Run(ctx context.Context) {
	defer func() {
		for roomID, e := range sm.subs {
			e.cancel()
			delete(sm.subs, roomID)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.wake:
			for _, op := range sm.take() {
				sm.apply(ctx, op)
			}
		}
	}
}

func (sm *subscriptionManager) apply(ctx context.Context, op subOp) {
	e, ok := sm.subs[op.roomID]
	if op.delta < 0 {
		if !ok {
			return
		}
		if e.refCnt--; e.refCnt > 0 {
			return
		}
		delete(sm.subs, op.roomID)
		e.cancel()
		return
	}
	if ok {
		e.refCnt++
		return
	}

	// First consumer -> create Redis SUB and fan-out loop.
	subCtx, cancel := context.WithCancel(ctx)
	sm.subs[op.roomID] = &subEntry{refCnt: 1, cancel: cancel}
	ps := sm.rdb.Subscribe(subCtx, roomChannel(op.roomID))

	go func(roomID string) {
		defer ps.Close()

		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				sm.fanOut(roomID, m.Payload)
			}
		}
	}(op.roomID)
}

// fanOut turns
//
//	{"event":"code-update","except":"<conn>","body":{"code":"..."}}
//
// into
//
//	{"event":"code-update","body":{"code":"..."}}
//
// and delivers it to the local members of the room.
func (sm *subscriptionManager) fanOut(roomID, payload string) {
	var f roomFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil || f.Event == "" {
		zap.L().Warn("ws.bad_room_frame", zap.String("room", roomID), zap.Error(err))
		return
	}
	msg, err := json.Marshal(Envelope{Event: f.Event, Body: f.Body})
	if err != nil {
		zap.L().Warn("ws.wrap_event_failed", zap.Error(err))
		return
	}
	sm.hub.deliverRoom(roomID, f.Except, msg)
}
