package ws

import (
	"context"
	"encoding/json"
	"time"

	"codesync/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type outboundFrame struct {
	channel string
	payload string
}

// RedisBroadcaster routes room deliveries through Redis pub/sub, so every
// room's traffic is observable on "room:<id>:events" by other processes.
// Room state lives in one instance's coordinator; with several instances
// the WsServer must be given a Placement so a room is never live on two of
// them. Unicasts stay local: a connection id only ever lives on the
// instance that issued it.
//
// Publishing and (un)subscribing happen on Run's goroutines in submission
// order; the coordinator only ever enqueues.
type RedisBroadcaster struct {
	hub    *Hub
	rdb    *redis.Client
	subs   *subscriptionManager
	outbox chan outboundFrame
}

var _ session.Broadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(hub *Hub, rdb *redis.Client, buffer int) *RedisBroadcaster {
	if buffer <= 0 {
		buffer = 1024
	}
	return &RedisBroadcaster{
		hub:    hub,
		rdb:    rdb,
		subs:   newSubscriptionManager(rdb, hub),
		outbox: make(chan outboundFrame, buffer),
	}
}

// Run publishes queued frames and applies subscription changes until ctx
// is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	go b.subs.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-b.outbox:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := b.publish(pctx, f); err != nil {
				zap.L().Warn("ws.publish", zap.String("channel", f.channel), zap.Error(err))
			}
			cancel()
		}
	}
}

func (b *RedisBroadcaster) publish(ctx context.Context, f outboundFrame) error {
	return b.rdb.Publish(ctx, f.channel, f.payload).Err()
}

func (b *RedisBroadcaster) Attach(roomID, connID string) {
	if b.hub.attach(roomID, connID) {
		b.subs.Subscribe(roomID)
	}
}

func (b *RedisBroadcaster) Detach(roomID, connID string) {
	if b.hub.detach(roomID, connID) {
		b.subs.Unsubscribe(roomID)
	}
}

func (b *RedisBroadcaster) ToRoom(roomID, event string, payload any) {
	b.enqueue(roomID, "", event, payload)
}

func (b *RedisBroadcaster) ToRoomExcept(roomID, senderID, event string, payload any) {
	b.enqueue(roomID, senderID, event, payload)
}

func (b *RedisBroadcaster) ToConnection(connID, event string, payload any) {
	b.hub.ToConnection(connID, event, payload)
}

func (b *RedisBroadcaster) enqueue(roomID, except, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := json.Marshal(roomFrame{Event: event, Except: except, Body: body})
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case b.outbox <- outboundFrame{channel: roomChannel(roomID), payload: string(frame)}:
	default:
		zap.L().Warn("ws.outbox_full", zap.String("room", roomID), zap.String("event", event))
	}
}
