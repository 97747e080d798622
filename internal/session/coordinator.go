// Package session owns the authoritative in-memory state of collaborative
// rooms: connections, rooms and their members, voice sub-sessions and the
// signaling relay.
//
// All state is confined to a single event loop (Coordinator.Run). Every
// public operation is submitted to that loop and runs to completion before
// the next one starts, so none of the tables below need locks.
package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TimerFunc schedules f after d and returns a function that cancels it.
type TimerFunc func(d time.Duration, f func()) (stop func() bool)

func realTimer(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Config struct {
	DefaultCode      string
	DefaultLanguage  int
	NegotiationGrace time.Duration

	// Now and AfterFunc default to the wall clock.
	Now       func() time.Time
	AfterFunc TimerFunc
}

type Coordinator struct {
	reg   *Registry
	store *Store
	voice *VoiceTracker
	bc    Broadcaster

	now   func() time.Time
	after TimerFunc
	grace time.Duration
	peers map[peerKey]*peerTimer

	cmds chan func()
	done chan struct{}
}

func NewCoordinator(bc Broadcaster, cfg Config) *Coordinator {
	c := &Coordinator{
		reg:   NewRegistry(),
		store: NewStore(cfg.DefaultCode, cfg.DefaultLanguage),
		voice: NewVoiceTracker(),
		bc:    bc,
		now:   cfg.Now,
		after: cfg.AfterFunc,
		grace: cfg.NegotiationGrace,
		peers: make(map[peerKey]*peerTimer),
		cmds:  make(chan func()),
		done:  make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.after == nil {
		c.after = realTimer
	}
	if c.grace <= 0 {
		c.grace = 10 * time.Second
	}
	return c
}

// Run processes submitted operations until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.cmds:
			c.exec(fn)
		}
	}
}

func (c *Coordinator) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("session.panic", zap.Any("panic", r))
		}
	}()
	fn()
}

// do runs fn on the loop and waits for it to finish.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case c.cmds <- func() { defer close(finished); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	<-finished
	return nil
}

// post schedules fn without waiting; used by timer callbacks.
func (c *Coordinator) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// ─────────────────────────────── connections ────────────────────────────────

func (c *Coordinator) Connect(ctx context.Context, connID string) error {
	return c.do(ctx, func() { c.reg.Register(connID) })
}

// Resolve reports the connection's current room, name and creator flag.
func (c *Coordinator) Resolve(ctx context.Context, connID string) (conn Connection, ok bool, err error) {
	err = c.do(ctx, func() { conn, ok = c.reg.Resolve(connID) })
	return conn, ok, err
}

// Disconnect tears down everything the connection holds and forgets it.
// Running it twice is harmless.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	return c.do(ctx, func() {
		conn := c.reg.get(connID)
		if conn == nil {
			return
		}
		c.detach(conn)
		c.reg.Forget(connID)
		zap.L().Debug("session.disconnect", zap.String("conn", connID))
	})
}

// Leave tears down room membership but keeps the connection registered.
func (c *Coordinator) Leave(ctx context.Context, connID string) error {
	return c.do(ctx, func() {
		if conn := c.reg.get(connID); conn != nil {
			c.detach(conn)
		}
	})
}

// ─────────────────────────────── membership ─────────────────────────────────

type JoinResult struct {
	Room      RoomStatePayload
	IsCreator bool
	Created   bool
}

// Join puts the connection into roomID, creating the room lazily. The
// connection that creates the room becomes its creator; nothing else does.
func (c *Coordinator) Join(ctx context.Context, connID, roomID, name string) (res JoinResult, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return res, ErrInvalidName
	}
	if derr := c.do(ctx, func() { res, err = c.join(connID, roomID, name) }); derr != nil {
		return res, derr
	}
	return res, err
}

func (c *Coordinator) join(connID, roomID, name string) (JoinResult, error) {
	conn := c.reg.get(connID)
	if conn == nil {
		return JoinResult{}, ErrNotConnected
	}

	if conn.RoomID == roomID {
		if room, ok := c.store.Room(roomID); ok {
			if m := room.member(connID); m != nil {
				state := c.roomState(room, connID)
				c.bc.ToConnection(connID, EventRoomState, state)
				return JoinResult{Room: state, IsCreator: m.IsCreator}, nil
			}
		}
	}
	if conn.RoomID != "" {
		c.detach(conn)
	}

	now := c.now()
	room, ok := c.store.Room(roomID)
	created := !ok
	if created {
		room = c.store.create(roomID, now)
	}
	m := &Member{
		ID:        connID,
		Name:      name,
		Color:     ColorFor(name),
		IsCreator: created,
		JoinedAt:  now,
	}
	room.add(m)
	c.reg.bind(connID, roomID, name, created)
	c.bc.Attach(roomID, connID)

	state := c.roomState(room, connID)
	c.bc.ToConnection(connID, EventRoomState, state)
	c.bc.ToRoomExcept(roomID, connID, EventUserJoined, UserJoinedPayload{
		User:  *m,
		Users: room.roster(),
	})

	zap.L().Info("session.join",
		zap.String("room", roomID),
		zap.String("conn", connID),
		zap.String("name", name),
		zap.Bool("creator", created),
		zap.Int("members", room.Len()),
	)
	return JoinResult{Room: state, IsCreator: created, Created: created}, nil
}

func (c *Coordinator) roomState(room *Room, connID string) RoomStatePayload {
	return RoomStatePayload{
		RoomID:   room.ID,
		Code:     room.Code,
		Language: room.Language,
		Users:    room.viewFor(connID),
	}
}

// detach removes conn from its room, hands over the creator flag when
// needed and deletes the room once it is empty.
func (c *Coordinator) detach(conn *Connection) {
	roomID := conn.RoomID
	if roomID == "" {
		return
	}
	c.leaveVoice(roomID, conn.ID)
	c.disarmPeers(conn.ID)
	c.reg.unbind(conn.ID)
	c.bc.Detach(roomID, conn.ID)

	room, ok := c.store.Room(roomID)
	if !ok {
		return
	}
	m := room.remove(conn.ID)
	if m == nil {
		return
	}
	if room.Len() == 0 {
		c.store.delete(roomID)
		c.voice.Drop(roomID)
		zap.L().Info("session.room_deleted", zap.String("room", roomID), zap.String("reason", "empty"))
		return
	}

	var heir *Member
	if m.IsCreator {
		heir = room.promoteEarliest()
		c.reg.setCreator(heir.ID, true)
	}
	users := room.roster()
	c.bc.ToRoom(roomID, EventUserLeft, UserLeftPayload{
		UserID:   m.ID,
		UserName: m.Name,
		Users:    users,
	})
	if heir != nil {
		c.bc.ToRoom(roomID, EventCreatorChanged, CreatorChangedPayload{
			UserID:   heir.ID,
			UserName: heir.Name,
			Users:    users,
		})
		zap.L().Info("session.creator_changed", zap.String("room", roomID), zap.String("conn", heir.ID))
	}
}

// UpdateCode overwrites the shared buffer. It reports false when the room
// is gone or the sender is not a member; such messages are stale.
func (c *Coordinator) UpdateCode(ctx context.Context, connID, roomID, code string) (applied bool, err error) {
	err = c.do(ctx, func() {
		room, ok := c.store.Room(roomID)
		if !ok || room.member(connID) == nil {
			return
		}
		room.Code = code
		c.bc.ToRoomExcept(roomID, connID, EventCodeUpdate, CodeUpdatePayload{Code: code})
		applied = true
	})
	return applied, err
}

func (c *Coordinator) UpdateLanguage(ctx context.Context, connID, roomID string, language int) (applied bool, err error) {
	err = c.do(ctx, func() {
		room, ok := c.store.Room(roomID)
		if !ok || room.member(connID) == nil {
			return
		}
		room.Language = language
		c.bc.ToRoomExcept(roomID, connID, EventLanguageUpdate, LanguageUpdatePayload{Language: language})
		applied = true
	})
	return applied, err
}

// CloseRoom deletes the room outright. Only the current creator may do it.
func (c *Coordinator) CloseRoom(ctx context.Context, connID, roomID string) (err error) {
	if derr := c.do(ctx, func() { err = c.closeRoom(connID, roomID) }); derr != nil {
		return derr
	}
	return err
}

func (c *Coordinator) closeRoom(connID, roomID string) error {
	room, ok := c.store.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	closer := room.member(connID)
	if closer == nil || !closer.IsCreator {
		return ErrNotCreator
	}

	payload := RoomClosedPayload{Message: "The room has been closed", ClosedBy: closer.Name}
	for _, m := range room.members {
		c.bc.ToConnection(m.ID, EventRoomClosed, payload)
		c.disarmPeers(m.ID)
		c.reg.unbind(m.ID)
		c.bc.Detach(roomID, m.ID)
	}
	c.voice.Drop(roomID)
	c.store.delete(roomID)
	zap.L().Info("session.room_deleted",
		zap.String("room", roomID),
		zap.String("reason", "closed"),
		zap.String("by", closer.Name),
	)
	return nil
}

// RemoveMember evicts the non-creator member called targetName.
func (c *Coordinator) RemoveMember(ctx context.Context, connID, roomID, targetName string) (err error) {
	if derr := c.do(ctx, func() { err = c.removeMember(connID, roomID, strings.TrimSpace(targetName)) }); derr != nil {
		return derr
	}
	return err
}

func (c *Coordinator) removeMember(connID, roomID, targetName string) error {
	room, ok := c.store.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	remover := room.member(connID)
	if remover == nil || !remover.IsCreator {
		return ErrNotCreator
	}

	var target *Member
	creatorNamed := false
	for _, m := range room.members {
		if m.Name != targetName {
			continue
		}
		if m.IsCreator {
			creatorNamed = true
			continue
		}
		target = m
		break
	}
	if target == nil {
		if creatorNamed {
			return ErrCannotRemoveSelf
		}
		return ErrMemberNotFound
	}

	c.bc.ToConnection(target.ID, EventRemovedFromRoom, RemovedFromRoomPayload{
		RoomID:    roomID,
		RemovedBy: remover.Name,
		Message:   "You have been removed from the room",
	})
	c.leaveVoice(roomID, target.ID)
	c.disarmPeers(target.ID)
	c.reg.unbind(target.ID)
	c.bc.Detach(roomID, target.ID)
	room.remove(target.ID)

	c.bc.ToRoom(roomID, EventUserRemoved, UserRemovedPayload{
		UserID:    target.ID,
		UserName:  target.Name,
		RemovedBy: remover.Name,
		Users:     room.roster(),
	})
	zap.L().Info("session.member_removed",
		zap.String("room", roomID),
		zap.String("conn", target.ID),
		zap.String("by", remover.Name),
	)
	return nil
}

// Inspect returns a copy of the room, for diagnostics and tests.
func (c *Coordinator) Inspect(ctx context.Context, roomID string) (info RoomInfo, ok bool, err error) {
	err = c.do(ctx, func() {
		var room *Room
		if room, ok = c.store.Room(roomID); ok {
			info = room.info()
		}
	})
	return info, ok, err
}

// LiveRooms lists rooms that currently have at least one member.
func (c *Coordinator) LiveRooms(ctx context.Context) (ids []string, err error) {
	err = c.do(ctx, func() {
		for id, room := range c.store.rooms {
			if room.Len() > 0 {
				ids = append(ids, id)
			}
		}
	})
	return ids, err
}

// Whiteboard relays a stroke, or a clear when stroke is nil, to the rest of
// the room. Non-members are ignored.
func (c *Coordinator) Whiteboard(ctx context.Context, connID, roomID string, stroke *Stroke) error {
	return c.do(ctx, func() {
		room, ok := c.store.Room(roomID)
		if !ok || room.member(connID) == nil {
			return
		}
		if stroke == nil {
			c.bc.ToRoomExcept(roomID, connID, EventWhiteboardClear, struct{}{})
			return
		}
		c.bc.ToRoomExcept(roomID, connID, EventWhiteboardDraw, *stroke)
	})
}
