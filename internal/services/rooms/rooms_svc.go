package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Participant struct {
	UserName string    `json:"userName" example:"Alice"`
	JoinedAt time.Time `json:"joinedAt" example:"2025-07-27T16:05:05Z"`
}

type RoomDTO struct {
	RoomID       string        `json:"roomID"       example:"AB12CD34"`
	Name         string        `json:"name"         example:"Alice's Room"`
	Creator      string        `json:"creator"      example:"Alice"`
	IsActive     bool          `json:"isActive"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"    example:"2025-07-27T16:05:05Z"`
	LastActivity time.Time     `json:"lastActivity" example:"2025-07-27T16:05:05Z"`
}

const (
	RoomTimerKeyPrefix = "room_t:"
	ActiveRoomsKey     = "rooms:active"
	JoinsStream        = "room_joins_stream"

	joinsStreamMaxLen = 10000
)

var (
	ErrInvalidRoomID   = errors.New("room ID must be 4-12 alphanumeric characters")
	ErrInvalidCreator  = errors.New("creator name must be 2-50 characters")
	ErrInvalidName     = errors.New("room name must be at most 100 characters")
	ErrInvalidUserName = errors.New("user name must be 1-50 characters")

	ErrRoomExists   = errors.New("room ID already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrCloseDenied  = errors.New("only the room creator can close the room")
)

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{4,12}$`)

// NormalizeRoomID trims and upper-cases a client supplied room id.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func ValidRoomID(id string) bool { return roomIDPattern.MatchString(id) }

type IRoomService interface {
	CreateRoom(ctx context.Context, roomID, creator, name string) (*RoomDTO, error)
	GetRoom(ctx context.Context, roomID string) (*RoomDTO, error)
	JoinRoom(ctx context.Context, roomID, userName string) (*RoomDTO, bool, error)
	CloseRoom(ctx context.Context, roomID, creator string) error
	TouchRoom(ctx context.Context, roomID string) error
	RecordJoin(ctx context.Context, roomID, userName string) error
	Expire(ctx context.Context, roomID string) error
	PurgeInactive(ctx context.Context) (int64, error)
}

type roomService struct {
	rdc *redis.Client
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ IRoomService = (*roomService)(nil)

// NewRoomService keeps room records in Postgres; ttl is how long a record
// stays active in Redis without activity.
func NewRoomService(rdc *redis.Client, db *sql.DB, ttl time.Duration) IRoomService {
	return &roomService{
		rdc: rdc,
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

const insertParticipantQ = `
	INSERT INTO room_participants (room_id, user_name, joined_at)
	     SELECT $1, $2, $3
	      WHERE EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)
	ON CONFLICT (room_id, user_name) DO NOTHING`

// CreateRoom stores a new active record with the creator as first
// participant and arms its activity timer.
func (svc *roomService) CreateRoom(ctx context.Context, roomID, creator, name string) (*RoomDTO, error) {
	id := NormalizeRoomID(roomID)
	if !ValidRoomID(id) {
		return nil, ErrInvalidRoomID
	}
	creator = strings.TrimSpace(creator)
	if n := utf8.RuneCountInString(creator); n < 2 || n > 50 {
		return nil, ErrInvalidCreator
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = creator + "'s Room"
	}
	if utf8.RuneCountInString(name) > 100 {
		return nil, ErrInvalidName
	}
	now := svc.now().UTC()

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Concurrent creates of one id race on the primary key; the loser
	// inserts nothing.
	const insRoom = `
	  INSERT INTO rooms (room_id, name, creator, is_active, created_at, last_activity)
	       VALUES ($1, $2, $3, TRUE, $4, $4)
	  ON CONFLICT (room_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insRoom, id, name, creator, now)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrRoomExists
	}
	if _, err := tx.ExecContext(ctx, insertParticipantQ, id, creator, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := svc.activate(ctx, id); err != nil {
		zap.L().Warn("rooms.activate", zap.String("room", id), zap.Error(err))
	}

	return &RoomDTO{
		RoomID:       id,
		Name:         name,
		Creator:      creator,
		IsActive:     true,
		Participants: []Participant{{UserName: creator, JoinedAt: now}},
		CreatedAt:    now,
		LastActivity: now,
	}, nil
}

// GetRoom returns the active record with its participants.
func (svc *roomService) GetRoom(ctx context.Context, roomID string) (*RoomDTO, error) {
	id := NormalizeRoomID(roomID)

	const q = `SELECT room_id, name, creator, is_active, created_at, last_activity
	             FROM rooms WHERE room_id = $1 AND is_active`
	dto := &RoomDTO{}
	err := svc.db.QueryRowContext(ctx, q, id).Scan(
		&dto.RoomID, &dto.Name, &dto.Creator, &dto.IsActive, &dto.CreatedAt, &dto.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT user_name, joined_at FROM room_participants WHERE room_id = $1 ORDER BY joined_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dto.Participants = make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserName, &p.JoinedAt); err != nil {
			return nil, err
		}
		dto.Participants = append(dto.Participants, p)
	}
	return dto, rows.Err()
}

// JoinRoom adds userName to an active record. isCreator is informational:
// the realtime session decides creator status on its own.
func (svc *roomService) JoinRoom(ctx context.Context, roomID, userName string) (*RoomDTO, bool, error) {
	userName = strings.TrimSpace(userName)
	if n := utf8.RuneCountInString(userName); n < 1 || n > 50 {
		return nil, false, ErrInvalidUserName
	}
	dto, err := svc.GetRoom(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	now := svc.now().UTC()

	if _, err := svc.db.ExecContext(ctx, insertParticipantQ, dto.RoomID, userName, now); err != nil {
		return nil, false, err
	}
	if _, err := svc.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity = $2 WHERE room_id = $1`, dto.RoomID, now); err != nil {
		return nil, false, err
	}
	dto.LastActivity = now

	known := false
	for _, p := range dto.Participants {
		if p.UserName == userName {
			known = true
			break
		}
	}
	if !known {
		dto.Participants = append(dto.Participants, Participant{UserName: userName, JoinedAt: now})
	}
	return dto, dto.Creator == userName, nil
}

// CloseRoom marks the record inactive when creator matches.
func (svc *roomService) CloseRoom(ctx context.Context, roomID, creator string) error {
	id := NormalizeRoomID(roomID)

	res, err := svc.db.ExecContext(ctx,
		`UPDATE rooms SET is_active = FALSE, last_activity = $3
		  WHERE room_id = $1 AND creator = $2 AND is_active`,
		id, strings.TrimSpace(creator), svc.now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := svc.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM rooms WHERE room_id = $1 AND is_active)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRoomNotFound
		}
		return ErrCloseDenied
	}

	if err := svc.rdc.FCall(ctx, "room_deactivate",
		[]string{RoomTimerKeyPrefix + id, ActiveRoomsKey}, id).Err(); err != nil {
		zap.L().Warn("rooms.deactivate", zap.String("room", id), zap.Error(err))
	}
	return nil
}

// TouchRoom refreshes last_activity and re-arms the activity timer.
func (svc *roomService) TouchRoom(ctx context.Context, roomID string) error {
	id := NormalizeRoomID(roomID)

	res, err := svc.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity = $2 WHERE room_id = $1 AND is_active`, id, svc.now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return svc.activate(ctx, id)
}

// RecordJoin journals a realtime join; syncparticipants persists it.
func (svc *roomService) RecordJoin(ctx context.Context, roomID, userName string) error {
	return svc.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: JoinsStream,
		MaxLen: joinsStreamMaxLen,
		Approx: true,
		Values: []interface{}{
			"rid", NormalizeRoomID(roomID),
			"user", userName,
			"at", svc.now().UnixMilli(),
		},
	}).Err()
}

// Expire is called by the key-expiry watcher once a record's timer lapses.
func (svc *roomService) Expire(ctx context.Context, roomID string) error {
	id := NormalizeRoomID(roomID)
	if _, err := svc.db.ExecContext(ctx,
		`UPDATE rooms SET is_active = FALSE WHERE room_id = $1 AND is_active`, id); err != nil {
		return fmt.Errorf("expire room %s: %w", id, err)
	}
	return svc.rdc.SRem(ctx, ActiveRoomsKey, id).Err()
}

// PurgeInactive deletes records closed for a day or untouched for a week.
func (svc *roomService) PurgeInactive(ctx context.Context) (int64, error) {
	now := svc.now().UTC()
	res, err := svc.db.ExecContext(ctx,
		`DELETE FROM rooms
		  WHERE (NOT is_active AND last_activity < $1)
		     OR last_activity < $2`,
		now.Add(-24*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (svc *roomService) activate(ctx context.Context, id string) error {
	return svc.rdc.FCall(ctx, "room_activate",
		[]string{RoomTimerKeyPrefix + id, ActiveRoomsKey},
		id,
		int(svc.ttl.Seconds()),
	).Err()
}
