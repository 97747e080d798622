package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoomOwnerKeyPrefix keys the instance currently hosting a room.
const RoomOwnerKeyPrefix = "room_owner:"

var ErrRoomElsewhere = errors.New("room is hosted on another instance")

// Placement pins each room to one instance. Every instance keeps its own
// in-memory room state, so a room must never be live on two of them.
type Placement interface {
	Claim(ctx context.Context, roomID string) error
}

type liveRooms interface {
	LiveRooms(ctx context.Context) ([]string, error)
}

// RedisPlacement claims rooms through the room_claim function. Claims
// expire after ttl unless Run keeps refreshing them.
type RedisPlacement struct {
	rdb      redis.Cmdable
	instance string
	ttl      time.Duration
}

var _ Placement = (*RedisPlacement)(nil)

func NewRedisPlacement(rdb redis.Cmdable, instance string, ttl time.Duration) *RedisPlacement {
	if ttl < time.Second {
		ttl = time.Minute
	}
	return &RedisPlacement{rdb: rdb, instance: instance, ttl: ttl}
}

func (p *RedisPlacement) claimCmd(ctx context.Context, c redis.Cmdable, roomID string) *redis.Cmd {
	return c.FCall(ctx, "room_claim", []string{RoomOwnerKeyPrefix + roomID}, p.instance, int(p.ttl.Seconds()))
}

// Claim succeeds when the room is unowned or already owned by this instance.
func (p *RedisPlacement) Claim(ctx context.Context, roomID string) error {
	owner, err := p.claimCmd(ctx, p.rdb, roomID).Text()
	if err != nil {
		return fmt.Errorf("claim room %s: %w", roomID, err)
	}
	if owner != p.instance {
		return fmt.Errorf("%w: %s", ErrRoomElsewhere, owner)
	}
	return nil
}

// Refresh re-claims ids in one pipeline and returns those now owned by
// another instance.
func (p *RedisPlacement) Refresh(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := p.rdb.Pipeline()
	cmds := make([]*redis.Cmd, len(ids))
	for i, id := range ids {
		cmds[i] = p.claimCmd(ctx, pipe, id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var lost []string
	for i, cmd := range cmds {
		if owner, err := cmd.Text(); err == nil && owner != p.instance {
			lost = append(lost, ids[i])
		}
	}
	return lost, nil
}

// Run refreshes the claims of live rooms every ttl/3.
func (p *RedisPlacement) Run(ctx context.Context, live liveRooms) {
	ticker := time.NewTicker(p.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := live.LiveRooms(ctx)
			if err != nil {
				zap.L().Warn("ws.placement_live", zap.Error(err))
				continue
			}
			lost, err := p.Refresh(ctx, ids)
			if err != nil {
				zap.L().Warn("ws.placement_refresh", zap.Error(err))
				continue
			}
			for _, id := range lost {
				zap.L().Error("ws.placement_lost", zap.String("room", id), zap.String("instance", p.instance))
			}
		}
	}
}
