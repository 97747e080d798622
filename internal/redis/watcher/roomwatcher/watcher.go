package roomwatcher

import (
	"context"
	"strings"

	"codesync/internal/services/rooms"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Expirer marks a room record inactive once its activity timer lapses.
type Expirer interface {
	Expire(ctx context.Context, roomID string) error
}

// Run listens to key-expiry events and deactivates room records in Postgres.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc Expirer) {
	if err := enableExpiryEvents(ctx, rdb); err != nil {
		zap.L().Warn("roomwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			handle(ctx, svc, m.Payload)
		}
	}
}

func enableExpiryEvents(ctx context.Context, rdb *redis.Client) error {
	return rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

func handle(ctx context.Context, svc Expirer, key string) bool {
	if !strings.HasPrefix(key, rooms.RoomTimerKeyPrefix) {
		return false
	}
	id := strings.TrimPrefix(key, rooms.RoomTimerKeyPrefix)
	if err := svc.Expire(ctx, id); err != nil {
		zap.L().Warn("roomwatcher.expire", zap.String("room", id), zap.Error(err))
		return false
	}
	zap.L().Info("roomwatcher.expired", zap.String("room", id))
	return true
}
