package syncactivity

import (
	"context"
	"database/sql"
	"time"

	"codesync/internal/services/rooms"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pipeTimeout = 1500 * time.Millisecond

// LiveRooms lists the rooms that currently have connected members.
type LiveRooms interface {
	LiveRooms(ctx context.Context) ([]string, error)
}

// Purger drops stale room records.
type Purger interface {
	PurgeInactive(ctx context.Context) (int64, error)
}

type Options struct {
	SyncEvery  time.Duration
	PurgeEvery time.Duration
	TTL        time.Duration
}

// Run keeps the persisted records of live rooms fresh: every SyncEvery it
// re-arms their Redis timers and bumps last_activity; every PurgeEvery it
// drops stale records.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB, live LiveRooms, purger Purger, opts Options) {
	syncTk := time.NewTicker(opts.SyncEvery)
	purgeTk := time.NewTicker(opts.PurgeEvery)
	go func() {
		defer syncTk.Stop()
		defer purgeTk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-syncTk.C:
				ids, err := live.LiveRooms(ctx)
				if err != nil {
					zap.L().Warn("syncactivity.live_rooms", zap.Error(err))
					continue
				}
				syncOnce(ctx, rdc, db, ids, opts.TTL)
			case <-purgeTk.C:
				n, err := purger.PurgeInactive(ctx)
				if err != nil {
					zap.L().Error("syncactivity.purge", zap.Error(err))
					continue
				}
				if n > 0 {
					zap.L().Info("syncactivity.purge", zap.Int64("rooms", n))
				}
			}
		}
	}()
}

// syncOnce returns the ids whose record was refreshed. Rooms that exist
// only in memory have no timer key and are skipped.
func syncOnce(ctx context.Context, rdc *redis.Client, db *sql.DB, ids []string, ttl time.Duration) []string {
	if len(ids) == 0 {
		return nil
	}

	// 1. re-arm all timers in one pipelined round-trip
	pctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	pipe := rdc.Pipeline()
	cmds := make([]*redis.BoolCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Expire(pctx, rooms.RoomTimerKeyPrefix+id, ttl)
	}
	if _, err := pipe.Exec(pctx); err != nil && err != redis.Nil {
		zap.L().Error("syncactivity.pipeline", zap.Error(err))
		return nil
	}

	var touched []string
	for i, cmd := range cmds {
		if ok, err := cmd.Result(); err == nil && ok {
			touched = append(touched, ids[i])
		}
	}
	if len(touched) == 0 {
		return nil
	}

	// 2. bump last_activity in Postgres
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("syncactivity.tx_begin", zap.Error(err))
		return nil
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range touched {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET last_activity = $2 WHERE room_id = $1 AND is_active`, id, now); err != nil {
			zap.L().Error("syncactivity.update", zap.String("room", id), zap.Error(err))
			return nil
		}
	}
	if err := tx.Commit(); err != nil {
		zap.L().Error("syncactivity.commit", zap.Error(err))
		return nil
	}
	return touched
}
