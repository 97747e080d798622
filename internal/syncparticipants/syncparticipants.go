package syncparticipants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"codesync/internal/services/rooms"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize = 100
	blockFor  = 2000 * time.Millisecond
)

// Run tails the join journal and persists every participant.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "$"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			next, err := pump(ctx, rdc, db, lastID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncparticipants.pump", zap.Error(err))
				time.Sleep(time.Second)
			}
			lastID = next
		}
	}()
}

// pump reads one batch after lastID and returns the id to continue from.
func pump(ctx context.Context, rdc *redis.Client, db *sql.DB, lastID string) (string, error) {
	// block up to 2 s for new entries
	res, err := rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{rooms.JoinsStream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return lastID, fmt.Errorf("xread: %w", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return lastID, nil
	}

	entries := res[0].Messages
	next := entries[len(entries)-1].ID
	if err := persist(ctx, db, entries); err != nil {
		// The journal is best effort; skip the batch rather than spin on it.
		return next, fmt.Errorf("persist: %w", err)
	}
	return next, nil
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const ins = `
	  INSERT INTO room_participants (room_id, user_name, joined_at)
	       SELECT $1, $2, $3
	        WHERE EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)
	  ON CONFLICT (room_id, user_name) DO NOTHING`
	for _, m := range msgs {
		rid, user := field(m, "rid"), field(m, "user")
		if rid == "" || user == "" {
			zap.L().Debug("syncparticipants.skip", zap.String("id", m.ID))
			continue
		}
		ms, _ := strconv.ParseInt(field(m, "at"), 10, 64)
		if _, err := tx.ExecContext(ctx, ins, rid, user, time.UnixMilli(ms).UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func field(m redis.XMessage, key string) string {
	s, _ := m.Values[key].(string)
	return s
}
