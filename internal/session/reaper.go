package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep deletes memberless rooms created before now-retention and voice
// sets whose room no longer exists.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time, retention time.Duration) (rooms, voice int, err error) {
	err = c.do(ctx, func() {
		cutoff := now.Add(-retention)
		for id, room := range c.store.rooms {
			if room.Len() == 0 && room.CreatedAt.Before(cutoff) {
				c.store.delete(id)
				c.voice.Drop(id)
				rooms++
			}
		}
		for _, id := range c.voice.Rooms() {
			if _, ok := c.store.Room(id); !ok {
				c.voice.Drop(id)
				voice++
			}
		}
	})
	return rooms, voice, err
}

// Reaper runs Sweep on a fixed interval.
type Reaper struct {
	coord     *Coordinator
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewReaper(coord *Coordinator, interval, retention time.Duration) *Reaper {
	return &Reaper{
		coord:     coord,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepOnce(ctx)
		}
	}
}

func (r *Reaper) SweepOnce(ctx context.Context) {
	rooms, voice, err := r.coord.Sweep(ctx, r.now(), r.retention)
	if err != nil {
		zap.L().Warn("reaper.sweep", zap.Error(err))
		return
	}
	if rooms > 0 || voice > 0 {
		zap.L().Info("reaper.sweep", zap.Int("rooms", rooms), zap.Int("voice_sets", voice))
	}
}
