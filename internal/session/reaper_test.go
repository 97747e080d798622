package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDeletesOldEmptyRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.join(t, "c1", "LIVE", "alice")

	// Simulate state that escaped normal teardown.
	require.NoError(t, f.coord.do(ctx, func() {
		f.coord.store.create("STALE", f.clock.Add(-48*time.Hour))
		f.coord.store.create("FRESH", f.clock)
		f.coord.voice.Join("ORPHAN", "x", "ghost")
	}))

	rooms, voice, err := f.coord.Sweep(ctx, f.clock, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, voice)

	_, ok := f.room(t, "STALE")
	assert.False(t, ok)
	_, ok = f.room(t, "FRESH")
	assert.True(t, ok)
	_, ok = f.room(t, "LIVE")
	assert.True(t, ok)
}

func TestSweepKeepsOldRoomsWithMembers(t *testing.T) {
	f := newFixture(t)
	f.join(t, "c1", "ABCD", "alice")

	rooms, _, err := f.coord.Sweep(context.Background(), f.clock.Add(72*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, rooms)
}

func TestReaperSweepOnceUsesClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.coord.do(ctx, func() {
		f.coord.store.create("STALE", f.clock)
	}))

	r := NewReaper(f.coord, time.Hour, 24*time.Hour)
	r.now = func() time.Time { return f.clock.Add(time.Hour) }
	r.SweepOnce(ctx)
	_, ok := f.room(t, "STALE")
	assert.True(t, ok)

	r.now = func() time.Time { return f.clock.Add(25 * time.Hour) }
	r.SweepOnce(ctx)
	_, ok = f.room(t, "STALE")
	assert.False(t, ok)
}
