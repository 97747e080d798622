package syncactivity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncOnceRefreshesPersistedRooms(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdb, redisMock := redismock.NewClientMock()

	redisMock.ExpectExpire("room_t:ROOM1", 24*time.Hour).SetVal(true)
	redisMock.ExpectExpire("room_t:ADHOC", 24*time.Hour).SetVal(false)
	redisMock.ExpectExpire("room_t:ROOM2", 24*time.Hour).SetVal(true)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WithArgs("ROOM1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WithArgs("ROOM2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	touched := syncOnce(context.Background(), rdb, db, []string{"ROOM1", "ADHOC", "ROOM2"}, 24*time.Hour)
	assert.Equal(t, []string{"ROOM1", "ROOM2"}, touched)

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestSyncOnceNothingPersisted(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdb, redisMock := redismock.NewClientMock()

	redisMock.ExpectExpire("room_t:ADHOC", time.Hour).SetVal(false)

	assert.Empty(t, syncOnce(context.Background(), rdb, db, []string{"ADHOC"}, time.Hour))
	assert.Empty(t, syncOnce(context.Background(), rdb, db, nil, time.Hour))

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

type fakeLive struct{ ids []string }

func (f fakeLive) LiveRooms(context.Context) ([]string, error) { return f.ids, nil }

type fakePurger struct{ calls chan struct{} }

func (f fakePurger) PurgeInactive(context.Context) (int64, error) {
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestRunPurgesOnSchedule(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdb, _ := redismock.NewClientMock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purger := fakePurger{calls: make(chan struct{}, 1)}
	Run(ctx, rdb, db, fakeLive{}, purger, Options{
		SyncEvery:  time.Hour,
		PurgeEvery: 10 * time.Millisecond,
		TTL:        time.Hour,
	})

	select {
	case <-purger.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("purge never ran")
	}
}
