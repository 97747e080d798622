package rooms

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC)

func newTestService(t *testing.T) (*roomService, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb, redisMock := redismock.NewClientMock()
	svc := NewRoomService(rdb, db, 24*time.Hour).(*roomService)
	svc.now = func() time.Time { return fixedNow }

	t.Cleanup(func() {
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
	return svc, sqlMock, redisMock
}

func TestNormalizeRoomID(t *testing.T) {
	assert.Equal(t, "AB12CD34", NormalizeRoomID("  ab12cd34 "))
	assert.True(t, ValidRoomID("ABCD"))
	assert.True(t, ValidRoomID("ABCDEF123456"))
	assert.False(t, ValidRoomID("ABC"))
	assert.False(t, ValidRoomID("ABCDEF1234567"))
	assert.False(t, ValidRoomID("AB-CD"))
}

func TestCreateRoom(t *testing.T) {
	svc, sqlMock, redisMock := newTestService(t)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`INSERT INTO rooms`).WithArgs("AB12CD34", "Alice's Room", "Alice", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec(`INSERT INTO room_participants`).WithArgs("AB12CD34", "Alice", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectCommit()
	redisMock.ExpectFCall("room_activate", []string{"room_t:AB12CD34", "rooms:active"}, "AB12CD34", 86400).
		SetVal(int64(1))

	dto, err := svc.CreateRoom(context.Background(), " ab12cd34", " Alice ", "")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", dto.RoomID)
	assert.Equal(t, "Alice's Room", dto.Name)
	assert.True(t, dto.IsActive)
	assert.Equal(t, []Participant{{UserName: "Alice", JoinedAt: fixedNow}}, dto.Participants)
}

func TestCreateRoomTimerFailureIsNotFatal(t *testing.T) {
	svc, sqlMock, redisMock := newTestService(t)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`INSERT INTO rooms`).WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec(`INSERT INTO room_participants`).WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectCommit()
	redisMock.ExpectFCall("room_activate", []string{"room_t:ROOM1", "rooms:active"}, "ROOM1", 86400).
		SetErr(errors.New("ERR Function not found"))

	_, err := svc.CreateRoom(context.Background(), "ROOM1", "Alice", "Pairing")
	assert.NoError(t, err)
}

func TestCreateRoomConflict(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`INSERT INTO rooms .* ON CONFLICT \(room_id\) DO NOTHING`).
		WithArgs("ROOM1", "Alice's Room", "Alice", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectRollback()

	_, err := svc.CreateRoom(context.Background(), "room1", "Alice", "")
	assert.ErrorIs(t, err, ErrRoomExists)
}

func TestCreateRoomValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}

	_, err := svc.CreateRoom(ctx, "AB", "Alice", "")
	assert.ErrorIs(t, err, ErrInvalidRoomID)
	_, err = svc.CreateRoom(ctx, "AB$D", "Alice", "")
	assert.ErrorIs(t, err, ErrInvalidRoomID)
	_, err = svc.CreateRoom(ctx, "ABCD", "A", "")
	assert.ErrorIs(t, err, ErrInvalidCreator)
	_, err = svc.CreateRoom(ctx, "ABCD", "Alice", string(long))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func expectGetRoom(m sqlmock.Sqlmock, id string, participants ...string) {
	m.ExpectQuery(`SELECT room_id, name, creator, is_active, created_at, last_activity FROM rooms`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "name", "creator", "is_active", "created_at", "last_activity"}).
			AddRow(id, "Alice's Room", "Alice", true, fixedNow, fixedNow))
	rows := sqlmock.NewRows([]string{"user_name", "joined_at"})
	for _, p := range participants {
		rows.AddRow(p, fixedNow)
	}
	m.ExpectQuery(`SELECT user_name, joined_at FROM room_participants`).WithArgs(id).WillReturnRows(rows)
}

func TestGetRoom(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	expectGetRoom(sqlMock, "ROOM1", "Alice", "Bob")

	dto, err := svc.GetRoom(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", dto.Creator)
	require.Len(t, dto.Participants, 2)
	assert.Equal(t, "Bob", dto.Participants[1].UserName)
}

func TestGetRoomNotFound(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	sqlMock.ExpectQuery(`SELECT room_id`).WithArgs("ROOM1").WillReturnError(sql.ErrNoRows)

	_, err := svc.GetRoom(context.Background(), "ROOM1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoom(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	expectGetRoom(sqlMock, "ROOM1", "Alice")
	sqlMock.ExpectExec(`INSERT INTO room_participants`).WithArgs("ROOM1", "Bob", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WithArgs("ROOM1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	dto, isCreator, err := svc.JoinRoom(context.Background(), "ROOM1", "Bob")
	require.NoError(t, err)
	assert.False(t, isCreator)
	assert.Len(t, dto.Participants, 2)
}

func TestJoinRoomAsCreator(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	expectGetRoom(sqlMock, "ROOM1", "Alice")
	sqlMock.ExpectExec(`INSERT INTO room_participants`).WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WillReturnResult(sqlmock.NewResult(0, 1))

	dto, isCreator, err := svc.JoinRoom(context.Background(), "ROOM1", "Alice")
	require.NoError(t, err)
	assert.True(t, isCreator)
	assert.Len(t, dto.Participants, 1)
}

func TestJoinRoomRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.JoinRoom(context.Background(), "ROOM1", "  ")
	assert.ErrorIs(t, err, ErrInvalidUserName)
}

func TestCloseRoom(t *testing.T) {
	svc, sqlMock, redisMock := newTestService(t)
	sqlMock.ExpectExec(`UPDATE rooms SET is_active = FALSE`).WithArgs("ROOM1", "Alice", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectFCall("room_deactivate", []string{"room_t:ROOM1", "rooms:active"}, "ROOM1").SetVal(int64(1))

	require.NoError(t, svc.CloseRoom(context.Background(), "room1", "Alice"))
}

func TestCloseRoomDenied(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	sqlMock.ExpectExec(`UPDATE rooms SET is_active = FALSE`).WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectQuery(`SELECT EXISTS`).WithArgs("ROOM1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assert.ErrorIs(t, svc.CloseRoom(context.Background(), "ROOM1", "Mallory"), ErrCloseDenied)
}

func TestCloseRoomMissing(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	sqlMock.ExpectExec(`UPDATE rooms SET is_active = FALSE`).WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, svc.CloseRoom(context.Background(), "ROOM1", "Alice"), ErrRoomNotFound)
}

func TestTouchRoom(t *testing.T) {
	svc, sqlMock, redisMock := newTestService(t)
	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WithArgs("ROOM1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectFCall("room_activate", []string{"room_t:ROOM1", "rooms:active"}, "ROOM1", 86400).
		SetVal(int64(1))

	require.NoError(t, svc.TouchRoom(context.Background(), "ROOM1"))

	sqlMock.ExpectExec(`UPDATE rooms SET last_activity`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, svc.TouchRoom(context.Background(), "GONE"), ErrRoomNotFound)
}

func TestRecordJoin(t *testing.T) {
	svc, _, redisMock := newTestService(t)
	redisMock.ExpectXAdd(&redis.XAddArgs{
		Stream: JoinsStream,
		MaxLen: joinsStreamMaxLen,
		Approx: true,
		Values: []interface{}{"rid", "ROOM1", "user", "Bob", "at", fixedNow.UnixMilli()},
	}).SetVal("1-0")

	require.NoError(t, svc.RecordJoin(context.Background(), "room1", "Bob"))
}

func TestExpire(t *testing.T) {
	svc, sqlMock, redisMock := newTestService(t)
	sqlMock.ExpectExec(`UPDATE rooms SET is_active = FALSE WHERE room_id`).WithArgs("ROOM1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectSRem(ActiveRoomsKey, "ROOM1").SetVal(1)

	require.NoError(t, svc.Expire(context.Background(), "ROOM1"))
}

func TestPurgeInactive(t *testing.T) {
	svc, sqlMock, _ := newTestService(t)
	sqlMock.ExpectExec(`DELETE FROM rooms`).
		WithArgs(fixedNow.Add(-24*time.Hour), fixedNow.Add(-7*24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := svc.PurgeInactive(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
