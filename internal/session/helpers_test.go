package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sent struct {
	kind    string // room | except | conn
	target  string
	except  string
	event   string
	payload any
}

type recorder struct {
	mu       sync.Mutex
	msgs     []sent
	attached map[string]map[string]bool
}

func newRecorder() *recorder {
	return &recorder{attached: make(map[string]map[string]bool)}
}

func (r *recorder) Attach(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attached[roomID] == nil {
		r.attached[roomID] = make(map[string]bool)
	}
	r.attached[roomID][connID] = true
}

func (r *recorder) Detach(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attached[roomID], connID)
}

func (r *recorder) ToRoom(roomID, event string, payload any) {
	r.add(sent{kind: "room", target: roomID, event: event, payload: payload})
}

func (r *recorder) ToRoomExcept(roomID, senderID, event string, payload any) {
	r.add(sent{kind: "except", target: roomID, except: senderID, event: event, payload: payload})
}

func (r *recorder) ToConnection(connID, event string, payload any) {
	r.add(sent{kind: "conn", target: connID, event: event, payload: payload})
}

func (r *recorder) add(s sent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, s)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

func (r *recorder) events(event string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, m := range r.msgs {
		if m.event == event {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) isAttached(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached[roomID][connID]
}

type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) func() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.pending = append(ft.pending, t)
	return func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		was := !t.stopped
		t.stopped = true
		return was
	}
}

// fireAll runs every timer that has not been stopped.
func (ft *fakeTimers) fireAll() int {
	ft.mu.Lock()
	var due []*fakeTimer
	for _, t := range ft.pending {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	ft.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type fixture struct {
	coord  *Coordinator
	bc     *recorder
	timers *fakeTimers
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bc:     newRecorder(),
		timers: &fakeTimers{},
		clock:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.coord = NewCoordinator(f.bc, Config{
		DefaultCode:      "// Welcome to CodeSync!",
		DefaultLanguage:  63,
		NegotiationGrace: 5 * time.Second,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
		AfterFunc: f.timers.AfterFunc,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go f.coord.Run(ctx)
	t.Cleanup(cancel)
	return f
}

// join connects id and joins it to roomID.
func (f *fixture) join(t *testing.T, id, roomID, name string) JoinResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.coord.Connect(ctx, id))
	res, err := f.coord.Join(ctx, id, roomID, name)
	require.NoError(t, err)
	return res
}

func (f *fixture) room(t *testing.T, roomID string) (RoomInfo, bool) {
	t.Helper()
	info, ok, err := f.coord.Inspect(context.Background(), roomID)
	require.NoError(t, err)
	return info, ok
}
