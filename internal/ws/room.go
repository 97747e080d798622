package ws

import "sync"

// room is the local transport group for one room id: the connections on
// this instance that receive room-wide deliveries.
type room struct {
	mu    sync.RWMutex
	conns map[string]struct{}
	dead  bool // set once emptied and unlinked from the hub
}

func newRoom() *room { return &room{conns: map[string]struct{}{}} }

// add reports whether the set changed; false with ok=false means the room
// was already unlinked and the caller must retry with a fresh one.
func (r *room) add(id string) (added, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return false, false
	}
	if _, exists := r.conns[id]; exists {
		return false, true
	}
	r.conns[id] = struct{}{}
	return true, true
}

// remove reports whether id was present and whether the room is now empty.
func (r *room) remove(id string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; !exists {
		return false, len(r.conns) == 0
	}
	delete(r.conns, id)
	if len(r.conns) == 0 {
		r.dead = true
		return true, true
	}
	return true, false
}

// snapshot copies the member ids so I/O happens outside the lock.
func (r *room) snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
