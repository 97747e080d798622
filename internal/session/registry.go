package session

// Connection is one live transport session as the coordinator knows it.
// RoomID is empty until the connection joins a room.
type Connection struct {
	ID        string
	Name      string
	RoomID    string
	IsCreator bool
}

// Registry maps connection ids to their current room and display name.
// It is owned by the coordinator loop and is not safe for concurrent use.
type Registry struct {
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register is idempotent: a known id keeps its current binding.
func (r *Registry) Register(id string) *Connection {
	if c, ok := r.conns[id]; ok {
		return c
	}
	c := &Connection{ID: id}
	r.conns[id] = c
	return c
}

// Resolve returns a copy of the connection record.
func (r *Registry) Resolve(id string) (Connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

func (r *Registry) Forget(id string) { delete(r.conns, id) }

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) get(id string) *Connection { return r.conns[id] }

func (r *Registry) bind(id, roomID, name string, creator bool) {
	c := r.Register(id)
	c.RoomID = roomID
	c.Name = name
	c.IsCreator = creator
}

// unbind clears the room association but keeps the display name.
func (r *Registry) unbind(id string) {
	if c, ok := r.conns[id]; ok {
		c.RoomID = ""
		c.IsCreator = false
	}
}

func (r *Registry) setCreator(id string, creator bool) {
	if c, ok := r.conns[id]; ok {
		c.IsCreator = creator
	}
}
