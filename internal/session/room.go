package session

import "time"

// Member is a connection's presence record inside one room.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsCreator bool      `json:"isCreator"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// UserView is a Member as seen by one particular recipient.
type UserView struct {
	Member
	IsCurrentUser bool `json:"isCurrentUser"`
}

// Room is the in-memory state of one active session. Members are kept in
// join order.
type Room struct {
	ID        string
	Code      string
	Language  int
	CreatedAt time.Time

	members []*Member
}

func (r *Room) Len() int { return len(r.members) }

func (r *Room) member(id string) *Member {
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) add(m *Member) { r.members = append(r.members, m) }

func (r *Room) remove(id string) *Member {
	for i, m := range r.members {
		if m.ID == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m
		}
	}
	return nil
}

// promoteEarliest hands the creator flag to the survivor with the earliest
// join time. Ties keep join order.
func (r *Room) promoteEarliest() *Member {
	var heir *Member
	for _, m := range r.members {
		if heir == nil || m.JoinedAt.Before(heir.JoinedAt) {
			heir = m
		}
	}
	if heir != nil {
		heir.IsCreator = true
	}
	return heir
}

func (r *Room) roster() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	return out
}

func (r *Room) viewFor(connID string) []UserView {
	out := make([]UserView, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, UserView{Member: *m, IsCurrentUser: m.ID == connID})
	}
	return out
}

// RoomInfo is a read-only copy of a room.
type RoomInfo struct {
	ID        string
	Code      string
	Language  int
	CreatedAt time.Time
	Members   []Member
}

func (r *Room) info() RoomInfo {
	return RoomInfo{
		ID:        r.ID,
		Code:      r.Code,
		Language:  r.Language,
		CreatedAt: r.CreatedAt,
		Members:   r.roster(),
	}
}

// Store is the table of active rooms. Like Registry it is confined to the
// coordinator loop.
type Store struct {
	rooms           map[string]*Room
	defaultCode     string
	defaultLanguage int
}

func NewStore(defaultCode string, defaultLanguage int) *Store {
	return &Store{
		rooms:           make(map[string]*Room),
		defaultCode:     defaultCode,
		defaultLanguage: defaultLanguage,
	}
}

func (s *Store) Room(id string) (*Room, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

func (s *Store) Len() int { return len(s.rooms) }

func (s *Store) create(id string, now time.Time) *Room {
	r := &Room{
		ID:        id,
		Code:      s.defaultCode,
		Language:  s.defaultLanguage,
		CreatedAt: now,
	}
	s.rooms[id] = r
	return r
}

func (s *Store) delete(id string) { delete(s.rooms, id) }
