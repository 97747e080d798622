package session

// VoiceParticipant is a connection opted into a room's media sub-session.
type VoiceParticipant struct {
	ID   string `json:"userId"`
	Name string `json:"userName"`
}

// VoiceTracker keeps one ordered participant set per room, independent of
// room membership.
type VoiceTracker struct {
	sets map[string][]VoiceParticipant
}

func NewVoiceTracker() *VoiceTracker {
	return &VoiceTracker{sets: make(map[string][]VoiceParticipant)}
}

// Join adds the participant and returns everyone else already present.
// added is false when the connection was already in the set.
func (v *VoiceTracker) Join(roomID, id, name string) (others []VoiceParticipant, added bool) {
	set := v.sets[roomID]
	others = make([]VoiceParticipant, 0, len(set))
	for _, p := range set {
		if p.ID == id {
			continue
		}
		others = append(others, p)
	}
	if len(others) == len(set) {
		v.sets[roomID] = append(set, VoiceParticipant{ID: id, Name: name})
		added = true
	}
	return others, added
}

// Leave removes the participant, deleting the set once it is empty.
func (v *VoiceTracker) Leave(roomID, id string) (removed VoiceParticipant, remaining []VoiceParticipant, ok bool) {
	set := v.sets[roomID]
	for i, p := range set {
		if p.ID != id {
			continue
		}
		remaining = append(append([]VoiceParticipant{}, set[:i]...), set[i+1:]...)
		if len(remaining) == 0 {
			delete(v.sets, roomID)
		} else {
			v.sets[roomID] = remaining
		}
		return p, remaining, true
	}
	return VoiceParticipant{}, nil, false
}

func (v *VoiceTracker) Participants(roomID string) []VoiceParticipant {
	return append([]VoiceParticipant{}, v.sets[roomID]...)
}

func (v *VoiceTracker) Drop(roomID string) { delete(v.sets, roomID) }

func (v *VoiceTracker) Rooms() []string {
	out := make([]string, 0, len(v.sets))
	for id := range v.sets {
		out = append(out, id)
	}
	return out
}
