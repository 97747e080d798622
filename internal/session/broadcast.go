package session

// Broadcaster is the delivery substrate the coordinator fans events out
// through. Every method is called from the coordinator loop and must not
// block: delivery is fire-and-forget.
type Broadcaster interface {
	// Attach and Detach mirror transport-level room membership.
	Attach(roomID, connID string)
	Detach(roomID, connID string)

	ToRoom(roomID, event string, payload any)
	ToRoomExcept(roomID, senderID, event string, payload any)
	ToConnection(connID, event string, payload any)
}
