// room/interfaces.go
package room

// Broadcaster defines the delivery surface the room layer needs. This is
// defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomName, event string, payload any) error
	BroadcastToAll(event string, payload any) error
	SendToOne(sid, event string, payload any) error
}
