// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"errors"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/session"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
)

// MemberSource yields a room's member sessions in membership order. Defined
// here against the room manager to avoid depending on its concrete type.
type MemberSource interface {
	MembersOf(roomName string) ([]*session.Session, bool)
}

// RoomBroadcaster fans events out to room members or single sessions.
// Delivery is best-effort per connection: a member whose send fails is
// skipped, never a failure for the broadcast as a whole.
type RoomBroadcaster struct {
	members  MemberSource
	sessions *session.Manager
}

func NewRoomBroadcaster(members MemberSource, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		members:  members,
		sessions: sessions,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomName, event string, payload any) error {
	members, exists := b.members.MembersOf(roomName)
	if !exists {
		return ErrRoomNotFound
	}

	env, err := envelope(event, payload)
	if err != nil {
		return err
	}

	for _, s := range members {
		if err := s.Conn.Send(env); err != nil {
			logger.Log.Debugf("broadcast to %s dropped for %s: %v", roomName, s.ID, err)
			continue
		}
	}
	return nil
}

// BroadcastToAll delivers an event to every connected session, used for the
// global room lifecycle notifications.
func (b *RoomBroadcaster) BroadcastToAll(event string, payload any) error {
	env, err := envelope(event, payload)
	if err != nil {
		return err
	}
	for _, s := range b.sessions.All() {
		if err := s.Conn.Send(env); err != nil {
			logger.Log.Debugf("global broadcast dropped for %s: %v", s.ID, err)
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToOne(sid, event string, payload any) error {
	s, exists := b.sessions.Get(sid)
	if !exists {
		return ErrSessionNotFound
	}

	env, err := envelope(event, payload)
	if err != nil {
		return err
	}
	return s.Conn.Send(env)
}

func envelope(event string, payload any) (*protocol.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &protocol.Envelope{Event: event, Data: data}, nil
}
