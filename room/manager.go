// room/manager.go
package room

import (
	"iter"
	"sort"
	"sync"

	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/session"
)

// Manager owns the set of rooms. The manager mutex covers only the rooms map
// (the global check-and-insert for create, lookups, and the list snapshot);
// everything inside a room is serialized by that room's own token, so
// unrelated rooms never block each other.
//
// Policy note: a room emptied of its last member is deleted automatically; an
// explicit delete_room is only needed for rooms that still have members.
type Manager struct {
	prob        problem.Problem
	rooms       map[string]*Room
	mutex       sync.RWMutex
	broadcaster Broadcaster
}

func NewManager(prob problem.Problem) *Manager {
	return &Manager{
		prob:  prob,
		rooms: make(map[string]*Room),
	}
}

// SetBroadcaster wires the fan-out after construction; the broadcaster itself
// is built around this manager.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Problem exposes the loaded domain for the protocol layer (list_roles, info).
func (m *Manager) Problem() problem.Problem {
	return m.prob
}

// Create makes a new room with the creator as owner and sole member.
func (m *Manager) Create(name string, owner *session.Session) (*Room, error) {
	if name == "" {
		return nil, protocol.NewError(protocol.CantJoinRoom, "room name must not be empty")
	}
	if owner.RoomName() != "" {
		return nil, protocol.NewError(protocol.CantJoinRoom, "already in another room")
	}

	m.mutex.Lock()
	if _, exists := m.rooms[name]; exists {
		m.mutex.Unlock()
		return nil, protocol.NewError(protocol.RoomAlreadyExists, "room "+name+" already exists")
	}
	r := newRoom(name, m.prob, m.broadcaster)
	m.rooms[name] = r
	m.mutex.Unlock()

	r.mu.Lock()
	r.addMember(owner)
	r.setOwner(owner.ID)
	r.emitGlobal(protocol.EventRoomCreated, protocol.RoomCreated{
		Room:     name,
		OwnerSID: owner.ID,
	})
	r.mu.Unlock()

	return r, nil
}

// Delete removes a room on the owner's request. Rooms with an active game
// cannot be deleted.
func (m *Manager) Delete(name, requesterSID string) error {
	r, exists := m.get(name)
	if !exists {
		return protocol.NewError(protocol.CantDeleteRoom, "room does not exist")
	}
	if r.OwnerSID() != requesterSID {
		return protocol.NewError(protocol.CantDeleteRoom, "only the owner can delete a room")
	}
	if r.InGame() {
		return protocol.NewError(protocol.CantDeleteRoom, "game in progress")
	}

	r.clearMembers()
	m.drop(r)
	return nil
}

// Join adds a session to an existing room.
func (m *Manager) Join(name string, s *session.Session, username *string) error {
	r, exists := m.get(name)
	if !exists {
		return protocol.NewError(protocol.CantJoinRoom, "room does not exist")
	}
	if s.RoomName() != "" {
		return protocol.NewError(protocol.CantJoinRoom, "already in another room")
	}
	return r.join(s, username)
}

// Leave removes a session from its current room, deleting the room if it is
// now empty.
func (m *Manager) Leave(s *session.Session) error {
	r, err := m.resolve(s)
	if err != nil {
		return err
	}
	if r.leave(s) {
		m.drop(r)
	}
	return nil
}

// SetRoles updates a member's role selection within its current room.
func (m *Manager) SetRoles(s *session.Session, roleNumbers []int) error {
	r, err := m.resolve(s)
	if err != nil {
		return err
	}
	return r.setRoles(s, roleNumbers)
}

// StartGame starts a session in the requester's current room. The room itself
// announces the updated summary through its event pump, behind game_started.
func (m *Manager) StartGame(s *session.Session, args map[string]any) error {
	r, err := m.resolve(s)
	if err != nil {
		return err
	}
	return r.startGame(s, args)
}

// Choose submits an operator to the requester's current game. A non-nil
// summary reports a finished game.
func (m *Manager) Choose(s *session.Session, opNo int, params []any) (*game.Summary, error) {
	r, err := m.resolve(s)
	if err != nil {
		return nil, err
	}
	return r.choose(s, opNo, params)
}

// Rooms returns a restartable snapshot sequence of room summaries, sorted by
// name.
func (m *Manager) Rooms() iter.Seq[protocol.Room] {
	m.mutex.RLock()
	snapshot := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		snapshot = append(snapshot, r)
	}
	m.mutex.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })

	return func(yield func(protocol.Room) bool) {
		for _, r := range snapshot {
			if !yield(r.Snapshot()) {
				return
			}
		}
	}
}

// Snapshot renders one room by name.
func (m *Manager) Snapshot(name string) (protocol.Room, bool) {
	r, exists := m.get(name)
	if !exists {
		return protocol.Room{}, false
	}
	return r.Snapshot(), true
}

// MembersOf implements broadcast.MemberSource.
func (m *Manager) MembersOf(roomName string) ([]*session.Session, bool) {
	r, exists := m.get(roomName)
	if !exists {
		return nil, false
	}
	return r.Members(), true
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// ActiveGames counts rooms with a started, unfinished session.
func (m *Manager) ActiveGames() int {
	m.mutex.RLock()
	snapshot := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		snapshot = append(snapshot, r)
	}
	m.mutex.RUnlock()

	count := 0
	for _, r := range snapshot {
		if r.InGame() {
			count++
		}
	}
	return count
}

func (m *Manager) get(name string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[name]
	return r, exists
}

// resolve finds the requester's current room, failing NotInARoom uniformly.
func (m *Manager) resolve(s *session.Session) (*Room, error) {
	name := s.RoomName()
	if name == "" {
		return nil, protocol.NewError(protocol.NotInARoom, "you are not in a room")
	}
	r, exists := m.get(name)
	if !exists {
		// Stale pointer; heal it rather than strand the session.
		s.SetRoomName("")
		return nil, protocol.NewError(protocol.NotInARoom, "you are not in a room")
	}
	return r, nil
}

// drop removes a room from the map, announces the deletion and stops its
// event pump. The announcement rides the pump behind any still-queued room
// events; close only stops the pump after the queue drains.
func (m *Manager) drop(r *Room) {
	m.mutex.Lock()
	delete(m.rooms, r.Name)
	m.mutex.Unlock()

	r.mu.Lock()
	r.emitGlobal(protocol.EventRoomDeleted, protocol.RoomDeleted{Room: r.Name})
	r.mu.Unlock()
	r.close()
}
