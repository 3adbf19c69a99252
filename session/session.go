// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/roomserver/network"
)

// Session is one connected client: its opaque identity, transport connection,
// display name and role selection. The room pointer is mutated only by the
// room manager so that membership stays bidirectionally consistent.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	LastActive time.Time

	name     string
	roles    []int
	roomName string
	mutex    sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		name:       id, // display name defaults to the identity
	}
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Name() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.name = name
}

// Roles returns a copy of the session's role selection.
func (s *Session) Roles() []int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]int(nil), s.roles...)
}

func (s *Session) SetRoles(roles []int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roles = append([]int(nil), roles...)
}

// RoomName returns the name of the room this session is in, or "".
func (s *Session) RoomName() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomName
}

// SetRoomName is reserved for the room manager.
func (s *Session) SetRoomName(room string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomName = room
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
}

func (s *Session) IdleSince(cutoff time.Time) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.LastActive.Before(cutoff)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the connection registry: every live session keyed by sid.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Idle returns the sessions with no activity since cutoff.
func (m *Manager) Idle(cutoff time.Time) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.IdleSince(cutoff) {
			result = append(result, session)
		}
	}
	return result
}
