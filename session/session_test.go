package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/roomserver/protocol"
)

// MockConnection records sent envelopes for assertions.
type MockConnection struct {
	mu     sync.Mutex
	sent   []*protocol.Envelope
	closed bool
}

func (m *MockConnection) Send(env *protocol.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
	return nil
}

func (m *MockConnection) ReadEnvelope() (*protocol.Envelope, error) {
	return nil, nil
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConnection) RemoteAddr() net.Addr            { return nil }
func (m *MockConnection) SetIdleDeadline(d time.Duration) {}

func TestSession_Defaults(t *testing.T) {
	s := NewSession("sid-1", &MockConnection{})

	if s.Name() != "sid-1" {
		t.Errorf("Display name should default to the sid, got %q", s.Name())
	}
	if s.RoomName() != "" {
		t.Errorf("New session should not be in a room, got %q", s.RoomName())
	}
	if len(s.Roles()) != 0 {
		t.Errorf("New session should hold no roles, got %v", s.Roles())
	}
}

func TestSession_SetName(t *testing.T) {
	s := NewSession("sid-1", &MockConnection{})
	s.SetName("alice")
	if s.Name() != "alice" {
		t.Errorf("Expected name alice, got %q", s.Name())
	}
}

func TestSession_RolesAreCopied(t *testing.T) {
	s := NewSession("sid-1", &MockConnection{})
	roles := []int{0, 1}
	s.SetRoles(roles)
	roles[0] = 99

	got := s.Roles()
	if got[0] != 0 {
		t.Error("SetRoles must copy the input slice")
	}
	got[1] = 99
	if s.Roles()[1] != 1 {
		t.Error("Roles must return a copy")
	}
}

func TestSession_Close(t *testing.T) {
	conn := &MockConnection{}
	s := NewSession("sid-1", conn)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.closed {
		t.Error("Close should close the underlying connection")
	}
}

func TestManager_AddGetRemove(t *testing.T) {
	m := NewManager()
	s := NewSession("sid-1", &MockConnection{})

	m.Add(s)
	if got, ok := m.Get("sid-1"); !ok || got != s {
		t.Fatal("Expected to get back the added session")
	}
	if m.Count() != 1 {
		t.Errorf("Expected count 1, got %d", m.Count())
	}

	m.Remove("sid-1")
	if _, ok := m.Get("sid-1"); ok {
		t.Fatal("Session should be gone after Remove")
	}
	if m.Count() != 0 {
		t.Errorf("Expected count 0, got %d", m.Count())
	}
}

func TestManager_Idle(t *testing.T) {
	m := NewManager()
	stale := NewSession("stale", &MockConnection{})
	stale.LastActive = time.Now().Add(-time.Hour)
	fresh := NewSession("fresh", &MockConnection{})
	m.Add(stale)
	m.Add(fresh)

	idle := m.Idle(time.Now().Add(-time.Minute))
	if len(idle) != 1 || idle[0].ID != "stale" {
		t.Fatalf("Expected only the stale session, got %v", idle)
	}

	// Touch refreshes activity.
	stale.Touch()
	if len(m.Idle(time.Now().Add(-time.Minute))) != 0 {
		t.Error("Touched session should no longer be idle")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := NewSession(string(rune('a'+n%26))+"-sid", &MockConnection{})
			m.Add(s)
			m.Get(s.ID)
			m.All()
		}(i)
	}
	wg.Wait()
}
