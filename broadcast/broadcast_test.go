package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// recordingConn captures sent envelopes; failSend makes every Send fail.
type recordingConn struct {
	mu       sync.Mutex
	sent     []*protocol.Envelope
	failSend bool
}

func (c *recordingConn) Send(env *protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("connection gone")
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *recordingConn) ReadEnvelope() (*protocol.Envelope, error) { return nil, nil }
func (c *recordingConn) Close() error                              { return nil }
func (c *recordingConn) RemoteAddr() net.Addr                      { return nil }
func (c *recordingConn) SetIdleDeadline(d time.Duration)           {}

func (c *recordingConn) sentEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for _, env := range c.sent {
		names = append(names, env.Event)
	}
	return names
}

// staticMembers is a fixed room->members table.
type staticMembers map[string][]*session.Session

func (m staticMembers) MembersOf(roomName string) ([]*session.Session, bool) {
	members, ok := m[roomName]
	return members, ok
}

func setup() (*RoomBroadcaster, *session.Manager, map[string]*recordingConn) {
	conns := map[string]*recordingConn{
		"a": {},
		"b": {},
		"c": {},
	}
	sessions := session.NewManager()
	for sid, conn := range conns {
		sessions.Add(session.NewSession(sid, conn))
	}

	inRoom := []*session.Session{}
	for _, sid := range []string{"a", "b"} {
		s, _ := sessions.Get(sid)
		inRoom = append(inRoom, s)
	}
	members := staticMembers{"alpha": inRoom}
	return NewRoomBroadcaster(members, sessions), sessions, conns
}

func TestBroadcastToRoom(t *testing.T) {
	b, _, conns := setup()

	err := b.BroadcastToRoom("alpha", protocol.EventRoomJoined, protocol.RoomJoined{Username: "alice"})
	if err != nil {
		t.Fatalf("BroadcastToRoom failed: %v", err)
	}

	for _, sid := range []string{"a", "b"} {
		if got := conns[sid].sentEvents(); len(got) != 1 || got[0] != protocol.EventRoomJoined {
			t.Errorf("Member %s should receive room_joined, got %v", sid, got)
		}
	}
	if len(conns["c"].sentEvents()) != 0 {
		t.Error("Non-member should receive nothing")
	}
}

func TestBroadcastToRoom_UnknownRoom(t *testing.T) {
	b, _, _ := setup()
	if err := b.BroadcastToRoom("nope", protocol.EventRoomJoined, nil); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Expected ErrRoomNotFound, got: %v", err)
	}
}

func TestBroadcastToRoom_FailedSendSkipsMember(t *testing.T) {
	b, _, conns := setup()
	conns["a"].failSend = true

	if err := b.BroadcastToRoom("alpha", protocol.EventRoomLeft, protocol.RoomLeft{Username: "bob"}); err != nil {
		t.Fatalf("A failed member send must not fail the broadcast: %v", err)
	}
	if len(conns["b"].sentEvents()) != 1 {
		t.Error("Remaining members should still receive the event")
	}
}

func TestBroadcastToAll(t *testing.T) {
	b, _, conns := setup()

	if err := b.BroadcastToAll(protocol.EventRoomCreated, protocol.RoomCreated{Room: "alpha"}); err != nil {
		t.Fatalf("BroadcastToAll failed: %v", err)
	}
	for sid, conn := range conns {
		if len(conn.sentEvents()) != 1 {
			t.Errorf("Session %s should receive the global event", sid)
		}
	}
}

func TestSendToOne(t *testing.T) {
	b, _, conns := setup()

	if err := b.SendToOne("c", protocol.EventYourSID, protocol.YourSID{SID: "c"}); err != nil {
		t.Fatalf("SendToOne failed: %v", err)
	}
	if got := conns["c"].sentEvents(); len(got) != 1 || got[0] != protocol.EventYourSID {
		t.Errorf("Expected your_sid for c, got %v", got)
	}

	if err := b.SendToOne("zzz", protocol.EventYourSID, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound, got: %v", err)
	}
}
