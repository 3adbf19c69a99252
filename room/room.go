// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/roles"
	"github.com/wfunc/roomserver/session"
)

// event is one queued delivery. An empty toSID means the whole room; global
// widens the fan-out to every connected session.
type event struct {
	toSID   string
	global  bool
	name    string
	payload any
}

// Room is a named, owned collection of members sharing at most one game
// session.
//
// Two locks with distinct jobs: mu is the room's exclusive execution token -
// every state-mutating operation holds it for its full duration, serializing
// joins, leaves, role changes and operator application against each other.
// memberMu guards only the membership slice so the event pump and read-only
// snapshots can run without blocking on in-flight operations.
//
// Events are appended to a buffered channel while the token is held and
// drained by a single goroutine, so delivery happens after token release but
// always in production order.
type Room struct {
	Name      string
	CreatedAt time.Time

	prob    problem.Problem
	catalog *roles.Catalog

	mu       sync.Mutex // exclusive execution token
	game     *game.Session
	ownerSID string

	memberMu sync.RWMutex
	members  []*session.Session // insertion order

	broadcaster Broadcaster
	events      chan event
	closed      bool
}

func newRoom(name string, prob problem.Problem, broadcaster Broadcaster) *Room {
	r := &Room{
		Name:        name,
		CreatedAt:   time.Now(),
		prob:        prob,
		catalog:     roles.NewCatalog(prob.Roles()),
		broadcaster: broadcaster,
		events:      make(chan event, 256),
	}
	go r.pump()
	return r
}

// pump delivers queued events one at a time, preserving FIFO order for this
// room's event stream. Global lifecycle events ride the same queue so they can
// never overtake the room events produced by the same operation.
func (r *Room) pump() {
	for ev := range r.events {
		var err error
		switch {
		case ev.global:
			err = r.broadcaster.BroadcastToAll(ev.name, ev.payload)
		case ev.toSID == "":
			err = r.broadcaster.BroadcastToRoom(r.Name, ev.name, ev.payload)
		default:
			err = r.broadcaster.SendToOne(ev.toSID, ev.name, ev.payload)
		}
		if err != nil {
			logger.Log.Debugf("room %s: dropping %s event: %v", r.Name, ev.name, err)
		}
	}
}

// emit queues an event. Callers hold the execution token, so queue order is
// production order.
func (r *Room) emit(toSID, name string, payload any) {
	if r.closed {
		return
	}
	r.events <- event{toSID: toSID, name: name, payload: payload}
}

// emitGlobal queues an all-sessions delivery behind this room's pending
// events. Callers hold the execution token.
func (r *Room) emitGlobal(name string, payload any) {
	if r.closed {
		return
	}
	r.events <- event{global: true, name: name, payload: payload}
}

// close stops the pump after the queue drains. The room must already be
// unreachable through the manager.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.events)
}

// --- game.Emitter ---

func (r *Room) ToRoom(name string, payload any) {
	r.emit("", name, payload)
}

func (r *Room) ToOne(sid, name string, payload any) {
	r.emit(sid, name, payload)
}

// --- membership ---

// addMember appends s under the membership lock and points the session back
// at this room, keeping both sides of the invariant in one place.
func (r *Room) addMember(s *session.Session) {
	r.memberMu.Lock()
	r.members = append(r.members, s)
	r.memberMu.Unlock()
	s.SetRoomName(r.Name)
}

// removeMember detaches s and reports whether it was found.
func (r *Room) removeMember(s *session.Session) bool {
	r.memberMu.Lock()
	found := false
	for i, member := range r.members {
		if member.ID == s.ID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			found = true
			break
		}
	}
	r.memberMu.Unlock()

	if found {
		s.SetRoomName("")
		s.SetRoles(nil)
	}
	return found
}

// Members returns the membership snapshot in insertion order.
func (r *Room) Members() []*session.Session {
	r.memberMu.RLock()
	defer r.memberMu.RUnlock()
	return append([]*session.Session(nil), r.members...)
}

func (r *Room) OwnerSID() string {
	r.memberMu.RLock()
	defer r.memberMu.RUnlock()
	return r.ownerSID
}

func (r *Room) setOwner(sid string) {
	r.memberMu.Lock()
	r.ownerSID = sid
	r.memberMu.Unlock()
}

// InGame reports whether an active (started, not ended) session exists.
func (r *Room) InGame() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game != nil && r.game.Active()
}

// Snapshot renders the room for room_changed and list_rooms.
func (r *Room) Snapshot() protocol.Room {
	return r.snapshotWith(r.InGame())
}

// snapshotWith builds the snapshot with a caller-supplied in_game flag, for
// callers already holding the execution token.
func (r *Room) snapshotWith(inGame bool) protocol.Room {
	r.memberMu.RLock()
	players := make([]protocol.Player, 0, len(r.members))
	for _, member := range r.members {
		players = append(players, protocol.Player{
			SID:   member.ID,
			Name:  member.Name(),
			Roles: member.Roles(),
		})
	}
	owner := r.ownerSID
	r.memberMu.RUnlock()

	return protocol.Room{
		Room:    r.Name,
		Owner:   owner,
		InGame:  inGame,
		Players: players,
	}
}

// --- operations (each holds the execution token) ---

// join admits s unless a game is in progress. Mid-game joins are rejected
// because they would invalidate role and turn assumptions.
func (r *Room) join(s *session.Session, username *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game != nil && r.game.Active() {
		return protocol.NewError(protocol.CantJoinRoom, "game in progress")
	}

	if username != nil && *username != "" {
		s.SetName(*username)
	}
	r.addMember(s)

	r.emit("", protocol.EventRoomJoined, protocol.RoomJoined{Username: s.Name()})
	return nil
}

// leave removes s, transfers ownership to the earliest remaining joiner when
// the owner departs, and reports whether the room is now empty.
func (r *Room) leave(s *session.Session) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := s.Name()
	if !r.removeMember(s) {
		return false
	}

	if r.game != nil {
		r.game.RemovePlayer(s.ID)
	}

	r.memberMu.RLock()
	remaining := len(r.members)
	var earliest string
	if remaining > 0 {
		earliest = r.members[0].ID
	}
	r.memberMu.RUnlock()

	if remaining == 0 {
		return true
	}

	if r.OwnerSID() == s.ID {
		r.setOwner(earliest)
	}
	r.emit("", protocol.EventRoomLeft, protocol.RoomLeft{Username: username})
	return false
}

// setRoles validates the requested role numbers against the catalog and the
// other members' holdings.
func (r *Room) setRoles(s *session.Session, want []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.catalog.CheckAssign(r.assignments(), s.ID, want); err != nil {
		return err
	}
	s.SetRoles(want)

	r.emit("", protocol.EventRolesChanged, protocol.RolesChanged{
		Username: s.Name(),
		Roles:    append([]int{}, want...),
	})
	return nil
}

// assignments maps each member sid to its current role numbers.
func (r *Room) assignments() map[string][]int {
	r.memberMu.RLock()
	defer r.memberMu.RUnlock()

	current := make(map[string][]int, len(r.members))
	for _, member := range r.members {
		current[member.ID] = member.Roles()
	}
	return current
}

// startGame creates and starts a session. Only the current owner may start;
// role cardinalities are validated across the whole membership first.
func (r *Room) startGame(s *session.Session, args map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.OwnerSID() != s.ID {
		return protocol.NewError(protocol.GameNotStarted, "only the room owner can start the game")
	}
	if r.game != nil && r.game.Status() != game.StatusEnded {
		return protocol.NewError(protocol.GameAlreadyStarted, "game already started")
	}
	if !r.catalog.Empty() {
		if err := r.catalog.CheckStart(r.assignments()); err != nil {
			return err
		}
	}

	sess := game.NewSession(r.Name, s.ID, r.prob, r.assignments(), r)
	if err := sess.Start(args); err != nil {
		return err
	}
	r.game = sess

	// Announce the updated room behind game_started, so observers never see
	// in_game before the members see the game begin.
	r.emitGlobal(protocol.EventRoomChanged, r.snapshotWith(true))
	return nil
}

// choose submits one operator. A non-nil summary reports that this submission
// ended the game.
func (r *Room) choose(s *session.Session, opNo int, params []any) (*game.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game == nil {
		return nil, protocol.NewError(protocol.GameNotStarted, "no game has been started")
	}
	if err := r.game.Choose(s.ID, opNo, params); err != nil {
		return nil, err
	}
	if r.game.Status() == game.StatusEnded {
		return r.game.Summary(), nil
	}
	return nil, nil
}

// clearMembers forces every member out, used by room deletion.
func (r *Room) clearMembers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, member := range r.Members() {
		r.removeMember(member)
	}
}
