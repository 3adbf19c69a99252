// game/session.go
package game

import (
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
)

// Emitter delivers events produced by the session engine. The room supplies
// an implementation whose delivery order matches production order.
type Emitter interface {
	ToRoom(event string, payload any)
	ToOne(sid, event string, payload any)
}

// Session drives one room's game: it owns the abstract problem state,
// serializes operator application, and produces the resulting broadcast
// events. Callers must hold the owning room's execution token around every
// method; the session itself carries no lock.
type Session struct {
	roomName string
	ownerSID string
	prob     problem.Problem
	emitter  Emitter

	status    Status
	state     problem.State
	stack     []problem.State // prior states, most recent last
	step      int             // monotonically increasing transition counter
	players   map[string][]int
	available []problem.OperatorDescriptor // validation snapshot, roles unrestricted
	startedAt time.Time
	endedAt   time.Time
}

// NewSession creates a session in Lobby for the given room. players maps each
// member sid to its role numbers, frozen for the whole game.
func NewSession(roomName, ownerSID string, prob problem.Problem, players map[string][]int, emitter Emitter) *Session {
	frozen := make(map[string][]int, len(players))
	for sid, roles := range players {
		frozen[sid] = append([]int(nil), roles...)
	}
	return &Session{
		roomName: roomName,
		ownerSID: ownerSID,
		prob:     prob,
		emitter:  emitter,
		status:   StatusLobby,
		players:  frozen,
	}
}

func (s *Session) Status() Status { return s.status }
func (s *Session) Step() int      { return s.step }

// Active reports whether operator submissions are currently accepted.
func (s *Session) Active() bool { return s.status == StatusActive }

// Start constructs the initial state from the opaque args bag, moves the
// session to Active and broadcasts game_started plus each member's available
// operators.
func (s *Session) Start(args map[string]any) error {
	state, err := s.prob.InitialState(args)
	if err != nil {
		return protocol.WrapError(protocol.GameNotStarted, err.Error(), err)
	}
	if err := s.transition(StatusActive); err != nil {
		return protocol.NewError(protocol.GameAlreadyStarted, "game already started")
	}

	s.state = state
	s.startedAt = time.Now()

	s.emitter.ToRoom(protocol.EventGameStarted, protocol.GameStarted{
		State:   serializeState(state),
		Message: state.Display(),
	})
	s.publishAvailable()
	return nil
}

// Choose validates and applies one operator submission. The validation order
// is fixed: session status, operator identity, parameter arity, parameter
// type, parameter bounds, then domain application. Any failure leaves the
// session state untouched.
func (s *Session) Choose(sid string, opNo int, params []any) error {
	if s.status != StatusActive {
		return protocol.NewError(protocol.GameNotStarted, "no active game")
	}

	descriptor, ok := s.lookupOperator(opNo)
	if !ok {
		return protocol.NewError(protocol.InvalidOperator, "operator is not among the available operators")
	}

	if err := problem.ValidateParams(descriptor.Params, params); err != nil {
		return protocol.WrapError(protocol.InvalidOperator, err.Error(), err)
	}

	oldState := s.state
	newState, err := oldState.Apply(opNo, params)
	if err != nil {
		// Domain failure is fatal to the request, never to the session.
		return protocol.WrapError(protocol.InvalidOperator, err.Error(), err)
	}

	s.stack = append(s.stack, oldState)
	s.state = newState
	s.step++

	s.emitter.ToRoom(protocol.EventOperatorApplied, protocol.OperatorApplied{
		State:   serializeState(newState),
		Message: newState.Display(),
		Operator: protocol.AppliedOperator{
			Name:   descriptor.Name,
			OpNo:   opNo,
			Params: params,
		},
	})

	for _, message := range s.prob.Transitions(oldState, newState, opNo) {
		s.emitter.ToRoom(protocol.EventTransition, protocol.Transition{Message: message})
	}

	if newState.IsTerminal() {
		s.end(newState.GoalMessage())
		return nil
	}

	s.publishAvailable()
	return nil
}

// End force-ends the session regardless of the domain state. Later operator
// submissions fail GameNotStarted.
func (s *Session) End(message string) {
	if s.status == StatusEnded {
		return
	}
	s.end(message)
}

func (s *Session) end(message string) {
	if err := s.transition(StatusEnded); err != nil {
		logger.Log.Warnf("room %s: ending game from status %s: %v", s.roomName, s.status, err)
		s.status = StatusEnded
	}
	s.endedAt = time.Now()
	s.available = nil
	s.emitter.ToRoom(protocol.EventGameEnded, protocol.GameEnded{Message: message})
}

// RemovePlayer drops a departed member from operator publication. The game
// itself keeps running for the remaining members.
func (s *Session) RemovePlayer(sid string) {
	delete(s.players, sid)
}

// publishAvailable refreshes the validation snapshot and sends each member
// the operators applicable to its roles. Members without roles receive the
// unrestricted list.
func (s *Session) publishAvailable() {
	s.available = s.state.AvailableOperators(nil)

	for sid, roles := range s.players {
		ops := s.available
		if len(roles) > 0 {
			ops = s.state.AvailableOperators(roles)
		}
		s.emitter.ToOne(sid, protocol.EventOperatorsAvailable, protocol.OperatorsAvailable{
			Operators: wireOperators(ops),
		})
	}
}

// lookupOperator resolves opNo against the most recently published
// availability snapshot. A stale or never-published opNo does not match.
func (s *Session) lookupOperator(opNo int) (problem.OperatorDescriptor, bool) {
	for _, descriptor := range s.available {
		if descriptor.OpNo == opNo {
			return descriptor, true
		}
	}
	return problem.OperatorDescriptor{}, false
}

// Summary describes a finished game for persistence.
type Summary struct {
	RoomName    string
	ProblemName string
	Steps       int
	Players     map[string][]int
	FinalState  string
	Duration    time.Duration
}

func (s *Session) Summary() *Summary {
	duration := time.Duration(0)
	if !s.startedAt.IsZero() && !s.endedAt.IsZero() {
		duration = s.endedAt.Sub(s.startedAt)
	}
	final := ""
	if s.state != nil {
		final = s.state.Display()
	}
	return &Summary{
		RoomName:    s.roomName,
		ProblemName: s.prob.Info().Name,
		Steps:       s.step,
		Players:     s.players,
		FinalState:  final,
		Duration:    duration,
	}
}

func serializeState(state problem.State) *string {
	blob, err := state.Serialize()
	if err != nil || blob == nil {
		return nil
	}
	text := string(blob)
	return &text
}

func wireOperators(ops []problem.OperatorDescriptor) []protocol.OperatorElement {
	elements := make([]protocol.OperatorElement, 0, len(ops))
	for _, op := range ops {
		params := make([]protocol.ParamSpec, 0, len(op.Params))
		for _, p := range op.Params {
			params = append(params, protocol.ParamSpec{
				Name: p.Name,
				Type: string(p.Type),
				Min:  p.Min,
				Max:  p.Max,
			})
		}
		elements = append(elements, protocol.OperatorElement{
			Name:   op.Name,
			OpNo:   op.OpNo,
			Params: params,
		})
	}
	return elements
}
