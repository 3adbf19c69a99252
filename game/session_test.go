package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// recordingEmitter captures emitted events in production order.
type recordingEmitter struct {
	roomEvents []emitted
	oneEvents  []emitted
}

type emitted struct {
	sid     string
	event   string
	payload any
}

func (e *recordingEmitter) ToRoom(event string, payload any) {
	e.roomEvents = append(e.roomEvents, emitted{event: event, payload: payload})
}

func (e *recordingEmitter) ToOne(sid, event string, payload any) {
	e.oneEvents = append(e.oneEvents, emitted{sid: sid, event: event, payload: payload})
}

func (e *recordingEmitter) roomEventNames() []string {
	names := make([]string, 0, len(e.roomEvents))
	for _, ev := range e.roomEvents {
		names = append(names, ev.event)
	}
	return names
}

// countProblem is a minimal test domain: a counter that must reach the target
// by increments of one. Operator 0 increments; it disappears at the target.
type countProblem struct {
	target   int
	failNext bool // when set, the next Apply fails
}

type countState struct {
	prob    *countProblem
	counter int
}

func (p *countProblem) Info() problem.Info {
	return problem.Info{Name: "count", Version: "1.0"}
}

func (p *countProblem) Roles() []problem.Role { return nil }

func (p *countProblem) InitialState(args map[string]any) (problem.State, error) {
	if _, bad := args["explode"]; bad {
		return nil, errors.New("bad arguments")
	}
	return &countState{prob: p}, nil
}

func (p *countProblem) Transitions(old, new problem.State, opNo int) []string {
	ns := new.(*countState)
	if ns.counter == p.target-1 {
		return []string{"one step from the goal"}
	}
	return nil
}

func (s *countState) Serialize() ([]byte, error) {
	return json.Marshal(map[string]int{"counter": s.counter})
}

func (s *countState) Display() string {
	return fmt.Sprintf("counter=%d", s.counter)
}

func (s *countState) AvailableOperators(roles []int) []problem.OperatorDescriptor {
	if s.IsTerminal() {
		return nil
	}
	// Role 1 holders are spectators with no operators.
	for _, r := range roles {
		if r == 1 {
			return nil
		}
	}
	return []problem.OperatorDescriptor{{Name: "Increment", OpNo: 0}}
}

func (s *countState) Apply(opNo int, params []any) (problem.State, error) {
	if s.prob.failNext {
		s.prob.failNext = false
		return nil, errors.New("domain rejected the move")
	}
	if opNo != 0 {
		return nil, errors.New("unknown operator")
	}
	return &countState{prob: s.prob, counter: s.counter + 1}, nil
}

func (s *countState) IsTerminal() bool    { return s.counter >= s.prob.target }
func (s *countState) GoalMessage() string { return "counter reached the target" }

func newTestSession(target int) (*Session, *recordingEmitter, *countProblem) {
	prob := &countProblem{target: target}
	emitter := &recordingEmitter{}
	players := map[string][]int{"p1": nil, "p2": {1}}
	return NewSession("test-room", "p1", prob, players, emitter), emitter, prob
}

func expectKind(t *testing.T, err error, kind protocol.ServerError) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected a %s error, got nil", kind)
	}
	var known *protocol.Error
	if !errors.As(err, &known) || known.Type != kind {
		t.Fatalf("Expected %s, got: %v", kind, err)
	}
}

func TestSession_StartBroadcasts(t *testing.T) {
	s, emitter, _ := newTestSession(3)

	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.Active() {
		t.Fatal("Session should be active after Start")
	}
	if len(emitter.roomEvents) != 1 || emitter.roomEvents[0].event != protocol.EventGameStarted {
		t.Fatalf("Expected a single game_started broadcast, got %v", emitter.roomEventNames())
	}
	// Every player gets its own operators_available.
	if len(emitter.oneEvents) != 2 {
		t.Fatalf("Expected operators_available per player, got %d sends", len(emitter.oneEvents))
	}
}

func TestSession_StartFailsOnBadArgs(t *testing.T) {
	s, _, _ := newTestSession(3)

	err := s.Start(map[string]any{"explode": true})
	expectKind(t, err, protocol.GameNotStarted)
	if s.Status() != StatusLobby {
		t.Error("Failed start must leave the session in lobby")
	}
}

func TestSession_StartTwice(t *testing.T) {
	s, _, _ := newTestSession(3)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	expectKind(t, s.Start(nil), protocol.GameAlreadyStarted)
}

func TestSession_ChooseBeforeStart(t *testing.T) {
	s, _, _ := newTestSession(3)
	expectKind(t, s.Choose("p1", 0, nil), protocol.GameNotStarted)
}

func TestSession_ChooseUnknownOperator(t *testing.T) {
	s, _, _ := newTestSession(3)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	expectKind(t, s.Choose("p1", 42, nil), protocol.InvalidOperator)
	if s.Step() != 0 {
		t.Error("Failed submission must not advance the step counter")
	}
}

func TestSession_DomainFailureLeavesStateUntouched(t *testing.T) {
	s, emitter, prob := newTestSession(3)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	before := len(emitter.roomEvents)
	prob.failNext = true
	expectKind(t, s.Choose("p1", 0, nil), protocol.InvalidOperator)
	if s.Step() != 0 {
		t.Error("Domain failure must not advance the step counter")
	}
	if len(emitter.roomEvents) != before {
		t.Error("Domain failure must not broadcast anything")
	}
	if !s.Active() {
		t.Error("Domain failure must not end the session")
	}

	// The session stays usable.
	if err := s.Choose("p1", 0, nil); err != nil {
		t.Fatalf("Choose after a domain failure should work, got: %v", err)
	}
}

func TestSession_ChooseAppliesAndBroadcasts(t *testing.T) {
	s, emitter, _ := newTestSession(3)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := s.Choose("p1", 0, nil); err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if s.Step() != 1 {
		t.Errorf("Expected step 1, got %d", s.Step())
	}

	names := emitter.roomEventNames()
	if names[len(names)-1] != protocol.EventOperatorApplied {
		t.Fatalf("Expected operator_applied broadcast, got %v", names)
	}
	applied := emitter.roomEvents[len(emitter.roomEvents)-1].payload.(protocol.OperatorApplied)
	if applied.Operator.OpNo != 0 || applied.Operator.Name != "Increment" {
		t.Errorf("Broadcast should echo the applied operator, got %+v", applied.Operator)
	}
}

func TestSession_TransitionMessages(t *testing.T) {
	s, emitter, _ := newTestSession(2)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// counter 0 -> 1 is one step from the target 2.
	if err := s.Choose("p1", 0, nil); err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	names := emitter.roomEventNames()
	if names[len(names)-1] != protocol.EventTransition {
		t.Fatalf("Expected a transition broadcast after operator_applied, got %v", names)
	}
}

func TestSession_TerminalEndsGame(t *testing.T) {
	s, emitter, _ := newTestSession(1)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := s.Choose("p1", 0, nil); err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if s.Status() != StatusEnded {
		t.Fatal("Reaching a terminal state must end the session")
	}

	names := emitter.roomEventNames()
	if names[len(names)-1] != protocol.EventGameEnded {
		t.Fatalf("Expected game_ended as the final broadcast, got %v", names)
	}
	ended := emitter.roomEvents[len(emitter.roomEvents)-1].payload.(protocol.GameEnded)
	if ended.Message != "counter reached the target" {
		t.Errorf("game_ended should carry the goal message, got %q", ended.Message)
	}

	// No further submissions.
	expectKind(t, s.Choose("p1", 0, nil), protocol.GameNotStarted)
}

func TestSession_EndBlocksSubmissions(t *testing.T) {
	s, _, _ := newTestSession(5)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.End("room owner aborted the game")
	if s.Status() != StatusEnded {
		t.Fatal("End must move the session to ended")
	}
	expectKind(t, s.Choose("p1", 0, nil), protocol.GameNotStarted)

	// End is idempotent.
	s.End("again")
}

func TestSession_RoleFilteredOperators(t *testing.T) {
	s, emitter, _ := newTestSession(3)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, ev := range emitter.oneEvents {
		ops := ev.payload.(protocol.OperatorsAvailable)
		switch ev.sid {
		case "p1":
			if len(ops.Operators) != 1 {
				t.Errorf("p1 should see the increment operator, got %d", len(ops.Operators))
			}
		case "p2":
			// Spectator role sees nothing.
			if len(ops.Operators) != 0 {
				t.Errorf("p2 should see no operators, got %d", len(ops.Operators))
			}
		}
	}
}

func TestSession_Summary(t *testing.T) {
	s, _, _ := newTestSession(1)
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Choose("p1", 0, nil); err != nil {
		t.Fatalf("Choose failed: %v", err)
	}

	summary := s.Summary()
	if summary.ProblemName != "count" || summary.Steps != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.FinalState != "counter=1" {
		t.Errorf("Expected final state display, got %q", summary.FinalState)
	}
	if summary.Duration < 0 {
		t.Errorf("Duration should be non-negative, got %v", summary.Duration)
	}
}

func TestStatus_TransitionGraph(t *testing.T) {
	s := &Session{status: StatusEnded}
	if err := s.transition(StatusActive); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Ended must be terminal, got: %v", err)
	}

	s = &Session{status: StatusLobby}
	if err := s.transition(StatusEnded); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Lobby cannot jump straight to ended, got: %v", err)
	}
	if err := s.transition(StatusActive); err != nil {
		t.Fatalf("Lobby -> active should be allowed, got: %v", err)
	}
	if err := s.transition(StatusEnded); err != nil {
		t.Fatalf("Active -> ended should be allowed, got: %v", err)
	}
}
