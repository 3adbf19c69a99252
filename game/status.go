// game/status.go
package game

import "errors"

// Status is the lifecycle state of a game session.
type Status int

const (
	StatusLobby Status = iota
	StatusActive
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ErrTransitionNotAllowed is returned when a status transition is not allowed.
var ErrTransitionNotAllowed = errors.New("game status transition not allowed")

// transitions is the complete status graph: Lobby -> Active -> Ended, with
// Ended terminal.
var transitions = map[Status][]Status{
	StatusLobby:  {StatusActive},
	StatusActive: {StatusEnded},
	StatusEnded:  {},
}

// transition moves the session to a new status, enforcing the graph.
func (s *Session) transition(to Status) error {
	for _, allowed := range transitions[s.status] {
		if allowed == to {
			s.status = to
			return nil
		}
	}
	return ErrTransitionNotAllowed
}
