// problem/race.go
package problem

import (
	"encoding/json"
	"fmt"
)

func init() {
	Register("race", func() Problem { return &RaceProblem{} })
}

// RaceProblem is a small parameterized domain used for demos and integration
// testing: two sides alternate adding 1-3 to a shared counter, and whoever
// lands exactly on the target wins. It declares a two-role catalog, so it also
// exercises role assignment and turn-restricted operator availability.
type RaceProblem struct{}

func (p *RaceProblem) Info() Info {
	return Info{
		Name:        "Race to N",
		Version:     "1.0",
		Authors:     []string{"roomserver authors"},
		Description: "Alternate adding 1-3 to the counter; landing exactly on the target wins.",
	}
}

func (p *RaceProblem) Roles() []Role {
	one := 1
	return []Role{
		{Name: "First Mover", Min: &one, Max: &one},
		{Name: "Second Mover", Min: &one, Max: &one},
	}
}

func (p *RaceProblem) InitialState(args map[string]any) (State, error) {
	target := IntArg(args, "target", 21)
	if target < 4 {
		return nil, fmt.Errorf("race: target must be at least 4, got %d", target)
	}
	return &RaceState{Target: target}, nil
}

func (p *RaceProblem) Transitions(old, new State, opNo int) []string {
	ns := new.(*RaceState)
	if !ns.IsTerminal() && ns.Target-ns.Counter <= 3 {
		return []string{fmt.Sprintf("Only %d to go - the next move can win.", ns.Target-ns.Counter)}
	}
	return nil
}

// RaceState tracks the shared counter and whose turn it is (0 or 1).
type RaceState struct {
	Target  int `json:"target"`
	Counter int `json:"counter"`
	Turn    int `json:"turn"`
}

var raceAddSpec = []ParamSpec{{
	Name: "amount",
	Type: ParamInt,
	Min:  floatPtr(1),
	Max:  floatPtr(3),
}}

func floatPtr(v float64) *float64 { return &v }

func (s *RaceState) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

func (s *RaceState) Display() string {
	return fmt.Sprintf("Counter at %d of %d, player %d to move", s.Counter, s.Target, s.Turn+1)
}

func (s *RaceState) AvailableOperators(roles []int) []OperatorDescriptor {
	if len(roles) > 0 && !contains(roles, s.Turn) {
		return nil // not this player's turn
	}
	return []OperatorDescriptor{{
		Name:   "Add to counter",
		OpNo:   0,
		Params: raceAddSpec,
	}}
}

func contains(roles []int, want int) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func (s *RaceState) Apply(opNo int, params []any) (State, error) {
	if opNo != 0 {
		return nil, fmt.Errorf("race: no such operator %d", opNo)
	}
	if err := ValidateParams(raceAddSpec, params); err != nil {
		return nil, err
	}
	amount, _ := asNumber(params[0])
	if s.Counter+int(amount) > s.Target {
		return nil, fmt.Errorf("race: adding %d would overshoot the target", int(amount))
	}
	return &RaceState{
		Target:  s.Target,
		Counter: s.Counter + int(amount),
		Turn:    1 - s.Turn,
	}, nil
}

func (s *RaceState) IsTerminal() bool {
	return s.Counter == s.Target
}

func (s *RaceState) GoalMessage() string {
	// Turn already advanced past the winning move.
	return fmt.Sprintf("Player %d reached %d and wins!", 2-s.Turn, s.Target)
}
