// problem/hanoi.go
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func init() {
	Register("hanoi", func() Problem { return &HanoiProblem{} })
}

// HanoiProblem is the built-in Towers of Hanoi domain: three pegs, a
// configurable number of disks, and one move operator per ordered peg pair.
type HanoiProblem struct{}

func (p *HanoiProblem) Info() Info {
	return Info{
		Name:        "Towers of Hanoi",
		Version:     "1.0",
		Authors:     []string{"roomserver authors"},
		Description: "Move all disks to the third peg. Only a smaller disk may rest on a larger one.",
	}
}

func (p *HanoiProblem) Roles() []Role { return nil }

func (p *HanoiProblem) InitialState(args map[string]any) (State, error) {
	disks := IntArg(args, "disks", 3)
	if disks < 1 || disks > 12 {
		return nil, fmt.Errorf("hanoi: disks must be between 1 and 12, got %d", disks)
	}

	state := &HanoiState{Disks: disks}
	for d := disks; d >= 1; d-- {
		state.Pegs[0] = append(state.Pegs[0], d)
	}
	return state, nil
}

func (p *HanoiProblem) Transitions(old, new State, opNo int) []string {
	ns, ok := new.(*HanoiState)
	if !ok {
		return nil
	}
	// Announce the moment the largest disk reaches the goal peg.
	os := old.(*HanoiState)
	if bottom(ns.Pegs[2]) == ns.Disks && bottom(os.Pegs[2]) != ns.Disks {
		return []string{"The largest disk has reached the final peg."}
	}
	return nil
}

func bottom(peg []int) int {
	if len(peg) == 0 {
		return 0
	}
	return peg[0]
}

// HanoiState holds the three pegs, each a bottom-to-top stack of disk sizes.
type HanoiState struct {
	Disks int      `json:"disks"`
	Pegs  [3][]int `json:"pegs"`
	Moves int      `json:"moves"`
}

// hanoiMoves enumerates every ordered peg pair. The slice index is the
// operator number for the whole session.
var hanoiMoves = [][2]int{
	{0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 0}, {2, 1},
}

func (s *HanoiState) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

func (s *HanoiState) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Towers of Hanoi (%d moves)\n", s.Moves)
	for i, peg := range s.Pegs {
		fmt.Fprintf(&b, "  peg %d:", i+1)
		for _, disk := range peg {
			fmt.Fprintf(&b, " %d", disk)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *HanoiState) AvailableOperators(roles []int) []OperatorDescriptor {
	var ops []OperatorDescriptor
	for opNo, move := range hanoiMoves {
		if s.canMove(move[0], move[1]) {
			ops = append(ops, OperatorDescriptor{
				Name: fmt.Sprintf("Move disk from peg %d to peg %d", move[0]+1, move[1]+1),
				OpNo: opNo,
			})
		}
	}
	return ops
}

func (s *HanoiState) canMove(from, to int) bool {
	if len(s.Pegs[from]) == 0 {
		return false
	}
	moving := s.Pegs[from][len(s.Pegs[from])-1]
	if len(s.Pegs[to]) == 0 {
		return true
	}
	return moving < s.Pegs[to][len(s.Pegs[to])-1]
}

func (s *HanoiState) Apply(opNo int, params []any) (State, error) {
	if opNo < 0 || opNo >= len(hanoiMoves) {
		return nil, fmt.Errorf("hanoi: no such operator %d", opNo)
	}
	move := hanoiMoves[opNo]
	if !s.canMove(move[0], move[1]) {
		return nil, errors.New("hanoi: move not applicable in this state")
	}

	next := s.clone()
	from, to := &next.Pegs[move[0]], &next.Pegs[move[1]]
	disk := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, disk)
	next.Moves++
	return next, nil
}

func (s *HanoiState) clone() *HanoiState {
	next := &HanoiState{Disks: s.Disks, Moves: s.Moves}
	for i, peg := range s.Pegs {
		next.Pegs[i] = append([]int(nil), peg...)
	}
	return next
}

func (s *HanoiState) IsTerminal() bool {
	return len(s.Pegs[2]) == s.Disks
}

func (s *HanoiState) GoalMessage() string {
	return fmt.Sprintf("Solved in %d moves!", s.Moves)
}
