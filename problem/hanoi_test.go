package problem

import (
	"testing"
)

func newHanoi(t *testing.T, disks int) State {
	t.Helper()
	prob := &HanoiProblem{}
	state, err := prob.InitialState(map[string]any{"disks": float64(disks)})
	if err != nil {
		t.Fatalf("InitialState failed: %v", err)
	}
	return state
}

func TestHanoi_InitialState(t *testing.T) {
	state := newHanoi(t, 3).(*HanoiState)

	if len(state.Pegs[0]) != 3 || len(state.Pegs[1]) != 0 || len(state.Pegs[2]) != 0 {
		t.Fatalf("Expected all disks on peg 1, got %v", state.Pegs)
	}
	if state.IsTerminal() {
		t.Fatal("Initial state should not be terminal")
	}
}

func TestHanoi_InitialState_BadArgs(t *testing.T) {
	prob := &HanoiProblem{}
	if _, err := prob.InitialState(map[string]any{"disks": float64(0)}); err == nil {
		t.Fatal("Expected an error for zero disks")
	}
}

func TestHanoi_AvailableOperators(t *testing.T) {
	state := newHanoi(t, 3)

	ops := state.AvailableOperators(nil)
	// Only peg 1 has disks, so only the two moves off peg 1 apply.
	if len(ops) != 2 {
		t.Fatalf("Expected 2 operators in the initial state, got %d", len(ops))
	}
	for _, op := range ops {
		if op.OpNo != 0 && op.OpNo != 1 {
			t.Errorf("Unexpected operator %d available", op.OpNo)
		}
	}
}

func TestHanoi_ApplyIsImmutable(t *testing.T) {
	state := newHanoi(t, 3).(*HanoiState)

	next, err := state.Apply(1, nil) // peg 1 -> peg 3
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(state.Pegs[0]) != 3 {
		t.Error("Apply must not mutate the old state")
	}
	ns := next.(*HanoiState)
	if len(ns.Pegs[0]) != 2 || len(ns.Pegs[2]) != 1 {
		t.Errorf("Expected the top disk moved to peg 3, got %v", ns.Pegs)
	}
	if ns.Moves != 1 {
		t.Errorf("Expected move counter 1, got %d", ns.Moves)
	}
}

func TestHanoi_ApplyRejectsIllegalMove(t *testing.T) {
	state := newHanoi(t, 3)

	if _, err := state.Apply(2, nil); err == nil { // peg 2 -> peg 1, peg 2 empty
		t.Fatal("Expected an error for moving from an empty peg")
	}
}

func TestHanoi_SolveSingleDisk(t *testing.T) {
	state := newHanoi(t, 1)

	next, err := state.Apply(1, nil) // peg 1 -> peg 3
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !next.IsTerminal() {
		t.Fatal("Expected terminal state after moving the only disk to peg 3")
	}
	if next.GoalMessage() == "" {
		t.Error("Expected a goal message on the terminal state")
	}
}

func TestHanoi_TransitionOnLargestDisk(t *testing.T) {
	prob := &HanoiProblem{}
	state := newHanoi(t, 1)
	next, err := state.Apply(1, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	messages := prob.Transitions(state, next, 1)
	if len(messages) != 1 {
		t.Fatalf("Expected one transition message, got %d", len(messages))
	}
}

func TestRegistry_OpenKnownProblems(t *testing.T) {
	for _, name := range []string{"hanoi", "race"} {
		prob, err := Open(name)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", name, err)
		}
		if prob.Info().Name == "" {
			t.Errorf("Problem %q has no name", name)
		}
	}

	if _, err := Open("no-such-problem"); err == nil {
		t.Fatal("Expected an error for an unregistered problem")
	}
}
