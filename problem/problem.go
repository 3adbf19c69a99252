// problem/problem.go
package problem

import (
	"fmt"
	"sort"
	"sync"
)

// ParamType is the wire type of an operator parameter.
type ParamType string

const (
	ParamInt   ParamType = "int"
	ParamFloat ParamType = "float"
	ParamStr   ParamType = "str"
)

// ParamSpec describes one typed, optionally bounded operator parameter.
type ParamSpec struct {
	Name string
	Type ParamType
	Min  *float64
	Max  *float64
}

// OperatorDescriptor identifies an operator within a session. OpNo is stable
// for the lifetime of a session but not across sessions.
type OperatorDescriptor struct {
	Name   string
	OpNo   int
	Params []ParamSpec
}

// Role is a static catalog entry declared by the problem. Nil Min/Max means
// unbounded in that direction.
type Role struct {
	Name string
	Min  *int
	Max  *int
}

// Info carries problem metadata for the info request.
type Info struct {
	Name        string
	Version     string
	Authors     []string
	Description string
}

// State is the capability interface the session engine depends on. The engine
// never inspects the concrete state shape.
type State interface {
	// Serialize returns an opaque blob for clients that reconstruct state
	// locally. A nil slice is valid for problems without a serial form.
	Serialize() ([]byte, error)

	// Display returns the human-readable rendering of the state.
	Display() string

	// AvailableOperators lists the operators applicable in this state for a
	// holder of the given roles. Empty or nil roles means unrestricted.
	AvailableOperators(roles []int) []OperatorDescriptor

	// Apply produces the successor state. It must not mutate the receiver;
	// an error leaves the session state untouched.
	Apply(opNo int, params []any) (State, error)

	// IsTerminal reports whether the state ends the game.
	IsTerminal() bool

	// GoalMessage is the end-of-game text, meaningful once IsTerminal is true.
	GoalMessage() string
}

// Problem is the pluggable domain behind a server instance.
type Problem interface {
	Info() Info

	// Roles returns the static role catalog, or nil for roleless problems.
	Roles() []Role

	// InitialState constructs the starting state. args is the opaque
	// configuration bag from start_game, passed through verbatim.
	InitialState(args map[string]any) (State, error)

	// Transitions returns narrative messages for the old->new transition,
	// in emission order. Most problems return nil.
	Transitions(old, new State, opNo int) []string
}

// --- registry ---

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Problem)
)

// Register makes a problem constructor available under name. Problems
// register from their init functions; duplicate names panic.
func Register(name string, factory func() Problem) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("problem: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open instantiates the registered problem with the given name.
func Open(name string) (Problem, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("problem: unknown problem %q (registered: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists the registered problem names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
