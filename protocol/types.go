// protocol/types.go
package protocol

import "encoding/json"

// Envelope is the frame every message travels in. Seq correlates a request
// with its reply; zero means no reply is expected.
type Envelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- Client -> server payloads ---

type CreateRoom struct {
	Room string `json:"room"`
}

type DeleteRoom struct {
	Room string `json:"room"`
}

type JoinRoom struct {
	Room     string  `json:"room"`
	Username *string `json:"username,omitempty"`
}

type SetName struct {
	Name string `json:"name"`
}

type SetRoles struct {
	Roles []int `json:"roles"`
}

type StartGame struct {
	Args map[string]any `json:"args,omitempty"`
}

type OperatorChosen struct {
	OpNo   int   `json:"op_no"`
	Params []any `json:"params,omitempty"`
}

// --- Server -> client payloads ---

type YourSID struct {
	SID string `json:"sid"`
}

type RoomCreated struct {
	Room     string `json:"room"`
	OwnerSID string `json:"owner_sid"`
}

type RoomDeleted struct {
	Room string `json:"room"`
}

type RoomJoined struct {
	Username string `json:"username"`
}

type RoomLeft struct {
	Username string `json:"username"`
}

// Player is the member view embedded in Room.
type Player struct {
	SID   string `json:"sid"`
	Name  string `json:"name"`
	Roles []int  `json:"roles"`
}

// Room is the catch-all room snapshot used by room_changed and list_rooms.
type Room struct {
	Room    string   `json:"room"`
	Owner   string   `json:"owner"`
	InGame  bool     `json:"in_game"`
	Players []Player `json:"players"`
}

type RolesChanged struct {
	Username string `json:"username"`
	Roles    []int  `json:"roles"`
}

type GameStarted struct {
	State   *string `json:"state"`
	Message string  `json:"message"`
}

type GameEnded struct {
	Message string `json:"message"`
}

type AppliedOperator struct {
	Name   string `json:"name"`
	OpNo   int    `json:"op_no"`
	Params []any  `json:"params"`
}

type OperatorApplied struct {
	State    *string         `json:"state"`
	Message  string          `json:"message"`
	Operator AppliedOperator `json:"operator"`
}

// ParamSpec describes one typed operator parameter.
type ParamSpec struct {
	Name string   `json:"name"`
	Type string   `json:"type"` // "int" | "float" | "str"
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
}

type OperatorElement struct {
	Name   string      `json:"name"`
	OpNo   int         `json:"op_no"`
	Params []ParamSpec `json:"params"`
}

type OperatorsAvailable struct {
	Operators []OperatorElement `json:"operators"`
}

type Transition struct {
	Message string `json:"message"`
}

// Role is one catalog entry of the loaded problem.
type Role struct {
	Name string `json:"name"`
	Min  *int   `json:"min"`
	Max  *int   `json:"max"`
}

type ListRolesReply struct {
	Roles []Role `json:"roles"`
}

type ListRoomsReply struct {
	Rooms []Room `json:"rooms"`
}

type InfoReply struct {
	ServerVersion  string   `json:"server_version"`
	ProblemName    string   `json:"problem_name"`
	ProblemVersion string   `json:"problem_version"`
	ProblemAuthors []string `json:"problem_authors"`
	ProblemDesc    string   `json:"problem_desc"`
}
