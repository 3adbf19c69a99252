// models/models.go
package models

import (
	"time"
)

// GameRecord captures one finished game for persistence.
type GameRecord struct {
	RoomName    string           `json:"room_name"`
	ProblemName string           `json:"problem_name"`
	Steps       int              `json:"steps"`
	Players     map[string][]int `json:"players"` // sid -> role numbers
	FinalState  string           `json:"final_state"`
	Duration    time.Duration    `json:"duration"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RoomSnapshot is the persisted view of a live room, refreshed on membership
// and game changes. Snapshots are diagnostic only; rooms do not survive a
// restart.
type RoomSnapshot struct {
	RoomName    string    `json:"room_name"`
	ProblemName string    `json:"problem_name"`
	OwnerSID    string    `json:"owner_sid"`
	InGame      bool      `json:"in_game"`
	Members     []Member  `json:"members"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoomStats aggregates the finished games of one room.
type RoomStats struct {
	TotalGames  int64   `json:"total_games"`
	TotalSteps  int64   `json:"total_steps"`
	AvgDuration float64 `json:"avg_duration"` // 秒
}

// Member is one room member inside a RoomSnapshot.
type Member struct {
	SID   string `json:"sid"`
	Name  string `json:"name"`
	Roles []int  `json:"roles"`
}
