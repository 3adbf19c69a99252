// services/record_service.go
package services

import (
	"time"

	"github.com/wfunc/roomserver/game"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/protocol"
)

// RecordService persists finished games and live room snapshots. A nil
// database makes every method a no-op, so persistence stays optional.
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

func (s *RecordService) Enabled() bool {
	return s != nil && s.db != nil
}

// SaveGameSummary writes one finished game. When the store supports
// transactions, the record insert and the snapshot refresh commit together.
func (s *RecordService) SaveGameSummary(summary *game.Summary, roomSnapshot *protocol.Room) error {
	if !s.Enabled() {
		return nil
	}

	record := &models.GameRecord{
		RoomName:    summary.RoomName,
		ProblemName: summary.ProblemName,
		Steps:       summary.Steps,
		Players:     summary.Players,
		FinalState:  summary.FinalState,
		Duration:    summary.Duration,
		CreatedAt:   time.Now(),
	}

	if tx, ok := s.db.(persistence.Transactor); ok && roomSnapshot != nil {
		// Both writes go through the transaction-bound store, so a failed
		// snapshot refresh rolls the record back too.
		return tx.Transaction(func(store persistence.Database) error {
			if err := store.SaveGameRecord(record); err != nil {
				return err
			}
			return store.SaveRoomSnapshot(toSnapshot(summary.ProblemName, roomSnapshot))
		})
	}

	if err := s.db.SaveGameRecord(record); err != nil {
		return err
	}
	if roomSnapshot != nil {
		return s.db.SaveRoomSnapshot(toSnapshot(summary.ProblemName, roomSnapshot))
	}
	return nil
}

// SyncRoom refreshes the persisted snapshot of a live room.
func (s *RecordService) SyncRoom(problemName string, snapshot *protocol.Room) error {
	if !s.Enabled() || snapshot == nil {
		return nil
	}
	return s.db.SaveRoomSnapshot(toSnapshot(problemName, snapshot))
}

// DropRoom removes the snapshot of a deleted room.
func (s *RecordService) DropRoom(roomName string) error {
	if !s.Enabled() {
		return nil
	}
	return s.db.DeleteRoomSnapshot(roomName)
}

// RoomStats aggregates the persisted games of one room, for stores that
// support it. A nil result with a nil error means no stats are available.
func (s *RecordService) RoomStats(roomName string) (*models.RoomStats, error) {
	if !s.Enabled() {
		return nil, nil
	}
	provider, ok := s.db.(persistence.StatsProvider)
	if !ok {
		return nil, nil
	}
	return provider.RoomStats(roomName)
}

// RoomHistory lists the most recent finished games, optionally filtered by
// room name.
func (s *RecordService) RoomHistory(roomName string, limit int) ([]models.GameRecord, error) {
	if !s.Enabled() {
		return nil, nil
	}
	return s.db.ListGameRecords(roomName, limit)
}

func toSnapshot(problemName string, room *protocol.Room) *models.RoomSnapshot {
	members := make([]models.Member, 0, len(room.Players))
	for _, player := range room.Players {
		members = append(members, models.Member{
			SID:   player.SID,
			Name:  player.Name,
			Roles: player.Roles,
		})
	}
	return &models.RoomSnapshot{
		RoomName:    room.Room,
		ProblemName: problemName,
		OwnerSID:    room.Owner,
		InGame:      room.InGame,
		Members:     members,
		UpdatedAt:   time.Now(),
	}
}
