// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/roomserver/models"
)

// Database 数据库接口
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	ListGameRecords(roomName string, limit int) ([]models.GameRecord, error)
	SaveRoomSnapshot(snapshot *models.RoomSnapshot) error
	DeleteRoomSnapshot(roomName string) error
	Close() error
}

// Transactor is implemented by stores that can run multi-statement work in a
// transaction. fn receives a store bound to the transaction; writes on the
// original store would escape it. The GORM store supports this; the raw
// lib/pq store does not.
type Transactor interface {
	Transaction(fn func(store Database) error) error
}

// StatsProvider is implemented by stores that can aggregate game history.
type StatsProvider interface {
	RoomStats(roomName string) (*models.RoomStats, error)
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
