// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGameRecord 持久化的对局记录
type GormGameRecord struct {
	gorm.Model
	RoomName    string                 `gorm:"index;not null"`
	ProblemName string                 `gorm:"not null"`
	Steps       int                    `gorm:"default:0"`
	Players     map[string]interface{} `gorm:"type:jsonb"`
	FinalState  string
	Duration    int `gorm:"default:0"` // 对局时长(秒)
}

// GormRoomSnapshot 房间快照
type GormRoomSnapshot struct {
	gorm.Model
	RoomName    string                 `gorm:"uniqueIndex;not null"`
	ProblemName string                 `gorm:"not null"`
	OwnerSID    string                 `gorm:"not null"`
	InGame      bool                   `gorm:"default:false"`
	Members     map[string]interface{} `gorm:"type:jsonb"`
}
