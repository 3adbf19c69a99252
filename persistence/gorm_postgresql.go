// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/roomserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormRoomSnapshot{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存对局记录
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := models.GormGameRecord{
		RoomName:    record.RoomName,
		ProblemName: record.ProblemName,
		Steps:       record.Steps,
		Players:     playersToJSONB(record.Players),
		FinalState:  record.FinalState,
		Duration:    int(record.Duration.Seconds()),
	}
	return p.db.Create(&row).Error
}

// ListGameRecords 查询某个房间最近的对局记录
func (p *GormPostgreSQL) ListGameRecords(roomName string, limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	query := p.db.Order("created_at DESC")
	if roomName != "" {
		query = query.Where("room_name = ?", roomName)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.GameRecord{
			RoomName:    row.RoomName,
			ProblemName: row.ProblemName,
			Steps:       row.Steps,
			Players:     playersFromJSONB(row.Players),
			FinalState:  row.FinalState,
			Duration:    time.Duration(row.Duration) * time.Second,
			CreatedAt:   row.CreatedAt,
		})
	}
	return records, nil
}

// SaveRoomSnapshot 保存房间快照（UPSERT）
func (p *GormPostgreSQL) SaveRoomSnapshot(snapshot *models.RoomSnapshot) error {
	members := make(map[string]interface{}, len(snapshot.Members))
	for _, member := range snapshot.Members {
		members[member.SID] = map[string]interface{}{
			"name":  member.Name,
			"roles": member.Roles,
		}
	}

	var row models.GormRoomSnapshot
	result := p.db.Where("room_name = ?", snapshot.RoomName).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormRoomSnapshot{
			RoomName:    snapshot.RoomName,
			ProblemName: snapshot.ProblemName,
			OwnerSID:    snapshot.OwnerSID,
			InGame:      snapshot.InGame,
			Members:     members,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.OwnerSID = snapshot.OwnerSID
	row.InGame = snapshot.InGame
	row.Members = members
	row.UpdatedAt = time.Now()
	return p.db.Save(&row).Error
}

// DeleteRoomSnapshot 删除房间快照
func (p *GormPostgreSQL) DeleteRoomSnapshot(roomName string) error {
	return p.db.Where("room_name = ?", roomName).Delete(&models.GormRoomSnapshot{}).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持：fn 中的写操作都走事务连接
func (p *GormPostgreSQL) Transaction(fn func(store Database) error) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormPostgreSQL{db: tx})
	})
}

// RoomStats 高级查询：按房间聚合对局数据
func (p *GormPostgreSQL) RoomStats(roomName string) (*models.RoomStats, error) {
	var stats models.RoomStats

	err := p.db.Raw(
		`
        SELECT
            COUNT(*) as total_games,
            COALESCE(SUM(steps), 0) as total_steps,
            COALESCE(AVG(duration), 0) as avg_duration
        FROM gorm_game_records
        WHERE room_name = ? AND deleted_at IS NULL`,
		roomName,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func playersToJSONB(players map[string][]int) map[string]interface{} {
	result := make(map[string]interface{}, len(players))
	for sid, roles := range players {
		result[sid] = roles
	}
	return result
}

func playersFromJSONB(data map[string]interface{}) map[string][]int {
	result := make(map[string][]int, len(data))
	for sid, raw := range data {
		list, ok := raw.([]interface{})
		if !ok {
			continue
		}
		roles := make([]int, 0, len(list))
		for _, v := range list {
			if f, ok := v.(float64); ok {
				roles = append(roles, int(f))
			}
		}
		result[sid] = roles
	}
	return result
}
