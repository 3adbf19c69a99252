// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/roomserver/models"
)

// PostgreSQL 数据库实现（不使用 ORM）
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_name VARCHAR(255) NOT NULL,
            problem_name VARCHAR(255) NOT NULL,
            steps INT NOT NULL DEFAULT 0,
            players JSONB NOT NULL,
            final_state TEXT,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS room_snapshots (
            id SERIAL PRIMARY KEY,
            room_name VARCHAR(255) UNIQUE NOT NULL,
            problem_name VARCHAR(255) NOT NULL,
            owner_sid VARCHAR(64) NOT NULL,
            in_game BOOLEAN NOT NULL DEFAULT FALSE,
            members JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_room_name ON game_records(room_name);
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
        CREATE INDEX IF NOT EXISTS idx_room_snapshots_room_name ON room_snapshots(room_name);
    `)

	return err
}

// SaveGameRecord 保存对局记录
func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO game_records (room_name, problem_name, steps, players, final_state, duration)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomName,
		record.ProblemName,
		record.Steps,
		players,
		record.FinalState,
		int(record.Duration.Seconds()))
	return err
}

// ListGameRecords 查询某个房间最近的对局记录
func (p *PostgreSQL) ListGameRecords(roomName string, limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT room_name, problem_name, steps, players, final_state, duration, created_at
        FROM game_records
        WHERE ($1 = '' OR room_name = $1)
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := p.db.QueryContext(ctx, query, roomName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var record models.GameRecord
		var players []byte
		var duration int
		if err := rows.Scan(&record.RoomName, &record.ProblemName, &record.Steps,
			&players, &record.FinalState, &duration, &record.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &record.Players); err != nil {
			return nil, err
		}
		record.Duration = time.Duration(duration) * time.Second
		records = append(records, record)
	}
	return records, rows.Err()
}

// SaveRoomSnapshot 保存房间快照 (UPSERT, PostgreSQL 9.5+)
func (p *PostgreSQL) SaveRoomSnapshot(snapshot *models.RoomSnapshot) error {
	members, err := json.Marshal(snapshot.Members)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO room_snapshots (room_name, problem_name, owner_sid, in_game, members)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (room_name)
        DO UPDATE SET owner_sid = $3, in_game = $4, members = $5, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query,
		snapshot.RoomName, snapshot.ProblemName, snapshot.OwnerSID, snapshot.InGame, members)
	return err
}

// DeleteRoomSnapshot 删除房间快照
func (p *PostgreSQL) DeleteRoomSnapshot(roomName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM room_snapshots WHERE room_name = $1`, roomName)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
