package model

import "time"

// NetworkSnapshot 对应 network_snapshots 表, poller 每轮写一条
type NetworkSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Tick       uint64    `gorm:"index" json:"tick"`
	Epoch      int64     `json:"epoch"`
	DurationMs int64     `json:"duration_ms"`
	Health     string    `gorm:"size:16" json:"health"`
	Trend      string    `gorm:"size:16" json:"trend"`
	DataSource string    `gorm:"size:16" json:"data_source"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (NetworkSnapshot) TableName() string { return "network_snapshots" }
