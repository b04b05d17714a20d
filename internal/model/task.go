package model

import (
	"time"

	"gorm.io/gorm"
)

// 任务状态
const (
	TaskPending  = "PENDING"
	TaskRunning  = "RUNNING"
	TaskFinished = "FINISHED"
	TaskFailed   = "FAILED"
)

// AnalysisTask 对应 analysis_tasks 表, 一次异步 AI 分析
type AnalysisTask struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Status   string `gorm:"size:16;index" json:"status"`
	Language string `gorm:"size:8" json:"language"`

	Input  string `gorm:"type:text" json:"-"` // 网络数据快照 JSON
	Result string `gorm:"type:text" json:"-"` // 分析结果 JSON
	Error  string `gorm:"size:512" json:"error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AnalysisTask) TableName() string { return "analysis_tasks" }

// Done reports whether the task reached a terminal state.
func (t *AnalysisTask) Done() bool {
	return t.Status == TaskFinished || t.Status == TaskFailed
}
