package model

import (
	"time"
)

// 阶段状态。转写和分析共用同一套状态机：
// pending → processing → completed/failed，failed 可经显式重试回到 processing。
const (
	StagePending    = "pending"
	StageProcessing = "processing"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

type Transcription struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	RecordingID  int64      `gorm:"not null;uniqueIndex" json:"recording_id"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"` // pending, processing, completed, failed
	Text         string     `gorm:"type:text" json:"text,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	JobID        string     `gorm:"size:100" json:"job_id,omitempty"` // 上游转写任务 ID
	Attempts     int        `gorm:"default:0" json:"attempts"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Transcription) TableName() string {
	return "transcriptions"
}
