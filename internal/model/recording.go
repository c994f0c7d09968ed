package model

import (
	"time"
)

type Recording struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	UserID          int64     `gorm:"not null;index" json:"user_id"`
	TeamID          *int64    `gorm:"index" json:"team_id,omitempty"`
	EmployeeID      *int64    `gorm:"index" json:"employee_id,omitempty"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	StorageKey      string    `gorm:"size:500;not null" json:"storage_key"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	FileSize        int64     `json:"file_size,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Recording) TableName() string {
	return "recordings"
}
