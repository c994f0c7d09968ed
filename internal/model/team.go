package model

import (
	"time"
)

type Team struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CompanyID int64     `gorm:"not null;index" json:"company_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Team) TableName() string {
	return "teams"
}

type TeamMember struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TeamID    int64     `gorm:"not null;uniqueIndex:idx_team_user" json:"team_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_team_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (TeamMember) TableName() string {
	return "team_members"
}
