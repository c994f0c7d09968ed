package model

import (
	"time"
)

// 用户角色
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

type User struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	Username          string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email             *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash      *string    `gorm:"size:255" json:"-"`
	Role              string     `gorm:"size:20;default:user;index" json:"role"` // admin, manager, user
	CompanyID         int64      `gorm:"not null;index" json:"company_id"`
	AvatarURL         string     `gorm:"size:500" json:"avatar_url"`
	SubscriptionLevel string     `gorm:"size:20;default:free" json:"subscription_level"`
	DailyQuota        int        `gorm:"default:10" json:"daily_quota"`
	QuotaUsedToday    int        `gorm:"default:0" json:"quota_used_today"`
	QuotaResetAt      *time.Time `json:"quota_reset_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Principal 经过认证的操作主体，所有流水线入口都显式接收它
type Principal struct {
	UserID    int64
	Role      string
	CompanyID int64
	TeamIDs   []int64
}

// IsAdmin 是否为管理员
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// InTeam 是否为指定团队成员
func (p *Principal) InTeam(teamID int64) bool {
	for _, id := range p.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
