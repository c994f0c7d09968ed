package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray 用于 JSON 数组字段
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// KeyMoment 通话中的关键时刻
type KeyMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// KeyMomentList 用于 JSON 数组字段
type KeyMomentList []KeyMoment

func (l KeyMomentList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *KeyMomentList) Scan(value interface{}) error {
	if value == nil {
		*l = []KeyMoment{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, l)
}

type Analysis struct {
	ID                  int64         `gorm:"primaryKey" json:"id"`
	RecordingID         int64         `gorm:"not null;uniqueIndex" json:"recording_id"`
	CriteriaID          *int64        `gorm:"index" json:"criteria_id,omitempty"`
	Status              string        `gorm:"size:20;default:pending;index" json:"status"` // pending, processing, completed, failed
	OverallScore        float64       `json:"overall_score"`
	CustomerService     float64       `json:"customer_service"`
	ProductKnowledge    float64       `json:"product_knowledge"`
	CommunicationSkills float64       `json:"communication_skills"`
	ComplianceAdherence float64       `json:"compliance_adherence"`
	Strengths           StringArray   `gorm:"type:json" json:"strengths,omitempty"`
	Improvements        StringArray   `gorm:"type:json" json:"improvements,omitempty"`
	Recommendations     StringArray   `gorm:"type:json" json:"recommendations,omitempty"`
	KeyMoments          KeyMomentList `gorm:"type:json" json:"key_moments,omitempty"`
	Summary             string        `gorm:"type:text" json:"summary,omitempty"`
	ErrorMessage        string        `gorm:"type:text" json:"error_message,omitempty"`
	Attempts            int           `gorm:"default:0" json:"attempts"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (Analysis) TableName() string {
	return "analyses"
}
