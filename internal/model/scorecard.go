package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PhraseCheck 单条话术检查结果
type PhraseCheck struct {
	Phrase string `json:"phrase"`
	Found  bool   `json:"found"`
}

// PhraseCheckList 用于 JSON 数组字段
type PhraseCheckList []PhraseCheck

func (l PhraseCheckList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *PhraseCheckList) Scan(value interface{}) error {
	if value == nil {
		*l = []PhraseCheck{}
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

// ScoreCard 由已完成的分析和评分标准派生，只随 completed 的分析一起写入
type ScoreCard struct {
	ID                  int64           `gorm:"primaryKey" json:"id"`
	RecordingID         int64           `gorm:"not null;uniqueIndex" json:"recording_id"`
	CriteriaID          *int64          `gorm:"index" json:"criteria_id,omitempty"`
	Overall             float64         `gorm:"not null" json:"overall"`
	CustomerService     float64         `json:"customer_service"`     // 加权贡献
	ProductKnowledge    float64         `json:"product_knowledge"`    // 加权贡献
	CommunicationSkills float64         `json:"communication_skills"` // 加权贡献
	ComplianceAdherence float64         `json:"compliance_adherence"` // 加权贡献
	RequiredPhrases     PhraseCheckList `gorm:"type:json" json:"required_phrases,omitempty"`   // Found=true 表示命中
	ProhibitedPhrases   PhraseCheckList `gorm:"type:json" json:"prohibited_phrases,omitempty"` // Found=true 表示违规
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (ScoreCard) TableName() string {
	return "score_cards"
}
