package model

import (
	"time"
)

// Criteria 评分标准：四项权重之和必须为 100，保存时校验，流水线只读不改
type Criteria struct {
	ID                  int64       `gorm:"primaryKey" json:"id"`
	CompanyID           int64       `gorm:"not null;index" json:"company_id"`
	Name                string      `gorm:"size:100;not null" json:"name"`
	CustomerService     float64     `gorm:"not null" json:"customer_service"`
	ProductKnowledge    float64     `gorm:"not null" json:"product_knowledge"`
	CommunicationSkills float64     `gorm:"not null" json:"communication_skills"`
	ComplianceAdherence float64     `gorm:"not null" json:"compliance_adherence"`
	RequiredPhrases     StringArray `gorm:"type:json" json:"required_phrases,omitempty"`
	ProhibitedPhrases   StringArray `gorm:"type:json" json:"prohibited_phrases,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (Criteria) TableName() string {
	return "criteria"
}

// Weights 提取四项类别权重
func (c *Criteria) Weights() (customerService, productKnowledge, communicationSkills, complianceAdherence float64) {
	return c.CustomerService, c.ProductKnowledge, c.CommunicationSkills, c.ComplianceAdherence
}
