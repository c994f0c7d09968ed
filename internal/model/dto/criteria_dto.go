package dto

// SaveCriteriaRequest 创建/更新评分标准请求
type SaveCriteriaRequest struct {
	Name                string   `json:"name" binding:"required,max=100"`
	CustomerService     float64  `json:"customer_service" binding:"min=0,max=100"`
	ProductKnowledge    float64  `json:"product_knowledge" binding:"min=0,max=100"`
	CommunicationSkills float64  `json:"communication_skills" binding:"min=0,max=100"`
	ComplianceAdherence float64  `json:"compliance_adherence" binding:"min=0,max=100"`
	RequiredPhrases     []string `json:"required_phrases,omitempty" binding:"omitempty,max=50,dive,max=200"`
	ProhibitedPhrases   []string `json:"prohibited_phrases,omitempty" binding:"omitempty,max=50,dive,max=200"`
}

// CriteriaDetail 评分标准详情
type CriteriaDetail struct {
	ID                  int64    `json:"id"`
	Name                string   `json:"name"`
	CustomerService     float64  `json:"customer_service"`
	ProductKnowledge    float64  `json:"product_knowledge"`
	CommunicationSkills float64  `json:"communication_skills"`
	ComplianceAdherence float64  `json:"compliance_adherence"`
	RequiredPhrases     []string `json:"required_phrases,omitempty"`
	ProhibitedPhrases   []string `json:"prohibited_phrases,omitempty"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}
