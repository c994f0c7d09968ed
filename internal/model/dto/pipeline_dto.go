package dto

import "github.com/callsight/callqa_go_server/internal/model"

// RequestAnalysisRequest 发起分析请求
type RequestAnalysisRequest struct {
	CriteriaID *int64 `json:"criteria_id,omitempty"`
}

// ShareReportRequest 分享质检报告请求
type ShareReportRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TranscriptionDetail 转写详情
type TranscriptionDetail struct {
	RecordingID  int64  `json:"recording_id"`
	Status       string `json:"status"`
	Text         string `json:"text,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Attempts     int    `json:"attempts"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// AnalysisDetail 分析详情
type AnalysisDetail struct {
	RecordingID         int64             `json:"recording_id"`
	CriteriaID          *int64            `json:"criteria_id,omitempty"`
	Status              string            `json:"status"`
	OverallScore        float64           `json:"overall_score"`
	CustomerService     float64           `json:"customer_service"`
	ProductKnowledge    float64           `json:"product_knowledge"`
	CommunicationSkills float64           `json:"communication_skills"`
	ComplianceAdherence float64           `json:"compliance_adherence"`
	Strengths           []string          `json:"strengths,omitempty"`
	Improvements        []string          `json:"improvements,omitempty"`
	Recommendations     []string          `json:"recommendations,omitempty"`
	KeyMoments          []model.KeyMoment `json:"key_moments,omitempty"`
	Summary             string            `json:"summary,omitempty"`
	ErrorMessage        string            `json:"error_message,omitempty"`
	Attempts            int               `json:"attempts"`
	StartedAt           string            `json:"started_at,omitempty"`
	CompletedAt         string            `json:"completed_at,omitempty"`
}

// ScoreCardDetail 评分卡详情
type ScoreCardDetail struct {
	RecordingID         int64               `json:"recording_id"`
	CriteriaID          *int64              `json:"criteria_id,omitempty"`
	Overall             float64             `json:"overall"`
	CustomerService     float64             `json:"customer_service"`
	ProductKnowledge    float64             `json:"product_knowledge"`
	CommunicationSkills float64             `json:"communication_skills"`
	ComplianceAdherence float64             `json:"compliance_adherence"`
	RequiredPhrases     []model.PhraseCheck `json:"required_phrases,omitempty"`
	ProhibitedPhrases   []model.PhraseCheck `json:"prohibited_phrases,omitempty"`
}
