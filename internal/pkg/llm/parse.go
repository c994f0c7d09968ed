package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnalysisResult 校验通过的结构化分析结果
type AnalysisResult struct {
	OverallScore        float64
	CustomerService     float64
	ProductKnowledge    float64
	CommunicationSkills float64
	ComplianceAdherence float64
	Strengths           []string
	Improvements        []string
	KeyMoments          []KeyMoment
	Recommendations     []string
	Summary             string
}

type KeyMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// MalformedAnalysisError 模型响应未通过 schema/取值范围校验。
// 携带原始载荷以便排查。
type MalformedAnalysisError struct {
	Reason  string
	Payload string
}

func (e *MalformedAnalysisError) Error() string {
	return fmt.Sprintf("malformed analysis response: %s", e.Reason)
}

// rawAnalysis 指针字段用来区分「缺键」和「零值」
type rawAnalysis struct {
	OverallScore        *float64    `json:"overallScore"`
	CustomerService     *float64    `json:"customerService"`
	ProductKnowledge    *float64    `json:"productKnowledge"`
	CommunicationSkills *float64    `json:"communicationSkills"`
	ComplianceAdherence *float64    `json:"complianceAdherence"`
	Strengths           []string    `json:"strengths"`
	Improvements        []string    `json:"improvements"`
	KeyMoments          []KeyMoment `json:"keyMoments"`
	Recommendations     []string    `json:"recommendations"`
	Summary             *string     `json:"summary"`
}

// ParsePayload 把模型的自由文本响应解析为 AnalysisResult。
// 缺键、非数值、超出 [0,100] 都返回 *MalformedAnalysisError，
// 不填默认值。
func ParsePayload(payload []byte) (*AnalysisResult, error) {
	cleaned := stripCodeFences(string(payload))

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &MalformedAnalysisError{
			Reason:  fmt.Sprintf("invalid json: %v", err),
			Payload: string(payload),
		}
	}

	scores := []struct {
		name  string
		value *float64
	}{
		{"overallScore", raw.OverallScore},
		{"customerService", raw.CustomerService},
		{"productKnowledge", raw.ProductKnowledge},
		{"communicationSkills", raw.CommunicationSkills},
		{"complianceAdherence", raw.ComplianceAdherence},
	}

	for _, s := range scores {
		if s.value == nil {
			return nil, &MalformedAnalysisError{
				Reason:  fmt.Sprintf("missing required key %q", s.name),
				Payload: string(payload),
			}
		}
		if *s.value < 0 || *s.value > 100 {
			return nil, &MalformedAnalysisError{
				Reason:  fmt.Sprintf("key %q out of range: %v", s.name, *s.value),
				Payload: string(payload),
			}
		}
	}

	if raw.Summary == nil {
		return nil, &MalformedAnalysisError{
			Reason:  `missing required key "summary"`,
			Payload: string(payload),
		}
	}

	result := &AnalysisResult{
		OverallScore:        clamp(*raw.OverallScore),
		CustomerService:     clamp(*raw.CustomerService),
		ProductKnowledge:    clamp(*raw.ProductKnowledge),
		CommunicationSkills: clamp(*raw.CommunicationSkills),
		ComplianceAdherence: clamp(*raw.ComplianceAdherence),
		Strengths:           raw.Strengths,
		Improvements:        raw.Improvements,
		KeyMoments:          raw.KeyMoments,
		Recommendations:     raw.Recommendations,
		Summary:             *raw.Summary,
	}

	return result, nil
}

// clamp 校验后的浮点噪声防护
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// stripCodeFences 去掉模型偶尔包裹的 markdown 代码块
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
