package llm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
	"overallScore": 83.25,
	"customerService": 80,
	"productKnowledge": 85,
	"communicationSkills": 78,
	"complianceAdherence": 90,
	"strengths": ["礼貌问候", "主动确认需求"],
	"improvements": ["结束语可以更完整"],
	"keyMoments": [{"timestamp": "00:32", "description": "客户表达不满"}],
	"recommendations": ["加强产品培训"],
	"summary": "整体服务质量良好"
}`

func TestParsePayload_Valid(t *testing.T) {
	result, err := ParsePayload([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, 83.25, result.OverallScore)
	assert.Equal(t, 80.0, result.CustomerService)
	assert.Equal(t, 85.0, result.ProductKnowledge)
	assert.Equal(t, 78.0, result.CommunicationSkills)
	assert.Equal(t, 90.0, result.ComplianceAdherence)
	assert.Equal(t, []string{"礼貌问候", "主动确认需求"}, result.Strengths)
	require.Len(t, result.KeyMoments, 1)
	assert.Equal(t, "00:32", result.KeyMoments[0].Timestamp)
	assert.Equal(t, "整体服务质量良好", result.Summary)
}

func TestParsePayload_CodeFences(t *testing.T) {
	fenced := "```json\n" + validPayload + "\n```"

	result, err := ParsePayload([]byte(fenced))
	require.NoError(t, err)
	assert.Equal(t, 83.25, result.OverallScore)
}

func TestParsePayload_InvalidJSON(t *testing.T) {
	payload := "抱歉，我无法分析这段通话。"

	_, err := ParsePayload([]byte(payload))

	var malformed *MalformedAnalysisError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "invalid json")
	// 原始载荷保留在错误里供排查
	assert.Equal(t, payload, malformed.Payload)
}

func TestParsePayload_MissingKeys(t *testing.T) {
	keys := []string{"overallScore", "customerService", "productKnowledge", "communicationSkills", "complianceAdherence", "summary"}

	for _, key := range keys {
		t.Run("missing "+key, func(t *testing.T) {
			payload := buildPayloadWithout(key)

			_, err := ParsePayload([]byte(payload))

			var malformed *MalformedAnalysisError
			require.ErrorAs(t, err, &malformed)
			assert.Contains(t, malformed.Reason, key)
		})
	}
}

func buildPayloadWithout(excluded string) string {
	fields := map[string]string{
		"overallScore":        "80",
		"customerService":     "80",
		"productKnowledge":    "80",
		"communicationSkills": "80",
		"complianceAdherence": "80",
		"summary":             `"ok"`,
	}
	delete(fields, excluded)

	out := "{"
	first := true
	for k, v := range fields {
		if !first {
			out += ","
		}
		out += fmt.Sprintf("%q: %s", k, v)
		first = false
	}
	return out + "}"
}

func TestParsePayload_NonNumericScore(t *testing.T) {
	payload := `{
		"overallScore": "excellent",
		"customerService": 80, "productKnowledge": 80,
		"communicationSkills": 80, "complianceAdherence": 80,
		"summary": "ok"
	}`

	_, err := ParsePayload([]byte(payload))

	var malformed *MalformedAnalysisError
	require.ErrorAs(t, err, &malformed)
}

func TestParsePayload_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"negative", -5},
		{"above hundred", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := fmt.Sprintf(`{
				"overallScore": %v,
				"customerService": 80, "productKnowledge": 80,
				"communicationSkills": 80, "complianceAdherence": 80,
				"summary": "ok"
			}`, tt.value)

			_, err := ParsePayload([]byte(payload))

			var malformed *MalformedAnalysisError
			require.ErrorAs(t, err, &malformed)
			assert.Contains(t, malformed.Reason, "out of range")
		})
	}
}

func TestParsePayload_MissingListsAreAllowed(t *testing.T) {
	payload := `{
		"overallScore": 80, "customerService": 80, "productKnowledge": 80,
		"communicationSkills": 80, "complianceAdherence": 80,
		"summary": "简短总结"
	}`

	result, err := ParsePayload([]byte(payload))
	require.NoError(t, err)
	assert.Empty(t, result.Strengths)
	assert.Empty(t, result.KeyMoments)
}
