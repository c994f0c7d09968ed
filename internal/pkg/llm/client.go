package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/callsight/callqa_go_server/config"
)

const defaultModel = "gemini-2.5-flash"

// Weights 分析时传给模型的类别权重，用于提示模型各维度的侧重
type Weights struct {
	CustomerService     float64
	ProductKnowledge    float64
	CommunicationSkills float64
	ComplianceAdherence float64
}

// UpstreamError 模型服务调用失败（含超时）
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm request failed: %s", e.Detail)
}

// Client 大模型质检分析客户端：单次请求/响应，固定系统指令，
// 响应按不可信外部载荷做严格解析。
type Client struct {
	genaiClient *genai.Client
	model       string
	timeout     time.Duration
}

func NewClient(ctx context.Context, cfg *config.LLMConfig) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		genaiClient: genaiClient,
		model:       model,
		timeout:     timeout,
	}, nil
}

// Analyze 提交转写文本和权重，返回经过校验的结构化分析结果。
// 解析/校验失败返回 *MalformedAnalysisError，调用失败返回 *UpstreamError。
func (c *Client) Analyze(ctx context.Context, transcript string, weights Weights) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(transcript, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemInstruction(weights), genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	result, err := c.genaiClient.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, &UpstreamError{Detail: err.Error()}
	}

	return ParsePayload([]byte(result.Text()))
}

// buildSystemInstruction 固定的质检分析指令，要求返回指定键集合的 JSON
func buildSystemInstruction(w Weights) string {
	var b strings.Builder
	b.WriteString("You are a call-center quality assurance analyst. ")
	b.WriteString("Analyze the customer service call transcript provided by the user.\n\n")
	b.WriteString("Respond with a single JSON object containing exactly these keys:\n")
	b.WriteString(`{
  "overallScore": <number 0-100>,
  "customerService": <number 0-100>,
  "productKnowledge": <number 0-100>,
  "communicationSkills": <number 0-100>,
  "complianceAdherence": <number 0-100>,
  "strengths": [<strings>],
  "improvements": [<strings>],
  "keyMoments": [{"timestamp": <string>, "description": <string>}],
  "recommendations": [<strings>],
  "summary": <string>
}`)
	b.WriteString("\n\nScoring emphasis (category weights out of 100): ")
	b.WriteString(fmt.Sprintf("customerService=%.0f, productKnowledge=%.0f, communicationSkills=%.0f, complianceAdherence=%.0f.",
		w.CustomerService, w.ProductKnowledge, w.CommunicationSkills, w.ComplianceAdherence))
	b.WriteString("\nReturn only the JSON object, no markdown, no commentary.")
	return b.String()
}
