package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/callsight/callqa_go_server/config"
)

// 本地终态。上游词汇表映射到 completed/failed，其余一律视为进行中。
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// UpstreamError 语音转写服务调用失败
type UpstreamError struct {
	Op      string
	Detail  string
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stt %s timed out: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("stt %s failed: %s", e.Op, e.Detail)
}

// Result 一次轮询的结果
type Result struct {
	Status string // processing, completed, failed
	Text   string
	Detail string // failed 时的错误详情
}

// Client 第三方语音转写服务的纯适配器：提交任务、轮询直到终态。
// 不持有任何本地状态。
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

func NewClient(cfg *config.STTConfig) *Client {
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 3 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: 12 * time.Second},
		pollInterval: interval,
	}
}

type submitRequest struct {
	AudioURL    string `json:"audio_url"`
	Diarization bool   `json:"diarization"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"` // queued, processing, completed, error
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Submit 提交转写任务，返回上游任务 ID
func (c *Client) Submit(ctx context.Context, audioURL string, diarize bool) (string, error) {
	body, err := json.Marshal(&submitRequest{AudioURL: audioURL, Diarization: diarize})
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/transcriptions", body, &resp); err != nil {
		return "", &UpstreamError{Op: "submit", Detail: err.Error()}
	}

	if resp.JobID == "" {
		return "", &UpstreamError{Op: "submit", Detail: fmt.Sprintf("no job id in response, reason=%s", resp.Reason)}
	}

	return resp.JobID, nil
}

// Poll 查询一次任务状态，把上游状态映射到本地终态集合
func (c *Client) Poll(ctx context.Context, jobID string) (*Result, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/transcriptions/"+jobID, nil, &resp); err != nil {
		return nil, &UpstreamError{Op: "poll", Detail: err.Error()}
	}

	switch strings.ToLower(resp.Status) {
	case "completed":
		return &Result{Status: StatusCompleted, Text: resp.Text}, nil
	case "error":
		return &Result{Status: StatusFailed, Detail: resp.Error}, nil
	default:
		// queued、processing 或任何未知状态都视为进行中
		return &Result{Status: StatusProcessing}, nil
	}
}

// WaitForResult 以固定间隔轮询直到终态或超出 maxWait 预算。
// 超时以 UpstreamError{Timeout: true} 返回，由编排层落 failed；
// 等待基于 ticker + select，可被 ctx 取消，不独占线程。
func (c *Client) WaitForResult(ctx context.Context, jobID string, maxWait time.Duration) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &UpstreamError{Op: "poll", Detail: ctx.Err().Error(), Timeout: true}
		case <-deadline.C:
			return nil, &UpstreamError{
				Op:      "poll",
				Detail:  fmt.Sprintf("job %s did not reach a terminal status within %s", jobID, maxWait),
				Timeout: true,
			}
		case <-ticker.C:
			result, err := c.Poll(ctx, jobID)
			if err != nil {
				// 单次轮询失败不终止等待，预算耗尽前继续重试
				log.Printf("stt poll job %s failed: %v", jobID, err)
				continue
			}
			if result.Status != StatusProcessing {
				return result, nil
			}
		}
	}
}

// doJSON 带指数退避重试的 HTTP JSON 请求。
// 每次重试都重建请求，避免复用已被读取的 body。
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, target interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var lastErr error
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		data, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(data))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// 4xx 重试没有意义
			lastErr = fmt.Errorf("request rejected: status=%d body=%s", resp.StatusCode, string(data))
			return backoff.Permanent(lastErr)
		}

		if err := json.Unmarshal(data, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(data))
			return lastErr
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
