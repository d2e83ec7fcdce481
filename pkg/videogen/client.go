// Package videogen 提供了视频生成服务的客户端（提交任务 + 查询状态）。
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"astra-chat-go/internal/config"
)

// 任务状态。
const (
	StatePending    = "pending"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// GenerationRequest 是一次视频生成任务的提交参数。
type GenerationRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	AspectRatio    string `json:"aspectRatio"`
	EnableFallback bool   `json:"enableFallback"`
}

// TaskStatus 是一次状态查询的归一化结果。
type TaskStatus struct {
	TaskID     string
	State      string
	ResultURLs []string
	Message    string
}

// Client 定义了视频生成服务的接口。
type Client interface {
	// Submit 提交生成任务，返回任务 ID。
	Submit(ctx context.Context, req GenerationRequest) (string, error)
	// Status 查询任务状态。
	Status(ctx context.Context, taskID string) (*TaskStatus, error)
}

type kieClient struct {
	cfg    config.VideoGenConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的视频生成客户端。
func NewClient(cfg config.VideoGenConfig) Client {
	return &kieClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type submitResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	} `json:"data"`
}

type statusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
		Info   *struct {
			ResultURLs []string `json:"resultUrls"`
		} `json:"info"`
	} `json:"data"`
}

// Submit 提交视频生成任务。
func (c *kieClient) Submit(ctx context.Context, genReq GenerationRequest) (string, error) {
	if genReq.AspectRatio == "" {
		genReq.AspectRatio = c.cfg.AspectRatio
	}

	reqBytes, err := json.Marshal(genReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/veo/generate", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create video request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call video api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("video api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode video submit response: %w", err)
	}
	if sr.Code != 200 {
		return "", fmt.Errorf("video generation failed: %s", sr.Msg)
	}

	return sr.Data.TaskID, nil
}

// Status 查询视频生成任务的当前状态。
func (c *kieClient) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/veo/get-video-details/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call status api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	st := &TaskStatus{
		TaskID:  sr.Data.TaskID,
		State:   sr.Data.Status,
		Message: sr.Msg,
	}
	if sr.Data.Info != nil {
		st.ResultURLs = sr.Data.Info.ResultURLs
	}
	return st, nil
}
