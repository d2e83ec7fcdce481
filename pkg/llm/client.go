// Package llm provides a client for the model-routing chat-completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"astra-chat-go/internal/config"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion 是一次补全调用的归一化结果。
// Images 为模型随文本返回的图片 URL 列表，无图片时为空切片。
type Completion struct {
	Text   string
	Images []string
}

// Client defines the interface for a routed chat-completion client.
type Client interface {
	// Complete 以 role-based 消息调用指定模型的补全接口。
	Complete(ctx context.Context, model string, messages []Message) (*Completion, error)
}

// StatusError 携带上游 API 返回的 HTTP 状态码，供调度层区分限流等情况。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("router api returned status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited 判断错误是否为上游限流（HTTP 429）。
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

type routerClient struct {
	cfg    config.RouterConfig
	client *http.Client
}

// NewClient creates a new routed completion client from the config.
func NewClient(cfg config.RouterConfig) Client {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &routerClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Images  []struct {
				Type     string `json:"type"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete 调用 chat-completions 接口并解析出文本与图片 URL。
func (c *routerClient) Complete(ctx context.Context, model string, messages []Message) (*Completion, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      false,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return &Completion{Images: []string{}}, nil
	}

	msg := chatResp.Choices[0].Message
	images := make([]string, 0, len(msg.Images))
	for _, img := range msg.Images {
		if img.ImageURL.URL != "" {
			images = append(images, img.ImageURL.URL)
		}
	}

	return &Completion{Text: msg.Content, Images: images}, nil
}
