package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"astra-chat-go/internal/config"
	"astra-chat-go/pkg/llm"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/retry"
	"astra-chat-go/pkg/videogen"
)

// Modality 是一次发送选择的模型通道。
type Modality string

const (
	ModalityChat     Modality = "chat"
	ModalityCode     Modality = "code"
	ModalityImage    Modality = "image"
	ModalityAnalyzer Modality = "analyzer"
)

// IsVideo 判断通道是否为视频生成（video-前缀携带具体引擎名）。
func (m Modality) IsVideo() bool {
	return strings.HasPrefix(string(m), "video-")
}

// MessageType 返回该通道产出的消息类型标签。回放时靠它区分代码轮次。
func (m Modality) MessageType() string {
	switch {
	case m == ModalityCode:
		return "code"
	case m == ModalityImage:
		return "image"
	case m.IsVideo():
		return "video"
	default:
		return "text"
	}
}

// ParseModality 解析客户端传来的通道标识，未知值回落到 chat。
func ParseModality(raw string) Modality {
	switch {
	case raw == string(ModalityCode):
		return ModalityCode
	case raw == string(ModalityImage):
		return ModalityImage
	case raw == string(ModalityAnalyzer):
		return ModalityAnalyzer
	case strings.HasPrefix(raw, "video-"):
		return Modality(raw)
	default:
		return ModalityChat
	}
}

// chatExhaustedText 所有聊天模型都失败后的占位回复。
const chatExhaustedText = "No response received from any chat model"

// codeExhaustedText 所有代码模型都失败后的占位回复。
const codeExhaustedText = "No response received from any code model"

// codeRateLimitedText 代码通道唯一模型被限流时的提示回复。
const codeRateLimitedText = "Code model is temporarily rate-limited. " +
	"Please try again later or use the Chat model for code questions."

// analyzerSystemPrompt 分析通道固定的 system 提示。
const analyzerSystemPrompt = "You are a text analyzer. For the given input, report: " +
	"overall sentiment; a 2-3 line summary; and, if the input contains code, " +
	"any bugs or risks you can identify. Be direct and specific."

// DispatchResult 是一次派发的产出。失败也产出：
// 失败信息以文本形式写入 Text，作为本轮的助手回复。
type DispatchResult struct {
	Text   string
	Images []string
	Videos []string
	Model  string
}

// DispatchService 按通道把组装好的上下文派发到具体模型。
type DispatchService interface {
	Dispatch(ctx context.Context, modality Modality, messages []llm.Message) DispatchResult
}

type dispatchService struct {
	llm    llm.Client
	video  videogen.Client
	router *config.RouterConfig
	vcfg   *config.VideoGenConfig

	// 可注入，测试用短轮询
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewDispatchService(client llm.Client, video videogen.Client, router *config.RouterConfig, vcfg *config.VideoGenConfig) DispatchService {
	s := &dispatchService{
		llm:          client,
		video:        video,
		router:       router,
		vcfg:         vcfg,
		pollInterval: 5 * time.Second,
		pollTimeout:  300 * time.Second,
	}
	if vcfg != nil {
		if vcfg.PollIntervalSeconds > 0 {
			s.pollInterval = time.Duration(vcfg.PollIntervalSeconds) * time.Second
		}
		if vcfg.PollTimeoutSeconds > 0 {
			s.pollTimeout = time.Duration(vcfg.PollTimeoutSeconds) * time.Second
		}
	}
	return s
}

func (s *dispatchService) Dispatch(ctx context.Context, modality Modality, messages []llm.Message) DispatchResult {
	switch {
	case modality == ModalityCode:
		return s.dispatchCode(ctx, messages)
	case modality == ModalityImage:
		return s.dispatchImage(ctx, messages)
	case modality == ModalityAnalyzer:
		return s.dispatchAnalyzer(ctx, messages)
	case modality.IsVideo():
		return s.dispatchVideo(ctx, modality, messages)
	default:
		return s.dispatchChat(ctx, messages)
	}
}

// dispatchChat 按配置顺序逐个尝试聊天模型，全部失败时返回占位文本。
func (s *dispatchService) dispatchChat(ctx context.Context, messages []llm.Message) DispatchResult {
	for _, m := range s.router.ChatModels {
		completion, err := s.llm.Complete(ctx, m, messages)
		if err != nil {
			log.Warnf("chat model %s failed: %v", m, err)
			continue
		}
		if strings.TrimSpace(completion.Text) == "" && len(completion.Images) == 0 {
			log.Warnf("chat model %s returned empty completion", m)
			continue
		}
		return DispatchResult{Text: completion.Text, Images: completion.Images, Model: m}
	}
	return DispatchResult{Text: chatExhaustedText}
}

// dispatchCode 代码通道：429 给出专门提示，其余错误继续尝试下一个模型。
func (s *dispatchService) dispatchCode(ctx context.Context, messages []llm.Message) DispatchResult {
	for _, m := range s.router.CodeModels {
		completion, err := s.llm.Complete(ctx, m, messages)
		if err != nil {
			if llm.IsRateLimited(err) {
				return DispatchResult{Text: codeRateLimitedText, Model: m}
			}
			log.Warnf("code model %s failed: %v", m, err)
			continue
		}
		if strings.TrimSpace(completion.Text) == "" {
			continue
		}
		return DispatchResult{Text: completion.Text, Model: m}
	}
	return DispatchResult{Text: codeExhaustedText}
}

// dispatchImage 单模型生成，失败原因写入回复文本。
func (s *dispatchService) dispatchImage(ctx context.Context, messages []llm.Message) DispatchResult {
	completion, err := s.llm.Complete(ctx, s.router.ImageModel, messages)
	if err != nil {
		return DispatchResult{Text: fmt.Sprintf("Image generation failed: %v", err), Model: s.router.ImageModel}
	}
	if len(completion.Images) == 0 {
		return DispatchResult{Text: "Image generation failed: the model returned no image", Model: s.router.ImageModel}
	}
	text := completion.Text
	if strings.TrimSpace(text) == "" {
		text = "Here is the generated image."
	}
	return DispatchResult{Text: text, Images: completion.Images, Model: s.router.ImageModel}
}

// dispatchAnalyzer 单次调用固定分析模型，不做回退。
func (s *dispatchService) dispatchAnalyzer(ctx context.Context, messages []llm.Message) DispatchResult {
	withPrompt := make([]llm.Message, 0, len(messages)+1)
	withPrompt = append(withPrompt, llm.Message{Role: "system", Content: analyzerSystemPrompt})
	withPrompt = append(withPrompt, messages...)

	completion, err := s.llm.Complete(ctx, s.router.AnalyzerModel, withPrompt)
	if err != nil {
		return DispatchResult{Text: fmt.Sprintf("Analyzer failed: %v", err), Model: s.router.AnalyzerModel}
	}
	return DispatchResult{Text: completion.Text, Model: s.router.AnalyzerModel}
}

// dispatchVideo 提交生成任务并轮询至完成或超时。
// prompt 取最后一条用户消息的内容。
func (s *dispatchService) dispatchVideo(ctx context.Context, modality Modality, messages []llm.Message) DispatchResult {
	engine, ok := s.vcfg.Models[string(modality)]
	if !ok {
		return DispatchResult{Text: fmt.Sprintf("Video generation failed: unknown video engine %q", modality)}
	}

	prompt := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			prompt = messages[i].Content
			break
		}
	}

	taskID, err := s.video.Submit(ctx, videogen.GenerationRequest{
		Prompt:         prompt,
		Model:          engine,
		AspectRatio:    s.vcfg.AspectRatio,
		EnableFallback: true,
	})
	if err != nil {
		return DispatchResult{Text: fmt.Sprintf("Video generation failed: %v", err), Model: engine}
	}

	var final *videogen.TaskStatus
	err = retry.Poll(ctx, s.pollInterval, s.pollTimeout, func(ctx context.Context) (bool, error) {
		status, err := s.video.Status(ctx, taskID)
		if err != nil {
			// 单次查询失败不终止轮询
			log.Warnf("video task %s status check failed: %v", taskID, err)
			return false, nil
		}
		switch status.State {
		case videogen.StateCompleted:
			final = status
			return true, nil
		case videogen.StateFailed:
			return false, fmt.Errorf("generation failed: %s", status.Message)
		default:
			return false, nil
		}
	})
	if err != nil {
		if err == retry.ErrTimeout {
			return DispatchResult{Text: "Video generation failed: timed out waiting for the result", Model: engine}
		}
		return DispatchResult{Text: fmt.Sprintf("Video generation failed: %v", err), Model: engine}
	}
	if final == nil || len(final.ResultURLs) == 0 {
		return DispatchResult{Text: "Video generation failed: the task completed without a result", Model: engine}
	}
	return DispatchResult{Text: "Here is the generated video.", Videos: final.ResultURLs, Model: engine}
}
