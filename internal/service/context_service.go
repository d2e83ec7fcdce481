package service

import (
	"context"
	"fmt"
	"strings"

	"astra-chat-go/internal/config"
	"astra-chat-go/internal/model"
	"astra-chat-go/pkg/llm"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/websearch"
)

const (
	// 全部附件块（含头部标记）的总字符预算
	attachmentBudget = 15000
	// 单个附件摘录的最大字符数
	attachmentSnippetMax = 5000
	// 注入上下文的搜索结果条数上限
	searchMaxResults = 5
)

// searchInstruction 附在搜索结果块末尾，约束模型的引用格式。
const searchInstruction = "Answer concisely (3–6 sentences) using the sources above. " +
	"Cite with inline citations [1],[2] matching the source numbers, " +
	"and end with a \"Sources:\" list of the cited titles."

// Attachment 是随消息附带的一段文件内容。
type Attachment struct {
	Name    string
	Content string
}

// AssembleInput 是一次上下文组装的全部输入。
type AssembleInput struct {
	History       []llm.Message
	Agent         *model.Agent
	Attachments   []Attachment
	WithWebSearch bool
	Query         string
}

// AssembleOutcome 是组装结果：最终消息序列和本轮取到的引用来源。
type AssembleOutcome struct {
	Messages  []llm.Message
	Citations []model.Citation
}

// ContextService 把人设、附件、搜索结果和历史组装成发往模型的消息序列。
type ContextService interface {
	Assemble(ctx context.Context, in AssembleInput) AssembleOutcome
}

type contextService struct {
	search websearch.Client
	cfg    *config.WebSearchConfig
}

func NewContextService(search websearch.Client, cfg *config.WebSearchConfig) ContextService {
	return &contextService{search: search, cfg: cfg}
}

// Assemble 的排序不变量：人设 system（如有）始终第一；
// 附件与搜索结果合并为一条 system 消息紧随其后；历史消息保持原有顺序在最后。
func (s *contextService) Assemble(ctx context.Context, in AssembleInput) AssembleOutcome {
	out := AssembleOutcome{}
	messages := make([]llm.Message, 0, len(in.History)+2)

	if in.Agent != nil {
		if prompt := in.Agent.SystemPrompt(); prompt != "" {
			messages = append(messages, llm.Message{Role: model.RoleSystem, Content: prompt})
		}
	}

	var aux []string
	if block := buildAttachmentBlock(in.Attachments); block != "" {
		aux = append(aux, block)
	}
	if in.WithWebSearch {
		block, citations := s.searchBlock(ctx, in.Query)
		if block != "" {
			aux = append(aux, block)
			out.Citations = citations
		}
	}
	if len(aux) > 0 {
		messages = append(messages, llm.Message{
			Role:    model.RoleSystem,
			Content: strings.Join(aux, "\n\n"),
		})
	}

	messages = append(messages, in.History...)
	out.Messages = messages
	return out
}

// buildAttachmentBlock 把附件拼成一个带预算的文本块。
// 头部标记计入总预算，超出预算的附件被整体丢弃。
func buildAttachmentBlock(attachments []Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	var b strings.Builder
	remaining := attachmentBudget
	for _, att := range attachments {
		snippet := att.Content
		if len(snippet) > attachmentSnippetMax {
			snippet = snippet[:attachmentSnippetMax]
		}
		header := fmt.Sprintf("\n[User Attachment: %s]\n", att.Name)
		need := len(header) + len(snippet)
		if need > remaining {
			break
		}
		b.WriteString(header)
		b.WriteString(snippet)
		remaining -= need
	}
	return b.String()
}

// searchBlock 执行网络搜索并格式化为上下文块。
// 搜索失败只记日志，绝不阻断消息发送。
func (s *contextService) searchBlock(ctx context.Context, query string) (string, []model.Citation) {
	max := searchMaxResults
	if s.cfg != nil && s.cfg.MaxResults > 0 && s.cfg.MaxResults < max {
		max = s.cfg.MaxResults
	}
	outcome := s.search.Search(ctx, query, max)
	if outcome.Err != nil {
		log.Warnf("web search failed, continuing without sources: %v", outcome.Err)
		return "", nil
	}
	if len(outcome.Results) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Web search results:\n")
	citations := make([]model.Citation, 0, len(outcome.Results))
	for i, r := range outcome.Results {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\nURL: %s\n", i+1, r.Title, r.Snippet, r.URL)
		citations = append(citations, model.Citation{
			ID:      i + 1,
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}
	b.WriteString("\n")
	b.WriteString(searchInstruction)
	return b.String(), citations
}
