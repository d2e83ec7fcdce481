// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"astra-chat-go/internal/service"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ChatHandler 处理消息发送请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type attachmentPayload struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content"`
}

type sendMessageRequest struct {
	// 为空时按需新建对话
	ConversationID uint                `json:"conversationId"`
	Content        string              `json:"content" binding:"required"`
	Modality       string              `json:"modality"`
	WithWebSearch  bool                `json:"withWebSearch"`
	Attachments    []attachmentPayload `json:"attachments"`
}

// SendMessage 处理一次消息发送。
// 管线内部的模型失败已经转化为助手回复文本，这里只把编排级失败映射为统一错误提示。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid request body",
			"data":    nil,
		})
		return
	}

	attachments := make([]service.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, service.Attachment{Name: a.Name, Content: a.Content})
	}

	outcome, err := h.chatService.SendMessage(c.Request.Context(), service.SendInput{
		UserID:         claims.UserID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Modality:       req.Modality,
		WithWebSearch:  req.WithWebSearch,
		Attachments:    attachments,
	})
	if err != nil {
		log.Errorf("send message failed for user %d: %v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to send message. Please try again.",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"conversationId":   outcome.ConversationID,
			"userMessage":      outcome.UserMessage,
			"assistantMessage": outcome.AssistantMessage,
			"unpersisted":      outcome.Unpersisted,
		},
	})
}
