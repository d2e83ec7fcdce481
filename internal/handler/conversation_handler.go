package handler

import (
	"net/http"
	"strconv"

	"astra-chat-go/internal/service"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversations 处理获取用户对话历史的请求。
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	convs, err := h.service.Load(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    convs,
	})
}

type createConversationRequest struct {
	ProjectID *uint `json:"projectId"`
}

// CreateConversation 新建一个对话并设为活动对话。
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req createConversationRequest
	// 请求体可以为空
	_ = c.ShouldBindJSON(&req)

	conv, err := h.service.Create(c.Request.Context(), claims.UserID, req.ProjectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to create conversation",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conv})
}

// DeleteConversation 删除一个对话，返回新的活动对话 ID。
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	active, err := h.service.Delete(c.Request.Context(), claims.UserID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Conversation not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"activeConversationId": active},
	})
}

// ActivateConversation 把一个对话设为活动对话。
func (h *ConversationHandler) ActivateConversation(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), claims.UserID, id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Conversation not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

type assignProjectRequest struct {
	ProjectID *uint `json:"projectId"`
}

// AssignProject 设置或清除对话的项目归属。
func (h *ConversationHandler) AssignProject(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req assignProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid request body",
			"data":    nil,
		})
		return
	}

	conv, err := h.service.AssignProject(c.Request.Context(), claims.UserID, id, req.ProjectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Conversation or project not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conv})
}

// pathID 解析路径参数里的数字 ID，非法时直接写出 400。
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid id",
			"data":    nil,
		})
		return 0, false
	}
	return uint(id), true
}
