package handler

import (
	"net/http"

	"astra-chat-go/internal/service"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AgentHandler 处理助手人格的 API 请求。
type AgentHandler struct {
	service service.AgentService
}

// NewAgentHandler 创建一个新的 AgentHandler。
func NewAgentHandler(service service.AgentService) *AgentHandler {
	return &AgentHandler{service: service}
}

// GetAgents 返回全部已发布的人格。
func (h *AgentHandler) GetAgents(c *gin.Context) {
	agents, err := h.service.ListPublished(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve agents",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": agents})
}

type selectAgentRequest struct {
	AgentID *uint `json:"agentId"`
}

// SelectAgent 选中或清除用户的人格选择。
func (h *AgentHandler) SelectAgent(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req selectAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid request body",
			"data":    nil,
		})
		return
	}

	if err := h.service.Select(c.Request.Context(), claims.UserID, req.AgentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Agent not available",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// GetSelectedAgent 返回用户当前选中的人格。
func (h *AgentHandler) GetSelectedAgent(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	agent, err := h.service.Selected(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve selected agent",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": agent})
}
