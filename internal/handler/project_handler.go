package handler

import (
	"net/http"

	"astra-chat-go/internal/service"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ProjectHandler 处理项目分组的 API 请求。
type ProjectHandler struct {
	service service.ProjectService
}

// NewProjectHandler 创建一个新的 ProjectHandler。
func NewProjectHandler(service service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type createProjectRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// CreateProject 新建一个项目。
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid request body",
			"data":    nil,
		})
		return
	}

	project, err := h.service.Create(c.Request.Context(), claims.UserID, req.Title, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to create project",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": project})
}

// GetProjects 返回用户的全部项目。
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	projects, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve projects",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": projects})
}

// DeleteProject 删除项目并返回被清空归属的对话数。
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	cleared, err := h.service.Delete(c.Request.Context(), claims.UserID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Project not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"detachedConversations": cleared},
	})
}
