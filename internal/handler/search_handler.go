package handler

import (
	"net/http"

	"astra-chat-go/internal/service"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// SearchHandler 处理消息全文检索的 API 请求。
type SearchHandler struct {
	service service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler。
func NewSearchHandler(service service.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchMessages 在用户的历史消息中检索。
func (h *SearchHandler) SearchMessages(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "query parameter 'q' is required",
			"data":    nil,
		})
		return
	}

	rows, err := h.service.SearchMessages(c.Request.Context(), claims.UserID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to search messages",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": rows})
}
