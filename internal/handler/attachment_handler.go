package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"astra-chat-go/internal/config"
	"astra-chat-go/pkg/storage"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachmentHandler 把随消息上传的附件原文归档到对象存储。
// 归档写入的是原始附件，消息上下文里只保留带预算的摘录。
type AttachmentHandler struct {
	cfg *config.MinIOConfig
}

// NewAttachmentHandler 创建一个新的 AttachmentHandler。
func NewAttachmentHandler(cfg *config.MinIOConfig) *AttachmentHandler {
	return &AttachmentHandler{cfg: cfg}
}

// ArchiveAttachment 处理附件上传归档。
func (h *AttachmentHandler) ArchiveAttachment(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "file is required",
			"data":    nil,
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to read file",
			"data":    nil,
		})
		return
	}
	defer src.Close()

	// 对象名按用户分目录，保留原始扩展名
	ext := strings.ToLower(path.Ext(file.Filename))
	objectName := fmt.Sprintf("attachments/%d/%s%s", claims.UserID, uuid.NewString(), ext)

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := storage.PutObject(c.Request.Context(), h.cfg.BucketName, objectName, src, file.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to archive attachment",
			"data":    nil,
		})
		return
	}

	url, err := storage.GetPresignedURL(h.cfg.BucketName, objectName, 24*time.Hour)
	if err != nil {
		// 归档已经成功，取不到下载地址时只返回对象名
		url = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"objectName": objectName,
			"url":        url,
			"fileName":   file.Filename,
		},
	})
}
