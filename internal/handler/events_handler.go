package handler

import (
	"net/http"

	"astra-chat-go/internal/store"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// EventsHandler 通过 WebSocket 把对话镜像的变更事件推送给客户端。
type EventsHandler struct {
	jwtManager *token.JWTManager
	mirror     *store.Mirror
}

// NewEventsHandler 创建一个新的 EventsHandler。
func NewEventsHandler(jwtManager *token.JWTManager, mirror *store.Mirror) *EventsHandler {
	return &EventsHandler{jwtManager: jwtManager, mirror: mirror}
}

// Handle 处理一个传入的 WebSocket 连接。
// token 走路径参数，浏览器的 WebSocket API 无法自定义请求头。
func (h *EventsHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	events, cancel := h.mirror.Subscribe()
	defer cancel()

	// 读循环只用来感知断连
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			log.Infof("WebSocket 连接已关闭，用户: %s", claims.Username)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Warnf("推送镜像事件失败: %v", err)
				return
			}
		}
	}
}
