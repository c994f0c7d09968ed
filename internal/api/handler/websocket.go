package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/callsight/callqa_go_server/internal/pkg/jwt"
	"github.com/callsight/callqa_go_server/internal/pkg/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要验证 Origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	hub       *ws.Hub
	jwtSecret string
}

func NewWebSocketHandler(hub *ws.Hub, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// Handle WebSocket 连接处理，用于推送流水线进度
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &ws.Client{
		UserID: claims.UserID,
		Conn:   conn,
	}

	h.hub.Register(client)

	// 读取客户端的订阅指令，连接断开时注销
	go func() {
		defer h.hub.Unregister(client)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd clientCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			switch cmd.Action {
			case "watch":
				client.Watch(cmd.RecordingID)
			case "unwatch":
				client.Unwatch(cmd.RecordingID)
			}
		}
	}()
}

// clientCommand 客户端指令：watch/unwatch 指定录音的进度推送
type clientCommand struct {
	Action      string `json:"action"`
	RecordingID int64  `json:"recording_id"`
}
