package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	// 每个用户可以有多个连接（多标签页、重连等场景）
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn

	mu       sync.Mutex // 写锁，防止并发写入；同时保护 watching
	watching map[int64]struct{}
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	log.Printf("User %d connected, user_conns: %d, total: %d", client.UserID, len(h.clients[client.UserID]), total)
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	log.Printf("User %d disconnected", client.UserID)
}

// Watch 让连接只接收指定录音的进度。未调用过 Watch 的连接收全部进度。
func (c *Client) Watch(recordingID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watching == nil {
		c.watching = make(map[int64]struct{})
	}
	c.watching[recordingID] = struct{}{}
}

// Unwatch 取消对指定录音的订阅
func (c *Client) Unwatch(recordingID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watching, recordingID)
}

func (c *Client) wants(recordingID int64) bool {
	if len(c.watching) == 0 {
		return true
	}
	_, ok := c.watching[recordingID]
	return ok
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// SendProgress 向用户推送某条录音的流水线进度。
// 连接订阅了具体录音时只推匹配的，否则推该用户的全部进度。
func (h *Hub) SendProgress(userID, recordingID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	for _, c := range h.snapshot(userID) {
		c.mu.Lock()
		deliver := c.wants(recordingID)
		c.mu.Unlock()
		if !deliver {
			continue
		}
		if err := c.send(data); err != nil {
			log.Printf("SendProgress write error for user %d: %v", userID, err)
		}
	}
	return nil
}

// SendToUser 向指定用户的所有连接发送消息，不看订阅
func (h *Hub) SendToUser(userID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	for _, c := range h.snapshot(userID) {
		if err := c.send(data); err != nil {
			log.Printf("SendToUser write error for user %d: %v", userID, err)
		}
	}
	return nil
}

// snapshot 复制一份连接引用，避免写消息时长时间持锁
func (h *Hub) snapshot(userID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[userID]
	if !ok {
		return nil
	}
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	return clients
}

// IsOnline 检查用户是否在线
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[userID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
