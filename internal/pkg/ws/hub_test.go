package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialClient 建立一条真实的 WebSocket 连接并注册到 hub
func dialClient(t *testing.T, hub *Hub, userID int64) (*Client, *websocket.Conn, func()) {
	t.Helper()

	registered := make(chan *Client, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{UserID: userID, Conn: conn}
		hub.Register(client)
		registered <- client
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var client *Client
	select {
	case client = <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("server never registered the client")
	}

	cleanup := func() {
		hub.Unregister(client)
		conn.Close()
		server.Close()
	}
	return client, conn, cleanup
}

func readProgress(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return &msg
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.IsOnline(1))
	assert.Equal(t, 0, hub.ConnectionCount())

	_, _, cleanup := dialClient(t, hub, 1)
	assert.True(t, hub.IsOnline(1))
	assert.Equal(t, 1, hub.ConnectionCount())

	cleanup()
	assert.False(t, hub.IsOnline(1))
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_SendProgress_UnfilteredByDefault(t *testing.T) {
	hub := NewHub()
	_, conn, cleanup := dialClient(t, hub, 1)
	defer cleanup()

	err := hub.SendProgress(1, 42, &Message{Type: "pipeline_progress", Data: "ok"})
	require.NoError(t, err)

	msg := readProgress(t, conn)
	assert.Equal(t, "pipeline_progress", msg.Type)
	assert.Equal(t, "ok", msg.Data)
}

func TestHub_SendProgress_WatchFilters(t *testing.T) {
	hub := NewHub()
	client, conn, cleanup := dialClient(t, hub, 1)
	defer cleanup()

	client.Watch(42)

	// 非订阅录音的进度不该到达
	require.NoError(t, hub.SendProgress(1, 7, &Message{Type: "pipeline_progress", Data: "other"}))
	// 订阅录音的进度到达
	require.NoError(t, hub.SendProgress(1, 42, &Message{Type: "pipeline_progress", Data: "mine"}))

	msg := readProgress(t, conn)
	assert.Equal(t, "mine", msg.Data)

	// 取消订阅后恢复接收全部
	client.Unwatch(42)
	require.NoError(t, hub.SendProgress(1, 7, &Message{Type: "pipeline_progress", Data: "other"}))
	msg = readProgress(t, conn)
	assert.Equal(t, "other", msg.Data)
}

func TestHub_SendProgress_OtherUserUnaffected(t *testing.T) {
	hub := NewHub()
	_, conn1, cleanup1 := dialClient(t, hub, 1)
	defer cleanup1()
	_, conn2, cleanup2 := dialClient(t, hub, 2)
	defer cleanup2()

	require.NoError(t, hub.SendProgress(1, 42, &Message{Type: "pipeline_progress", Data: "u1"}))

	msg := readProgress(t, conn1)
	assert.Equal(t, "u1", msg.Data)

	conn2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn2.ReadMessage()
	assert.Error(t, err) // 超时，没有消息
}

func TestHub_OfflineUserIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.SendProgress(99, 1, &Message{Type: "pipeline_progress"}))
	assert.NoError(t, hub.SendToUser(99, &Message{Type: "pipeline_progress"}))
}
