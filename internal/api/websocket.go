// internal/api/websocket.go
package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 1 << 20
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
}

// WebSocketClient is one live drawing connection.
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	userID    string
	send      chan interface{}
	closed    int32
	closeOnce sync.Once
	done      chan struct{}
	lastPing  atomic.Int64
	createdAt time.Time
}

func newWebSocketClient(conn WebSocketConnection, sessionID, userID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan interface{}, 32),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	client.closeOnce.Do(func() {
		atomic.StoreInt32(&client.closed, 1)
		close(client.done)
		client.conn.Close()
	})
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// SendMessage queues message for the writer. A full queue drops it.
func (client *WebSocketClient) SendMessage(message interface{}) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// SendError 发送错误消息到客户端
func (client *WebSocketClient) SendError(message string) {
	client.SendMessage(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// WebSocketManager tracks open live connections.
type WebSocketManager struct {
	clients map[string]*WebSocketClient
	mutex   sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{clients: make(map[string]*WebSocketClient)}
}

func (manager *WebSocketManager) register(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.clients[client.sessionID] = client
}

func (manager *WebSocketManager) unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if current, ok := manager.clients[client.sessionID]; ok && current == client {
		delete(manager.clients, client.sessionID)
	}
}

// CleanupExpiredConnections closes clients that stopped answering pings.
func (manager *WebSocketManager) CleanupExpiredConnections() int {
	manager.mutex.Lock()
	var expired []*WebSocketClient
	for id, client := range manager.clients {
		if client.IsClosed() || client.IsExpired(wsPingTimeout) {
			expired = append(expired, client)
			delete(manager.clients, id)
		}
	}
	manager.mutex.Unlock()

	for _, client := range expired {
		client.Close()
	}
	return len(expired)
}

// Shutdown 关闭所有连接
func (manager *WebSocketManager) Shutdown() {
	manager.mutex.Lock()
	clients := manager.clients
	manager.clients = make(map[string]*WebSocketClient)
	manager.mutex.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	users := make(map[string]int)
	for _, client := range manager.clients {
		if !client.IsClosed() {
			users[client.userID]++
		}
	}
	return map[string]interface{}{
		"total_connections": len(manager.clients),
		"users":             len(users),
	}
}

// Count returns the number of registered connections.
func (manager *WebSocketManager) Count() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}
