// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/services"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
)

// Client message types on the live drawing socket.
const (
	wsMessageEvents = "events"
	wsMessageReset  = "reset"
	wsMessagePing   = "ping"
)

type liveMessage struct {
	Type     string                  `json:"type"`
	Events   []models.TimeLapseEvent `json:"events"`
	Duration float64                 `json:"duration"`
}

// DrawingProgressWebSocket streams progress analysis while a child draws.
// Each connection owns one live session; event batches are appended to it
// and the full log is re-analysed after every batch.
func (h *Handler) DrawingProgressWebSocket(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("websocket upgrade failed", map[string]interface{}{
			"user_id": userID,
			"error":   err,
		})
		return
	}

	sessionID := ksuid.New().String()
	session := h.LiveSessions.CreateSession(sessionID, userID)
	updates := session.Subscribe()
	client := newWebSocketClient(conn, sessionID, userID)

	h.Sockets.register(client)
	if h.Metrics != nil {
		h.Metrics.ConnectionOpened()
	}
	defer func() {
		h.Sockets.unregister(client)
		h.LiveSessions.CloseSession(sessionID)
		client.Close()
		if h.Metrics != nil {
			h.Metrics.ConnectionClosed()
		}
	}()

	go h.handleWebSocketWrites(client, updates)

	client.SendMessage(map[string]interface{}{
		"type":       "connected",
		"session_id": sessionID,
	})
	h.handleWebSocketReads(client)
}

// handleWebSocketReads 处理 WebSocket 读取. It returns when the peer goes away.
func (h *Handler) handleWebSocketReads(client *WebSocketClient) {
	client.conn.SetReadLimit(wsMaxMessage)
	client.conn.SetReadDeadline(time.Now().Add(wsPingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(wsPingTimeout))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Debug("websocket read ended", map[string]interface{}{
					"session_id": client.sessionID,
					"error":      err,
				})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsPingTimeout))

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendError("invalid message")
			continue
		}
		h.handleLiveMessage(client, msg)
	}
}

func (h *Handler) handleLiveMessage(client *WebSocketClient, msg liveMessage) {
	switch msg.Type {
	case wsMessageEvents:
		// The analysis reaches the client through the session subscription.
		if _, err := h.LiveSessions.Append(client.sessionID, msg.Events, msg.Duration); err != nil {
			client.SendError(err.Error())
		}
	case wsMessageReset:
		if err := h.LiveSessions.Reset(client.sessionID); err != nil {
			client.SendError(err.Error())
		}
	case wsMessagePing:
		client.SendMessage(services.LiveUpdate{Type: services.LiveUpdatePong})
	default:
		client.SendError("unknown message type: " + msg.Type)
	}
}

// handleWebSocketWrites is the only goroutine writing to the connection.
func (h *Handler) handleWebSocketWrites(client *WebSocketClient, updates <-chan services.LiveUpdate) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	write := func(v interface{}) bool {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(v); err != nil {
			utils.GetLogger().Debug("websocket write failed", map[string]interface{}{
				"session_id": client.sessionID,
				"error":      err,
			})
			return false
		}
		return true
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(update) {
				return
			}
		case message := <-client.send:
			if !write(message) {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.Sockets.GetStatus()
	status["live_sessions"] = h.LiveSessions.Count()
	status["ping_timeout_seconds"] = int(wsPingTimeout.Seconds())
	h.Response.Success(c, status)
}
