package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chromabot/referee/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client представляет WebSocket клиента, подписанного на события одного
// регионального боя.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ID string

	// PlayerName identifies the in-game player behind this connection, if
	// any (observer connections may leave this empty).
	PlayerName string

	// RegionID is the battle thread this client is watching; 0 means none.
	RegionID int64

	lastPong time.Time
	mutex    sync.RWMutex
	isActive bool
}

// Message представляет сообщение WebSocket.
type Message struct {
	Type      string      `json:"type"`
	RegionID  int64       `json:"region_id,omitempty"`
	PlayerName string     `json:"player_name,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Upgrader holds the HTTP-to-WebSocket upgrade settings.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewClient создает нового клиента.
func NewClient(hub *Hub, conn *websocket.Conn, playerName string, regionID int64) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		ID:         generateClientID(),
		PlayerName: playerName,
		RegionID:   regionID,
		lastPong:   time.Now(),
		isActive:   true,
	}
}

// ReadPump pumps inbound messages from the connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.mutex.Lock()
		c.lastPong = time.Now()
		c.mutex.Unlock()
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("websocket read error", "error", err, "client_id", c.ID)
			}
			break
		}
		c.handleMessage(messageBytes)
	}
}

// WritePump pumps outbound messages from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(messageBytes []byte) {
	var message Message
	if err := json.Unmarshal(messageBytes, &message); err != nil {
		logger.Error("failed to unmarshal websocket message", "error", err, "client_id", c.ID)
		return
	}
	message.Timestamp = time.Now().Unix()

	switch message.Type {
	case "ping":
		c.handlePing()
	case "pong":
		c.handlePong()
	case "watch_region":
		c.handleWatchRegion(message)
	case "unwatch_region":
		c.handleUnwatchRegion()
	default:
		logger.Warn("unknown websocket message type", "type", message.Type, "client_id", c.ID)
	}
}

func (c *Client) handlePing() {
	c.sendMessage(Message{Type: "pong", Timestamp: time.Now().Unix()})
}

func (c *Client) handlePong() {
	c.mutex.Lock()
	c.lastPong = time.Now()
	c.mutex.Unlock()
}

func (c *Client) handleWatchRegion(message Message) {
	regionID, ok := message.Data.(float64)
	if !ok {
		logger.Error("invalid region id in watch_region message", "client_id", c.ID)
		return
	}

	c.mutex.Lock()
	c.RegionID = int64(regionID)
	c.mutex.Unlock()

	c.hub.BroadcastBattleUpdate(int64(regionID), "watcher_joined", map[string]interface{}{"player_name": c.PlayerName})
}

func (c *Client) handleUnwatchRegion() {
	c.mutex.RLock()
	regionID := c.RegionID
	c.mutex.RUnlock()
	if regionID == 0 {
		return
	}

	c.hub.BroadcastBattleUpdate(regionID, "watcher_left", map[string]interface{}{"player_name": c.PlayerName})

	c.mutex.Lock()
	c.RegionID = 0
	c.mutex.Unlock()
}

func (c *Client) sendMessage(message Message) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		logger.Error("failed to marshal message", "error", err, "client_id", c.ID)
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		close(c.send)
	}
}

// SendNotification delivers a one-off notification to this client.
func (c *Client) SendNotification(notification interface{}) {
	c.sendMessage(Message{Type: "notification", PlayerName: c.PlayerName, Data: notification, Timestamp: time.Now().Unix()})
}

// SendError delivers an error message to this client.
func (c *Client) SendError(errorMsg string) {
	c.sendMessage(Message{Type: "error", PlayerName: c.PlayerName, Data: map[string]string{"message": errorMsg}, Timestamp: time.Now().Unix()})
}

// IsActive reports whether the connection is still considered live.
func (c *Client) IsActive() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.isActive
}

// SetActive sets the connection's liveness flag.
func (c *Client) SetActive(active bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.isActive = active
}

// GetLastPong returns the time of the last observed pong, for the hub's
// inactivity sweep.
func (c *Client) GetLastPong() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastPong
}

func generateClientID() string {
	return "client_" + time.Now().Format("20060102150405") + "_" + randomString(8)
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[time.Now().UnixNano()%int64(len(charset))]
	}
	return string(b)
}
