package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/chromabot/referee/pkg/logger"
)

// Hub поддерживает активные соединения и рассылает сообщения по регионам.
type Hub struct {
	clients map[*Client]bool

	// rooms keyed by region id, one per contested region's battle thread.
	rooms map[int64]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client

	broadcast chan []byte

	roomBroadcast chan *RoomMessage

	sendToClientChan chan *ClientMessage

	mutex sync.RWMutex

	stats *HubStats
}

// RoomMessage представляет сообщение для комнаты региона.
type RoomMessage struct {
	RegionID int64
	Message  []byte
}

// ClientMessage представляет сообщение для конкретного клиента.
type ClientMessage struct {
	Client  *Client
	Message []byte
}

// HubStats представляет статистику хаба.
type HubStats struct {
	TotalClients     int       `json:"total_clients"`
	TotalRooms       int       `json:"total_rooms"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	StartTime        time.Time `json:"start_time"`
	LastActivity     time.Time `json:"last_activity"`
}

// NewHub создает новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		rooms:            make(map[int64]map[*Client]bool),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		broadcast:        make(chan []byte),
		roomBroadcast:    make(chan *RoomMessage),
		sendToClientChan: make(chan *ClientMessage),
		stats: &HubStats{
			StartTime:    time.Now(),
			LastActivity: time.Now(),
		},
	}
}

// Run запускает хаб.
func (h *Hub) Run() {
	logger.Info("websocket hub started")

	go h.cleanupInactiveConnections()

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)

		case roomMessage := <-h.roomBroadcast:
			h.broadcastToRoom(roomMessage.RegionID, roomMessage.Message)

		case clientMessage := <-h.sendToClientChan:
			h.sendToClient(clientMessage.Client, clientMessage.Message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.stats.TotalClients++
	h.stats.LastActivity = time.Now()

	if client.RegionID != 0 {
		if h.rooms[client.RegionID] == nil {
			h.rooms[client.RegionID] = make(map[*Client]bool)
			h.stats.TotalRooms++
		}
		h.rooms[client.RegionID][client] = true
	}

	logger.Info("client registered", "client_id", client.ID, "player_name", client.PlayerName, "region_id", client.RegionID, "total_clients", h.stats.TotalClients)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.stats.TotalClients--
		h.stats.LastActivity = time.Now()

		if client.RegionID != 0 && h.rooms[client.RegionID] != nil {
			delete(h.rooms[client.RegionID], client)
			if len(h.rooms[client.RegionID]) == 0 {
				delete(h.rooms, client.RegionID)
				h.stats.TotalRooms--
			}
		}

		close(client.send)
	}

	logger.Info("client unregistered", "client_id", client.ID, "player_name", client.PlayerName, "region_id", client.RegionID, "total_clients", h.stats.TotalClients)
}

func (h *Hub) broadcastToAll(message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}

	h.stats.MessagesSent += int64(len(h.clients))
	h.stats.LastActivity = time.Now()
}

func (h *Hub) broadcastToRoom(regionID int64, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[regionID]
	if !exists {
		return
	}

	clientsInRoom := 0
	for client := range room {
		select {
		case client.send <- message:
			clientsInRoom++
		default:
			close(client.send)
			delete(h.clients, client)
			delete(room, client)
		}
	}

	h.stats.MessagesSent += int64(clientsInRoom)
	h.stats.LastActivity = time.Now()
}

func (h *Hub) sendToClient(client *Client, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[client]; ok {
		select {
		case client.send <- message:
			h.stats.MessagesSent++
			h.stats.LastActivity = time.Now()
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// BroadcastToRoom рассылает сообщение в комнату региона.
func (h *Hub) BroadcastToRoom(regionID int64, message []byte) {
	select {
	case h.roomBroadcast <- &RoomMessage{RegionID: regionID, Message: message}:
	default:
		logger.Warn("failed to broadcast to room - channel full", "region_id", regionID)
	}
}

// SendToClient отправляет сообщение конкретному клиенту.
func (h *Hub) SendToClient(client *Client, message []byte) {
	select {
	case h.sendToClientChan <- &ClientMessage{Client: client, Message: message}:
	default:
		logger.Warn("failed to send to client - channel full", "client_id", client.ID)
	}
}

// BroadcastToAll рассылает сообщение всем клиентам.
func (h *Hub) BroadcastToAll(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("failed to broadcast to all - channel full")
	}
}

// GetClientsInRoom возвращает список клиентов в комнате региона.
func (h *Hub) GetClientsInRoom(regionID int64) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[regionID]
	if !exists {
		return []*Client{}
	}

	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	return clients
}

// GetClientCount возвращает количество активных клиентов.
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetRoomCount возвращает количество активных комнат.
func (h *Hub) GetRoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}

// GetStats возвращает статистику хаба.
func (h *Hub) GetStats() *HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := *h.stats
	stats.TotalClients = len(h.clients)
	stats.TotalRooms = len(h.rooms)
	return &stats
}

func (h *Hub) cleanupInactiveConnections() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.mutex.Lock()
		now := time.Now()
		var inactive []*Client

		for client := range h.clients {
			if now.Sub(client.GetLastPong()) > 5*time.Minute {
				inactive = append(inactive, client)
			}
		}

		for _, client := range inactive {
			delete(h.clients, client)
			if client.RegionID != 0 && h.rooms[client.RegionID] != nil {
				delete(h.rooms[client.RegionID], client)
				if len(h.rooms[client.RegionID]) == 0 {
					delete(h.rooms, client.RegionID)
				}
			}
			close(client.send)
		}

		if len(inactive) > 0 {
			logger.Info("cleaned up inactive connections", "count", len(inactive))
		}

		h.mutex.Unlock()
	}
}

// BroadcastBattleUpdate announces a change in battle state for regionID, such
// as a newly opened skirmish or a resolved battle.
func (h *Hub) BroadcastBattleUpdate(regionID int64, eventType string, data interface{}) {
	message, err := json.Marshal(map[string]interface{}{
		"type":      "battle_update",
		"region_id": regionID,
		"event":     eventType,
		"data":      data,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		logger.Error("failed to marshal battle update", "error", err)
		return
	}
	h.BroadcastToRoom(regionID, message)
}

// SendNotification delivers a one-off notification to a named player across
// whichever connection they currently hold, if any.
func (h *Hub) SendNotification(playerName string, notification interface{}) {
	message, err := json.Marshal(map[string]interface{}{
		"type":         "notification",
		"player_name":  playerName,
		"notification": notification,
		"timestamp":    time.Now().Unix(),
	})
	if err != nil {
		logger.Error("failed to marshal notification", "error", err)
		return
	}

	h.mutex.RLock()
	var target *Client
	for client := range h.clients {
		if client.PlayerName == playerName {
			target = client
			break
		}
	}
	h.mutex.RUnlock()

	if target != nil {
		h.SendToClient(target, message)
	}
}
