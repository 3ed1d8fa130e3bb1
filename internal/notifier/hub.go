package notifier

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
)

const maxConnsPerUser = 10

// Hub tracks dashboard websocket sessions per user and pushes alerts to
// them live.
type Hub struct {
	connections map[int]map[*websocket.Conn]bool // userID -> set of connections
	mutex       sync.Mutex
	logger      *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[int]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a websocket session for a user.
func (h *Hub) AddConnection(userID int, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[userID]; !exists {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[userID]) >= maxConnsPerUser {
		h.logger.Warnf("max connections reached for user %d", userID)
		return
	}
	h.connections[userID][conn] = true
	h.logger.Infof("added websocket connection for user %d (total: %d)", userID, len(h.connections[userID]))
}

// RemoveConnection drops a websocket session.
func (h *Hub) RemoveConnection(userID int, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
}

// SendAlert pushes an alert to every open session of the user. Returns true
// when at least one session received it.
func (h *Hub) SendAlert(userID int, alert models.Alert) bool {
	payload, err := json.Marshal(alert)
	if err != nil {
		h.logger.Errorf("failed to marshal alert for websocket: %v", err)
		return false
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns, exists := h.connections[userID]
	if !exists {
		return false
	}

	delivered := false
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("failed to push alert to user %d: %v", userID, err)
			delete(conns, conn)
			continue
		}
		delivered = true
	}
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
	return delivered
}
