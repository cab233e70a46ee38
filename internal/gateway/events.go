package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
	"github.com/shojbahmed330/OneClickStudio/internal/orchestration"
)

// writeWait bounds how long one subscriber write may block. A stalled
// subscriber must not hold up the session that is broadcasting; its
// write times out and the connection is dropped instead.
var writeWait = 10 * time.Second

// hubClient is one websocket subscriber. Writes are serialized through
// the per-client mutex because gorilla/websocket allows only one
// concurrent writer.
type hubClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubClient) send(event models.SessionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// EventHub fans session events out to the websocket subscribers of each
// project. The hub is write-only from the orchestration side; client
// messages arrive over the HTTP API, never over the socket.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*hubClient]struct{}
	upgrader websocket.Upgrader
}

// NewEventHub creates an event hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[uuid.UUID]map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Implement proper CORS origin checking for production
				origin := r.Header.Get("Origin")
				log.Printf("WebSocket connection from origin: %s", origin)
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// serve upgrades the request and keeps the connection registered until
// the client goes away. Auth and project ownership are checked by the
// caller before the upgrade.
func (h *EventHub) serve(c *gin.Context, projectID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to upgrade connection","project_id":"%s","error":"%v"}`, projectID, err)
		return
	}

	client := &hubClient{conn: conn}
	h.register(projectID, client)
	defer func() {
		h.unregister(projectID, client)
		conn.Close()
	}()

	log.Printf(`{"level":"info","message":"Event subscriber connected","project_id":"%s"}`, projectID)

	// Drain the read side so control frames are processed; any payload
	// the client sends is discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf(`{"level":"info","message":"Event subscriber read ended","project_id":"%s","error":"%v"}`, projectID, err)
			}
			return
		}
	}
}

func (h *EventHub) register(projectID uuid.UUID, client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*hubClient]struct{})
	}
	h.clients[projectID][client] = struct{}{}
}

func (h *EventHub) unregister(projectID uuid.UUID, client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[projectID], client)
	if len(h.clients[projectID]) == 0 {
		delete(h.clients, projectID)
	}
}

// Broadcast delivers one event to every subscriber of a project. Dead
// connections are dropped on write failure.
func (h *EventHub) Broadcast(projectID uuid.UUID, event models.SessionEvent) {
	h.mu.RLock()
	subscribers := make([]*hubClient, 0, len(h.clients[projectID]))
	for client := range h.clients[projectID] {
		subscribers = append(subscribers, client)
	}
	h.mu.RUnlock()

	for _, client := range subscribers {
		if err := client.send(event); err != nil {
			log.Printf(`{"level":"warn","message":"Dropping dead event subscriber","project_id":"%s","error":"%v"}`, projectID, err)
			h.unregister(projectID, client)
			client.conn.Close()
		}
	}
}

// SubscriberCount reports the live subscribers for a project.
func (h *EventHub) SubscriberCount(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

// Notifier returns the orchestration-facing view of the hub for one
// project.
func (h *EventHub) Notifier(projectID uuid.UUID) orchestration.Notifier {
	return &projectNotifier{hub: h, projectID: projectID}
}

type projectNotifier struct {
	hub       *EventHub
	projectID uuid.UUID
}

func (n *projectNotifier) MessageAppended(msg models.ChatMessage) {
	n.hub.Broadcast(n.projectID, models.SessionEvent{
		EventType: models.EventTypeMessage,
		Data:      map[string]interface{}{"message": msg},
	})
}

func (n *projectNotifier) Toast(message, toastType string) {
	n.hub.Broadcast(n.projectID, models.SessionEvent{
		EventType: models.EventTypeToast,
		Data: map[string]interface{}{
			"toast": models.Toast{
				ID:      uuid.New().String(),
				Message: message,
				Type:    toastType,
			},
		},
	})
}

func (n *projectNotifier) StateChanged(state orchestration.State, queueLen int) {
	n.hub.Broadcast(n.projectID, models.SessionEvent{
		EventType: models.EventTypeStateChange,
		Data: map[string]interface{}{
			"state":        string(state),
			"queue_length": queueLen,
		},
	})
}

func (n *projectNotifier) FilesUpdated(paths []string) {
	n.hub.Broadcast(n.projectID, models.SessionEvent{
		EventType: models.EventTypeFilesUpdate,
		Data:      map[string]interface{}{"paths": paths},
	})
}
