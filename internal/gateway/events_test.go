package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
	"github.com/shojbahmed330/OneClickStudio/internal/orchestration"
)

func newHubServer(t *testing.T, hub *EventHub) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/projects/:id/events", func(c *gin.Context) {
		projectID, err := uuid.Parse(c.Param("id"))
		require.NoError(t, err)
		hub.serve(c, projectID)
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dialHub(t *testing.T, server *httptest.Server, projectID uuid.UUID) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/projects/" + projectID.String() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventHub_BroadcastReachesSubscriber(t *testing.T) {
	hub := NewEventHub()
	server := newHubServer(t, hub)
	projectID := uuid.New()

	conn := dialHub(t, server, projectID)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectID) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(projectID, models.SessionEvent{
		EventType: models.EventTypeToast,
		Data:      map[string]interface{}{"text": "hello"},
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event models.SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventTypeToast, event.EventType)
	assert.Equal(t, "hello", event.Data["text"])
}

func TestEventHub_BroadcastScopedToProject(t *testing.T) {
	hub := NewEventHub()
	server := newHubServer(t, hub)

	projectA := uuid.New()
	projectB := uuid.New()
	connA := dialHub(t, server, projectA)
	connB := dialHub(t, server, projectB)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectA) == 1 && hub.SubscriberCount(projectB) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(projectA, models.SessionEvent{
		EventType: models.EventTypeStateChange,
		Data:      map[string]interface{}{"state": "PLANNED"},
	})

	connA.SetReadDeadline(time.Now().Add(time.Second))
	var event models.SessionEvent
	require.NoError(t, connA.ReadJSON(&event))
	assert.Equal(t, models.EventTypeStateChange, event.EventType)

	// The other project's subscriber must see nothing.
	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err)
}

func TestEventHub_DisconnectedSubscriberIsDropped(t *testing.T) {
	hub := NewEventHub()
	server := newHubServer(t, hub)
	projectID := uuid.New()

	conn := dialHub(t, server, projectID)
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectID) == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectID) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestEventHub_StalledSubscriberIsDroppedOnWriteTimeout(t *testing.T) {
	prev := writeWait
	writeWait = 50 * time.Millisecond
	t.Cleanup(func() { writeWait = prev })

	hub := NewEventHub()
	server := newHubServer(t, hub)
	projectID := uuid.New()

	// This subscriber never reads. Once the socket buffers fill, further
	// writes block until the write deadline fires and drop it.
	dialHub(t, server, projectID)
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectID) == 1
	}, time.Second, 5*time.Millisecond)

	payload := strings.Repeat("x", 256*1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Broadcast(projectID, models.SessionEvent{
				EventType: models.EventTypeFilesUpdate,
				Data:      map[string]interface{}{"blob": payload},
			})
			if hub.SubscriberCount(projectID) == 0 {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast loop blocked on a stalled subscriber")
	}
	assert.Equal(t, 0, hub.SubscriberCount(projectID))
}

func TestProjectNotifier_TranslatesSessionEvents(t *testing.T) {
	hub := NewEventHub()
	server := newHubServer(t, hub)
	projectID := uuid.New()

	conn := dialHub(t, server, projectID)
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(projectID) == 1
	}, time.Second, 5*time.Millisecond)

	notifier := hub.Notifier(projectID)

	notifier.MessageAppended(models.ChatMessage{ID: "m1", Role: models.RoleAssistant, Content: "hi"})
	notifier.Toast("saved", models.ToastSuccess)
	notifier.StateChanged(orchestration.StateAwaitingApproval, 2)
	notifier.FilesUpdated([]string{"index.html"})

	expectedTypes := []string{
		models.EventTypeMessage,
		models.EventTypeToast,
		models.EventTypeStateChange,
		models.EventTypeFilesUpdate,
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	for _, expected := range expectedTypes {
		var event models.SessionEvent
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, expected, event.EventType)
	}
}

func TestEventHub_UpgradeRejectsPlainGet(t *testing.T) {
	hub := NewEventHub()
	server := newHubServer(t, hub)

	resp, err := http.Get(server.URL + "/ws/projects/" + uuid.New().String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
