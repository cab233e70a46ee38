package models

// SessionEvent is one entry on a project's event stream, pushed to
// connected clients over the websocket hub.
type SessionEvent struct {
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
}

// Event types emitted by the orchestration session
const (
	EventTypeMessage     = "message"
	EventTypeToast       = "toast"
	EventTypeStateChange = "state_change"
	EventTypeFilesUpdate = "files_update"
	EventTypeThought     = "thought"
)
