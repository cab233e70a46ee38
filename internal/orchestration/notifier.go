package orchestration

import (
	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

// Notifier receives transcript appends and ephemeral toasts as side
// effects of the orchestration loop. Implementations must not call back
// into the session.
type Notifier interface {
	MessageAppended(msg models.ChatMessage)
	Toast(message, toastType string)
	StateChanged(state State, queueLen int)
	FilesUpdated(paths []string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) MessageAppended(models.ChatMessage) {}
func (NopNotifier) Toast(string, string)               {}
func (NopNotifier) StateChanged(State, int)            {}
func (NopNotifier) FilesUpdated([]string)              {}
