package session

import (
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
)

// Observer receives everything the UI needs to render a session. Calls
// may come from any goroutine and must not block or call back into the
// Controller.
type Observer interface {
	NotificationsChanged(snap notify.Snapshot)
	PresenceChanged(count int)
	ConnectionChanged(state realtime.State, attempt int)
	// Alert shows a new notification's message to the user.
	Alert(message string)
	// Notice shows a transient status line, typically a failure.
	Notice(message string)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) NotificationsChanged(notify.Snapshot) {}
func (NopObserver) PresenceChanged(int) {}
func (NopObserver) ConnectionChanged(realtime.State, int) {}
func (NopObserver) Alert(string) {}
func (NopObserver) Notice(string) {}
