package sync

import (
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
)

// NotificationsMsg is a tea.Msg carrying the latest store contents.
type NotificationsMsg struct {
	Snapshot notify.Snapshot
}

// PresenceMsg is a tea.Msg with the latest online count.
type PresenceMsg struct {
	Count int
}

// ConnectionMsg is a tea.Msg sent when the live channel changes state.
type ConnectionMsg struct {
	State   realtime.State
	Attempt int
}

// AlertMsg is a tea.Msg asking the UI to show a new notification.
type AlertMsg struct {
	Message string
}

// NoticeMsg is a tea.Msg with a transient status line.
type NoticeMsg struct {
	Message string
}

// eventBuffer bounds queued alerts, notices and state changes.
const eventBuffer = 64

// Bridge turns session callbacks into Bubble Tea messages. Snapshots and
// presence are coalesced: the UI always receives the latest value, never
// a backlog. Other messages queue and are dropped when the queue is full.
type Bridge struct {
	events  chan tea.Msg
	changed chan struct{}
	stopCh  chan struct{}

	mu          gosync.Mutex
	snapshot    notify.Snapshot
	snapshotSet bool
	presence    int
	presenceSet bool
	stopOnce    gosync.Once
}

// New creates a Bridge.
func New() *Bridge {
	return &Bridge{
		events:  make(chan tea.Msg, eventBuffer),
		changed: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// NotificationsChanged records snap as the latest store contents.
func (b *Bridge) NotificationsChanged(snap notify.Snapshot) {
	b.mu.Lock()
	b.snapshot = snap
	b.snapshotSet = true
	b.mu.Unlock()
	b.signal()
}

// PresenceChanged records the latest online count.
func (b *Bridge) PresenceChanged(count int) {
	b.mu.Lock()
	b.presence = count
	b.presenceSet = true
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) ConnectionChanged(state realtime.State, attempt int) {
	b.send(ConnectionMsg{State: state, Attempt: attempt})
}

func (b *Bridge) Alert(message string) {
	b.send(AlertMsg{Message: message})
}

func (b *Bridge) Notice(message string) {
	b.send(NoticeMsg{Message: message})
}

// Stop makes pending and future WaitForNext commands return nil.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *Bridge) signal() {
	select {
	case b.changed <- struct{}{}:
	default:
		// A signal is already pending; it will pick up the new value.
	}
}

// send queues msg without blocking.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	default:
		// Drop if channel is full to avoid blocking the session
	}
}

// takeLatest returns the pending coalesced value, snapshots first.
func (b *Bridge) takeLatest() tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snapshotSet {
		b.snapshotSet = false
		if b.presenceSet {
			// Presence still pending; keep the signal armed.
			b.signal()
		}
		return NotificationsMsg{Snapshot: b.snapshot}
	}
	if b.presenceSet {
		b.presenceSet = false
		return PresenceMsg{Count: b.presence}
	}
	return nil
}

// WaitForNext returns a tea.Cmd that waits for the next message. It must
// be re-issued after every message it delivers to keep listening.
func (b *Bridge) WaitForNext() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-b.stopCh:
				return nil
			case msg := <-b.events:
				return msg
			case <-b.changed:
				if msg := b.takeLatest(); msg != nil {
					return msg
				}
			}
		}
	}
}
