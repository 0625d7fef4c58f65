package sync

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
	"github.com/nhle/notehub/internal/session"
)

var _ session.Observer = (*Bridge)(nil)

func receive(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return nil
	}
}

func snapshotOf(ids ...string) notify.Snapshot {
	snap := notify.Snapshot{}
	for _, id := range ids {
		snap.Notifications = append(snap.Notifications, model.Notification{ID: id})
		snap.UnreadCount++
	}
	return snap
}

func TestSnapshotsCoalesceToLatest(t *testing.T) {
	b := New()
	b.NotificationsChanged(snapshotOf("1"))
	b.NotificationsChanged(snapshotOf("2", "1"))
	b.NotificationsChanged(snapshotOf("3", "2", "1"))

	msg := receive(t, b.WaitForNext())
	require.IsType(t, NotificationsMsg{}, msg)
	assert.Equal(t, 3, msg.(NotificationsMsg).Snapshot.UnreadCount)

	b.Stop()
	assert.Nil(t, receive(t, b.WaitForNext()))
}

func TestSnapshotAndPresenceBothDelivered(t *testing.T) {
	b := New()
	b.PresenceChanged(3)
	b.NotificationsChanged(snapshotOf("1"))
	b.PresenceChanged(7)

	first := receive(t, b.WaitForNext())
	second := receive(t, b.WaitForNext())

	assert.Equal(t, NotificationsMsg{Snapshot: snapshotOf("1")}, first)
	assert.Equal(t, PresenceMsg{Count: 7}, second)
}

func TestQueuedMessagesKeepOrder(t *testing.T) {
	b := New()
	b.ConnectionChanged(realtime.StateReconnecting, 1)
	b.Alert("new comment")
	b.Notice("could not clear")

	assert.Equal(t, ConnectionMsg{State: realtime.StateReconnecting, Attempt: 1}, receive(t, b.WaitForNext()))
	assert.Equal(t, AlertMsg{Message: "new comment"}, receive(t, b.WaitForNext()))
	assert.Equal(t, NoticeMsg{Message: "could not clear"}, receive(t, b.WaitForNext()))
}

func TestFullQueueNeverBlocks(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer*3; i++ {
			b.Alert("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Alert blocked on a full queue")
	}
	assert.Len(t, b.events, eventBuffer)
}

func TestStopReleasesWaiter(t *testing.T) {
	b := New()
	cmd := b.WaitForNext()
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()

	b.Stop()
	b.Stop()

	select {
	case msg := <-out:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released")
	}
}
