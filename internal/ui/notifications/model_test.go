package notifications

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/keys"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
)

func snap(list ...model.Notification) notify.Snapshot {
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	return notify.Snapshot{Notifications: list, UnreadCount: unread}
}

func keyPress(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMarkReadEmitsSelectedID(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	m.SetSnapshot(snap(
		model.Notification{ID: "1", Message: "first"},
		model.Notification{ID: "2", Message: "second"},
	))

	m, _ = m.Update(keyPress("j"))
	_, cmd := m.Update(keyPress("m"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "2"}, cmd())

	_, cmd = m.Update(keyPress("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "2"}, cmd())
}

func TestMarkReadOnReadEntryDoesNothing(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	m.SetSnapshot(snap(model.Notification{ID: "1", Read: true}))

	_, cmd := m.Update(keyPress("m"))
	assert.Nil(t, cmd)
}

func TestClearAllOnlyWithUnread(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	m.SetSnapshot(snap(model.Notification{ID: "1", Read: true}))
	_, cmd := m.Update(keyPress("C"))
	assert.Nil(t, cmd)

	m.SetSnapshot(snap(model.Notification{ID: "1"}))
	_, cmd = m.Update(keyPress("C"))
	require.NotNil(t, cmd)
	assert.Equal(t, ClearAllMsg{}, cmd())
}

func TestCursorFollowsSelectedAcrossPrepend(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	m.SetSnapshot(snap(model.Notification{ID: "1"}, model.Notification{ID: "2"}))
	m, _ = m.Update(keyPress("j"))

	m.SetSnapshot(snap(model.Notification{ID: "3"}, model.Notification{ID: "1"}, model.Notification{ID: "2"}))

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", n.ID)
	assert.Equal(t, 3, m.Len())
}

func TestEmptyStateView(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	assert.Contains(t, m.View(), "No notifications yet")
}

func TestLineRendering(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	related := "note-1"
	d := ItemDelegate{now: func() time.Time { return now }}

	line := d.line(model.Notification{
		ID:                "1",
		Kind:              model.KindCommentReply,
		Message:           "Grace replied",
		RelatedResourceID: &related,
		CreatedAt:         now.Add(-2 * time.Hour),
	}, false)
	assert.Contains(t, line, "●")
	assert.Contains(t, line, model.KindCommentReply.Label())
	assert.Contains(t, line, "Grace replied")
	assert.Contains(t, line, "↗")
	assert.Contains(t, line, "2h ago")

	line = d.line(model.Notification{ID: "2", Kind: "badge_unlocked", Message: "m", Read: true}, false)
	assert.NotContains(t, line, "●")
	assert.Contains(t, line, "notice")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "1m ago", relativeTime(now.Add(-time.Minute), now))
	assert.Equal(t, "3d ago", relativeTime(now.Add(-72*time.Hour), now))
	assert.Equal(t, "2w ago", relativeTime(now.Add(-15*24*time.Hour), now))
	assert.Equal(t, "", relativeTime(time.Time{}, now))
}

func TestOpenEmitsSelectedNotification(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 10)
	_, cmd := m.Update(keyPress("o"))
	assert.Nil(t, cmd, "nothing to open in an empty list")

	read := model.Notification{ID: "1", Message: "first", Read: true}
	m.SetSnapshot(snap(read))
	_, cmd = m.Update(keyPress("o"))
	require.NotNil(t, cmd)
	assert.Equal(t, OpenMsg{Notification: read}, cmd())
}
