package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/keys"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/ui/notifications"
)

func sample() model.Notification {
	related := "note-42"
	return model.Notification{
		ID:                "n-1",
		Kind:              model.KindCommentReply,
		Message:           "Grace replied to your comment",
		RelatedResourceID: &related,
		CreatedAt:         time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestViewShowsNotification(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No notification selected")

	m.SetNotification(sample())
	view := m.View()
	assert.Contains(t, view, "REPLY")
	assert.Contains(t, view, "unread")
	assert.Contains(t, view, "note-42")
	assert.Contains(t, view, "Grace replied to your comment")
}

func TestMarkReadOnlyWhenUnread(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotification(sample())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	assert.Equal(t, notifications.MarkReadMsg{ID: "n-1"}, cmd())

	read := sample()
	read.Read = true
	m.SetNotification(read)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Nil(t, cmd)
}

func TestBackEmitsBackMsg(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestSetSnapshotTracksReadState(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotification(sample())

	read := sample()
	read.Read = true
	assert.True(t, m.SetSnapshot(notify.Snapshot{Notifications: []model.Notification{read}}))
	n, ok := m.Notification()
	require.True(t, ok)
	assert.True(t, n.Read)

	assert.False(t, m.SetSnapshot(notify.Snapshot{}))
}
