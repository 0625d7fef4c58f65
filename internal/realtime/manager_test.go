package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/model"
)

// fakePortal is a websocket endpoint that records registrations and lets
// each test script what happens after a client announces itself.
type fakePortal struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	dials         atomic.Int32
	mu            sync.Mutex
	registrations []Registration
	cookies       []string

	// onRegister runs after the register frame of connection n (1-based).
	onRegister func(n int, conn *websocket.Conn)
	// reject makes the handshake fail with 503 when it returns true.
	reject func(n int) bool
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{t: t}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) wsURL() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws"
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	n := int(p.dials.Add(1))
	if p.reject != nil && p.reject(n) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	if c, err := r.Cookie("notehub_session"); err == nil {
		p.mu.Lock()
		p.cookies = append(p.cookies, c.Value)
		p.mu.Unlock()
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return
	}
	if frame.Type != FrameRegister {
		p.t.Errorf("first frame on connection %d was %q, want register", n, frame.Type)
		return
	}
	var reg Registration
	_ = json.Unmarshal(frame.Data, &reg)
	p.mu.Lock()
	p.registrations = append(p.registrations, reg)
	p.mu.Unlock()

	if p.onRegister != nil {
		p.onRegister(n, conn)
	}
	// Hold the connection open until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *fakePortal) registered() []Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Registration, len(p.registrations))
	copy(out, p.registrations)
	return out
}

func push(t *testing.T, conn *websocket.Conn, frame Frame) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Errorf("push: %v", err)
	}
}

func notificationFrame(t *testing.T, id string) Frame {
	t.Helper()
	f, err := NewNotificationFrame(model.Notification{
		ID:      id,
		Kind:    model.KindNewComment,
		Message: "comment on " + id,
	})
	require.NoError(t, err)
	return f
}

func newTestManager(url string, maxRetries int, jar http.CookieJar) *Manager {
	return NewManager(Options{
		URL:                  url,
		Jar:                  jar,
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: maxRetries,
		HandshakeTimeout:     time.Second,
	})
}

var ada = model.Identity{RecipientID: "u-1", DisplayName: "Ada"}

// next returns the next event or fails after a timeout.
func next(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// nextData skips state events.
func nextData(t *testing.T, sub *Subscription) Event {
	t.Helper()
	for {
		ev := next(t, sub)
		if ev.Type != EventState {
			return ev
		}
	}
}

func waitClosed(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var rest []Event
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return rest
			}
			rest = append(rest, ev)
		case <-deadline:
			t.Fatal("event stream never closed")
			return nil
		}
	}
}

func TestAnnounceThenDeliver(t *testing.T) {
	portal := newFakePortal(t)
	portal.onRegister = func(n int, conn *websocket.Conn) {
		push(t, conn, notificationFrame(t, "n-1"))
	}

	m := newTestManager(portal.wsURL(), 2, nil)
	sub := m.Open(context.Background(), ada)
	defer m.Close()

	ev := nextData(t, sub)
	assert.Equal(t, EventNotification, ev.Type)
	assert.Equal(t, "n-1", ev.Notification.ID)
	assert.Equal(t, StateLive, sub.State())
	assert.Equal(t, []Registration{{RecipientID: "u-1", DisplayName: "Ada"}}, portal.registered())
}

func TestReconnectAnnouncesBeforeDelivery(t *testing.T) {
	portal := newFakePortal(t)
	portal.onRegister = func(n int, conn *websocket.Conn) {
		if n == 1 {
			conn.Close()
			return
		}
		push(t, conn, notificationFrame(t, "after-reconnect"))
	}

	m := newTestManager(portal.wsURL(), 3, nil)
	sub := m.Open(context.Background(), ada)
	defer m.Close()

	var states []State
	for {
		ev := next(t, sub)
		if ev.Type == EventState {
			states = append(states, ev.State)
			continue
		}
		require.Equal(t, EventNotification, ev.Type)
		assert.Equal(t, "after-reconnect", ev.Notification.ID)
		break
	}

	assert.Equal(t, []State{StateLive, StateReconnecting, StateLive}, states)
	assert.Len(t, portal.registered(), 2, "every connection announces itself")
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	portal := newFakePortal(t)
	portal.reject = func(int) bool { return true }

	m := newTestManager(portal.wsURL(), 2, nil)
	sub := m.Open(context.Background(), ada)

	events := waitClosed(t, sub)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventState, last.Type)
	assert.Equal(t, StateOffline, last.State)
	assert.Equal(t, StateOffline, sub.State())
	assert.Equal(t, int32(3), portal.dials.Load(), "one open plus two retries")

	require.NoError(t, m.Close())
}

func TestDropAfterLiveRetriesBounded(t *testing.T) {
	portal := newFakePortal(t)
	portal.reject = func(n int) bool { return n > 1 }
	portal.onRegister = func(n int, conn *websocket.Conn) { conn.Close() }

	m := newTestManager(portal.wsURL(), 2, nil)
	sub := m.Open(context.Background(), ada)

	waitClosed(t, sub)
	assert.Equal(t, StateOffline, sub.State())
	assert.Equal(t, int32(3), portal.dials.Load())
}

func TestUnknownAndMalformedFramesAreIgnored(t *testing.T) {
	portal := newFakePortal(t)
	portal.onRegister = func(n int, conn *websocket.Conn) {
		push(t, conn, Frame{Type: "badge_unlocked", Data: json.RawMessage(`{"x":1}`)})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		push(t, conn, Frame{Type: FrameNewNotification, Data: json.RawMessage(`{"message":"no id"}`)})
		push(t, conn, Frame{Type: FramePresenceCount, Data: json.RawMessage(`"many"`)})
		push(t, conn, NewPresenceFrame(5))
	}

	m := newTestManager(portal.wsURL(), 0, nil)
	sub := m.Open(context.Background(), ada)
	defer m.Close()

	ev := nextData(t, sub)
	assert.Equal(t, EventPresence, ev.Type)
	assert.Equal(t, 5, ev.Presence)
	assert.Equal(t, StateLive, sub.State())
}

func TestCloseIsSynchronousAndIdempotent(t *testing.T) {
	portal := newFakePortal(t)
	live := make(chan struct{})
	portal.onRegister = func(n int, conn *websocket.Conn) { close(live) }

	m := newTestManager(portal.wsURL(), 2, nil)
	sub := m.Open(context.Background(), ada)
	<-live

	require.NoError(t, m.Close())
	require.NoError(t, sub.Close())

	_, ok := <-drain(sub)
	assert.False(t, ok)
	assert.Equal(t, StateClosed, sub.State())
	assert.Nil(t, m.Current())
}

func drain(sub *Subscription) <-chan Event {
	for range sub.Events() {
	}
	return sub.Events()
}

func TestOpenClosesPreviousSubscription(t *testing.T) {
	portal := newFakePortal(t)
	m := newTestManager(portal.wsURL(), 2, nil)

	first := m.Open(context.Background(), ada)
	second := m.Open(context.Background(), model.Identity{RecipientID: "u-2", DisplayName: "Grace"})
	defer m.Close()

	select {
	case <-first.Done():
	default:
		t.Fatal("first subscription still open")
	}
	waitClosed(t, first)
	assert.Same(t, second, m.Current())

	for next(t, second).State != StateLive {
	}
	require.Eventually(t, func() bool {
		regs := portal.registered()
		return len(regs) > 0 && regs[len(regs)-1].RecipientID == "u-2"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHandshakeCarriesSessionCookie(t *testing.T) {
	portal := newFakePortal(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(portal.srv.URL)
	require.NoError(t, err)
	jar.SetCookies(base, []*http.Cookie{{Name: "notehub_session", Value: "tok-9", Path: "/"}})

	m := newTestManager(portal.wsURL(), 0, jar)
	sub := m.Open(context.Background(), ada)
	defer m.Close()

	for next(t, sub).State != StateLive {
	}
	portal.mu.Lock()
	defer portal.mu.Unlock()
	assert.Equal(t, []string{"tok-9"}, portal.cookies)
}

func TestContextCancelClosesSubscription(t *testing.T) {
	portal := newFakePortal(t)
	m := newTestManager(portal.wsURL(), 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sub := m.Open(ctx, ada)
	cancel()

	waitClosed(t, sub)
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func TestOfflineIsDeliveredWhenBufferIsFull(t *testing.T) {
	portal := newFakePortal(t)
	portal.onRegister = func(n int, conn *websocket.Conn) {
		// The live state event plus these frames fill the buffer.
		for i := 0; i < eventBuffer-1; i++ {
			push(t, conn, NewPresenceFrame(i))
		}
		conn.Close()
	}

	m := newTestManager(portal.wsURL(), 0, nil)
	sub := m.Open(context.Background(), ada)
	defer m.Close()

	require.Eventually(t, func() bool { return sub.State() == StateOffline }, 3*time.Second, 5*time.Millisecond)

	events := waitClosed(t, sub)
	require.Len(t, events, eventBuffer+1)
	last := events[len(events)-1]
	assert.Equal(t, EventState, last.Type)
	assert.Equal(t, StateOffline, last.State)
}
