package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/api"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
	"github.com/nhle/notehub/internal/session"
	"github.com/nhle/notehub/tests/testutil"
)

type testServer struct {
	srv  *Server
	http *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := NewServer(testutil.NewTestStore(t), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{srv: srv, http: ts}
}

func (ts *testServer) login(t *testing.T, recipientID string) string {
	t.Helper()
	body := strings.NewReader(`{"recipientId":"` + recipientID + `"}`)
	resp, err := http.Post(ts.http.URL+"/api/sessions", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: token})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) inject(t *testing.T, token, recipientID, message string) model.Notification {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/notifications", token, injectRequest{
		RecipientID: recipientID,
		Message:     message,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var n model.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&n))
	return n
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
}

func TestRequestsWithoutSessionAreRejected(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/notifications/u-1", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/notifications/u-1", "bogus", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/ws", "", nil).StatusCode)
}

func TestListIsScopedToSessionRecipient(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "u-1")

	resp := ts.do(t, http.MethodGet, "/api/notifications/u-2", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNotificationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "u-1")

	first := ts.inject(t, token, "u-1", "first")
	ts.inject(t, token, "u-1", "second")

	resp := ts.do(t, http.MethodPatch, "/api/notifications/"+first.ID+"/read", token, map[string]bool{"read": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPatch, "/api/notifications/missing/read", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/notifications/u-1/read", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/notifications/u-1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Notifications []model.Notification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "second", body.Notifications[0].Message)
	assert.Equal(t, model.KindNewComment, body.Notifications[0].Kind)
}

func TestMarkReadOfOtherRecipientIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	mine := ts.login(t, "u-1")
	theirs := ts.inject(t, mine, "u-2", "not yours")

	resp := ts.do(t, http.MethodPatch, "/api/notifications/"+theirs.ID+"/read", mine, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialRegistered(t *testing.T, ts *testServer, token string, identity model.Identity) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Add("Cookie", api.SessionCookie+"="+token)
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame, err := realtime.NewRegisterFrame(identity)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame realtime.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestSocketPresenceAndPush(t *testing.T) {
	ts := newTestServer(t)
	adaToken := ts.login(t, "u-1")
	graceToken := ts.login(t, "u-2")

	ada := dialRegistered(t, ts, adaToken, model.Identity{RecipientID: "u-1", DisplayName: "Ada"})
	frame := readFrame(t, ada)
	assert.Equal(t, realtime.FramePresenceCount, frame.Type)
	assert.JSONEq(t, "1", string(frame.Data))

	dialRegistered(t, ts, graceToken, model.Identity{RecipientID: "u-2", DisplayName: "Grace"})
	frame = readFrame(t, ada)
	assert.JSONEq(t, "2", string(frame.Data))

	pushed := ts.inject(t, graceToken, "u-1", "reply to your note")
	frame = readFrame(t, ada)
	require.Equal(t, realtime.FrameNewNotification, frame.Type)
	var got model.Notification
	require.NoError(t, json.Unmarshal(frame.Data, &got))
	assert.Equal(t, pushed.ID, got.ID)
	assert.Equal(t, "reply to your note", got.Message)
	assert.Equal(t, 2, ts.srv.Hub().Online())
}

func TestSocketMustRegisterAsSessionRecipient(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "u-1")

	conn := dialRegistered(t, ts, token, model.Identity{RecipientID: "u-2"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Equal(t, 0, ts.srv.Hub().Online())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "u-1")
	ts.inject(t, token, "u-1", "hello")

	resp := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "notehub_api_requests_total")
	assert.Contains(t, string(body), "notehub_connected_sockets")
}

// observed collects snapshots pushed by a session.
type observed struct {
	session.NopObserver
	snaps chan notify.Snapshot
}

func (o *observed) NotificationsChanged(snap notify.Snapshot) {
	select {
	case o.snaps <- snap:
	default:
	}
}

func TestClientSessionEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "u-1")
	ts.inject(t, token, "u-1", "already there")

	client, err := api.NewClient(api.Options{BaseURL: ts.http.URL})
	require.NoError(t, err)
	client.SetSession(token)

	manager := realtime.NewManager(realtime.Options{
		URL:                  ts.wsURL(),
		Jar:                  client.Jar(),
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 1,
	})
	obs := &observed{snaps: make(chan notify.Snapshot, 64)}
	ctrl := session.NewController(client, manager, obs, nil)
	defer ctrl.Close()

	ctrl.Activate(&model.Identity{RecipientID: "u-1", DisplayName: "Ada"})

	require.Eventually(t, func() bool { return len(ctrl.Snapshot().Notifications) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return ts.srv.Hub().Online() == 1 }, 3*time.Second, 10*time.Millisecond)

	live := ts.inject(t, token, "u-1", "pushed live")
	require.Eventually(t, func() bool { return len(ctrl.Snapshot().Notifications) == 2 }, 3*time.Second, 10*time.Millisecond)
	snap := ctrl.Snapshot()
	assert.Equal(t, live.ID, snap.Notifications[0].ID)
	assert.Equal(t, 2, snap.UnreadCount)

	require.NoError(t, ctrl.MarkRead(context.Background(), live.ID))
	assert.Equal(t, 1, ctrl.Snapshot().UnreadCount)

	require.NoError(t, ctrl.ClearAll(context.Background()))
	assert.Equal(t, 0, ctrl.Snapshot().UnreadCount)

	// Only entries the server already had as read are deleted.
	require.NoError(t, ctrl.Refresh())
	snap = ctrl.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "already there", snap.Notifications[0].Message)
	assert.Equal(t, 1, snap.UnreadCount)
}
