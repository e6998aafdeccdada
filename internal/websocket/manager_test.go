package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type originList []string

func (o originList) IsAllowedOrigin(origin string) bool {
	for _, allowed := range o {
		if origin == allowed {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, m *Manager) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func waitForClients(t *testing.T, m *Manager, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.ConnectedClients() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Shutdown(context.Background())

	url := newTestServer(t, m)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, m, 2)

	require.NoError(t, m.Broadcast(UpdateMessage{Type: MessageCSSUpdate, Target: "/css/style.min.css"}))

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, data, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err)

		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MessageCSSUpdate, msg.Type)
		assert.Equal(t, "/css/style.min.css", msg.Target)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Shutdown(context.Background())

	url := newTestServer(t, m)
	conn := dial(t, url)
	waitForClients(t, m, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	waitForClients(t, m, 0)
}

func TestOriginValidation(t *testing.T) {
	m := NewManager(originList{"http://localhost:3000"}, nil)
	defer m.Shutdown(context.Background())

	url := newTestServer(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	conn.CloseNow()
}

func TestShutdown(t *testing.T) {
	m := NewManager(nil, nil)
	url := newTestServer(t, m)
	conn := dial(t, url)
	waitForClients(t, m, 1)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.True(t, m.IsShutdown())
	assert.Equal(t, 0, m.ConnectedClients())
	assert.ErrorIs(t, m.Broadcast(UpdateMessage{Type: MessageFullReload}), ErrShutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err, "server closed the connection")

	assert.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestHandleWebSocketAfterShutdown(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	m.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
