package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/config"
	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	ws "github.com/conneroisu/assetpipe/internal/websocket"
)

const page = `<!DOCTYPE html><html><head><link rel="stylesheet" href="css/style.min.css"></head><body><h1>Hi</h1></body></html>`

func newOutputDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "style.min.css"), []byte("h1{color:red}"), 0o644))
	return root
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 0, CORS: true}
}

func startServer(t *testing.T, cfg config.ServerConfig, root string, opts ...Option) *DevServer {
	t.Helper()
	srv := New(cfg, root, nil, opts...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestStateTransitions(t *testing.T) {
	srv := New(testConfig(), newOutputDir(t), nil)
	assert.Equal(t, StateStopped, srv.State())
	assert.Equal(t, "", srv.URL())

	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, StateRunning, srv.State())
	assert.Equal(t, "running", srv.State().String())
	assert.True(t, strings.HasPrefix(srv.URL(), "http://127.0.0.1:"))

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, srv.State())
}

func TestStartFailsWhenPortTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	srv := New(cfg, t.TempDir(), nil)
	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork))
	assert.Equal(t, StateStopped, srv.State())
}

func TestServesOutputWithInjectedClient(t *testing.T) {
	srv := startServer(t, testConfig(), newOutputDir(t))

	resp, body := get(t, srv.URL()+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, body, "<h1>Hi</h1>")
	assert.Contains(t, body, `"/__assetpipe/ws"`)
	assert.Less(t, strings.Index(body, "<h1>Hi</h1>"), strings.Index(body, "<script>"))

	resp, body = get(t, srv.URL()+"/css/style.min.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "h1{color:red}", body)

	resp, _ = get(t, srv.URL()+"/missing.css")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInjectScript(t *testing.T) {
	out, err := InjectScript([]byte(page), "console.log(1)")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<script>console.log(1)</script></body>")
	assert.True(t, strings.HasPrefix(string(out), "<!DOCTYPE html>"))

	out, err = InjectScript([]byte("<p>fragment</p>"), "x()")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<p>fragment</p><script>x()</script>")
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg ws.UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestReloadAndStreamCSS(t *testing.T) {
	srv := startServer(t, testConfig(), newOutputDir(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL(), "http") + routeWS
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return srv.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.StreamCSS(filepath.Join("css", "style.min.css")))
	msg := readMessage(t, conn)
	assert.Equal(t, ws.MessageCSSUpdate, msg.Type)
	assert.Equal(t, "/css/style.min.css", msg.Target)

	require.NoError(t, srv.Reload())
	msg = readMessage(t, conn)
	assert.Equal(t, ws.MessageFullReload, msg.Type)
}

type fakeStatus []pipeline.Event

func (f fakeStatus) Snapshot() []pipeline.Event { return f }

func TestStatusPage(t *testing.T) {
	events := fakeStatus{
		{Task: "styles", Status: pipeline.StatusFailed, Started: time.Now(), Duration: 20 * time.Millisecond, Err: errors.New("<bad> less")},
		{Task: "html", Status: pipeline.StatusSuccess, Started: time.Now(), Duration: 5 * time.Millisecond},
	}

	t.Run("disabled by default", func(t *testing.T) {
		srv := New(testConfig(), newOutputDir(t), nil, WithStatusSource(events))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routePrefix, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.UI = true
		srv := New(cfg, newOutputDir(t), nil, WithStatusSource(events))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routePrefix, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<td>styles</td>")
		assert.Contains(t, body, "&lt;bad&gt; less")
		assert.Contains(t, body, "<td>html</td>")
		assert.NotContains(t, body, "<bad>")
	})
}

func TestHealth(t *testing.T) {
	srv := New(testConfig(), t.TempDir(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routeHealth, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestOpenBrowserOnStart(t *testing.T) {
	cfg := testConfig()
	cfg.Open = true
	srv := New(cfg, newOutputDir(t), nil)

	opened := make(chan string, 1)
	srv.openURL = func(url string) error {
		opened <- url
		return nil
	}
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Shutdown(context.Background())

	select {
	case url := <-opened:
		assert.Equal(t, srv.URL(), url)
	case <-time.After(2 * time.Second):
		t.Fatal("browser was not opened")
	}
}
