// Package server implements the development server: it serves the output
// directory, injects the live-reload client into HTML pages and pushes
// reload and stylesheet updates to connected browsers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/conneroisu/assetpipe/internal/config"
	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/version"
	"github.com/conneroisu/assetpipe/internal/websocket"
)

// Internal routes live under this prefix so they never shadow output files.
const (
	routePrefix = "/__assetpipe/"
	routeWS     = routePrefix + "ws"
	routeHealth = routePrefix + "health"
)

// State is the lifecycle state of a DevServer.
type State int

const (
	StateStopped State = iota
	StateRunning
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// StatusSource supplies the task table shown on the status page.
type StatusSource interface {
	Snapshot() []pipeline.Event
}

// DevServer serves the output directory with live reload
type DevServer struct {
	cfg    config.ServerConfig
	root   string
	hub    *websocket.Manager
	status StatusSource
	logger logging.Logger

	serverMutex sync.RWMutex // Protects httpServer, listener and state
	httpServer  *http.Server
	listener    net.Listener
	state       State
	served      chan struct{}

	shutdownOnce sync.Once

	// openURL is swapped in tests.
	openURL func(url string) error
}

// Option configures a DevServer.
type Option func(*DevServer)

// WithStatusSource sets the source of the status page. Without one the page
// lists no tasks.
func WithStatusSource(src StatusSource) Option {
	return func(s *DevServer) { s.status = src }
}

// New creates a development server for the directory root.
func New(cfg config.ServerConfig, root string, logger logging.Logger, opts ...Option) *DevServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")

	s := &DevServer{
		cfg:     cfg,
		root:    root,
		hub:     websocket.NewManager(nil, logger),
		logger:  logger,
		openURL: openBrowser,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the complete HTTP handler, middleware included.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(routeWS, s.hub.HandleWebSocket)
	mux.HandleFunc(routeHealth, s.handleHealth)
	if s.cfg.UI {
		mux.HandleFunc(routePrefix, s.handleStatus)
	}
	mux.Handle("/", s.fileHandler())

	return s.addMiddleware(mux)
}

// Start binds the listener and serves in the background. A bind failure is
// returned synchronously.
func (s *DevServer) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.state == StateRunning {
		return apperrors.NewNetworkError("startServer", "server already running", nil)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return apperrors.NewNetworkError("startServer", "failed to listen on "+s.cfg.Addr(), err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.served = make(chan struct{})
	s.state = StateRunning

	server, served := s.httpServer, s.served
	go func() {
		defer close(served)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), err, "Server stopped unexpectedly")
		}
	}()

	s.logger.Info(ctx, "Serving files", "url", s.urlLocked(), "root", s.root)

	if s.cfg.Open {
		go func() {
			if err := s.openURL(s.URL()); err != nil {
				s.logger.Warn(context.Background(), err, "Failed to open browser")
			}
		}()
	}

	return nil
}

// State returns the lifecycle state.
func (s *DevServer) State() State {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.state
}

// URL returns the base URL the server is reachable at, or "" when stopped.
func (s *DevServer) URL() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.urlLocked()
}

func (s *DevServer) urlLocked() string {
	if s.listener == nil {
		return ""
	}
	host := s.cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	return "http://" + net.JoinHostPort(host, port)
}

// Reload tells every connected browser to reload the page.
func (s *DevServer) Reload() error {
	s.logger.Debug(context.Background(), "Broadcasting reload", "clients", s.hub.ConnectedClients())
	return s.hub.Broadcast(websocket.UpdateMessage{Type: websocket.MessageFullReload})
}

// StreamCSS pushes updated stylesheets to connected browsers. paths are
// relative to the served directory.
func (s *DevServer) StreamCSS(paths ...string) error {
	var errs error
	for _, p := range paths {
		target := path.Join("/", filepath.ToSlash(p))
		errs = multierr.Append(errs, s.hub.Broadcast(websocket.UpdateMessage{
			Type:   websocket.MessageCSSUpdate,
			Target: target,
		}))
	}
	return errs
}

// ConnectedClients returns the number of live-reload connections.
func (s *DevServer) ConnectedClients() int {
	return s.hub.ConnectedClients()
}

// Shutdown gracefully stops the HTTP server and the live-reload hub.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.serverMutex.Lock()
		server, served := s.httpServer, s.served
		s.state = StateStopped
		s.serverMutex.Unlock()

		shutdownErr = s.hub.Shutdown(ctx)
		if server != nil {
			shutdownErr = multierr.Append(shutdownErr, server.Shutdown(ctx))
			select {
			case <-served:
			case <-ctx.Done():
			}
		}

		s.logger.Info(ctx, "Server stopped")
	})

	return shutdownErr
}

// handleHealth returns the server health status for health checks
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"clients":   s.hub.ConnectedClients(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func openBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q", rawURL)
	}

	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", u.String()).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String()).Start()
	case "darwin":
		return exec.Command("open", u.String()).Start()
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
