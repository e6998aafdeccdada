// Package websocket implements the live-reload hub: browsers connect over a
// WebSocket and receive UpdateMessages whenever the output changes.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/assetpipe/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 512
)

// ErrShutdown is returned by Broadcast once the manager has shut down.
var ErrShutdown = errors.New("websocket manager is shut down")

// Manager tracks connected live-reload clients and fans messages out to them.
//
// A single hub goroutine owns registration, unregistration and broadcast,
// so a client's send channel is only ever closed by the hub.
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isShutdown   bool
}

// NewManager creates a manager and starts its hub. A nil validator accepts
// every origin; a nil logger discards output.
func NewManager(originValidator OriginValidator, logger logging.Logger) *Manager {
	if originValidator == nil {
		originValidator = AllowAllOrigins{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		logger:          logger.WithComponent("livereload"),
		ctx:             ctx,
		cancel:          cancel,
		hubDone:         make(chan struct{}),
	}

	go m.runHub()
	return m
}

// HandleWebSocket upgrades r and registers the connection.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.IsShutdown() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !m.originValidator.IsAllowedOrigin(origin) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins are checked above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(readLimit)

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 16),
		remote:    r.RemoteAddr,
		connected: time.Now(),
	}

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}

	go m.handleClient(client)
}

func (m *Manager) runHub() {
	defer close(m.hubDone)
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)
		case conn := <-m.unregister:
			m.unregisterClient(conn)
		case message := <-m.broadcast:
			m.broadcastToClients(message)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.conn] = client
	total := len(m.clients)
	m.clientsMutex.Unlock()

	m.logger.Debug(m.ctx, "Client connected", "remote", client.remote, "clients", total)
}

func (m *Manager) unregisterClient(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client, exists := m.clients[conn]
	if exists {
		delete(m.clients, conn)
		close(client.send)
	}
	total := len(m.clients)
	m.clientsMutex.Unlock()

	if exists {
		m.logger.Debug(m.ctx, "Client disconnected", "remote", client.remote, "clients", total)
	}
}

func (m *Manager) broadcastToClients(message []byte) {
	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clientsMutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow client; drop it rather than stall the hub.
			m.unregisterClient(client.conn)
			_ = client.conn.Close(websocket.StatusPolicyViolation, "client too slow")
		}
	}
}

func (m *Manager) handleClient(client *Client) {
	defer func() {
		select {
		case m.unregister <- client.conn:
		case <-m.ctx.Done():
		}
	}()

	go m.writeToClient(client)
	m.readFromClient(client)
}

// readFromClient drains the connection until it closes. The reload client
// never sends anything meaningful.
func (m *Manager) readFromClient(client *Client) {
	for {
		if _, _, err := client.conn.Read(m.ctx); err != nil {
			return
		}
	}
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer client.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "WebSocket write failed", "remote", client.remote, "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

// Broadcast sends message to every connected client. A zero Timestamp is
// set to the current time.
func (m *Manager) Broadcast(message UpdateMessage) error {
	if m.IsShutdown() {
		return ErrShutdown
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case m.broadcast <- data:
		return nil
	case <-m.ctx.Done():
		return ErrShutdown
	default:
		m.logger.Warn(m.ctx, nil, "Broadcast channel full, dropping message", "type", message.Type)
		return nil
	}
}

// ConnectedClients returns the number of connected clients.
func (m *Manager) ConnectedClients() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown stops the hub and closes every client connection.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.isShutdown = true
		m.mu.Unlock()

		m.cancel()

		select {
		case <-m.hubDone:
		case <-ctx.Done():
			err = ctx.Err()
		}

		m.clientsMutex.Lock()
		for conn, client := range m.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
		m.clients = make(map[*websocket.Conn]*Client)
		m.clientsMutex.Unlock()
	})
	return err
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isShutdown
}
