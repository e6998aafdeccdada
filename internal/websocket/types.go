package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types understood by the live-reload client.
const (
	// MessageFullReload asks the page to reload itself.
	MessageFullReload = "full_reload"
	// MessageCSSUpdate asks the page to re-fetch the stylesheet in Target
	// without reloading.
	MessageCSSUpdate = "css_update"
)

// Client represents a WebSocket client connection
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	remote    string
	connected time.Time
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a browser origin may open a live-reload
// connection.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowAllOrigins accepts every origin.
type AllowAllOrigins struct{}

// IsAllowedOrigin implements OriginValidator.
func (AllowAllOrigins) IsAllowedOrigin(string) bool { return true }
