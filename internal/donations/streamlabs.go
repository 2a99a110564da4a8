// Package donations consumes the Streamlabs realtime socket for donation
// events. The socket speaks socket.io over a plain WebSocket; the few frame
// types involved are decoded by hand.
package donations

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const socketURL = "wss://sockets.streamlabs.com/socket.io/?token=%s&transport=websocket"

// Handler receives each donation with the provider's formatted amount.
type Handler interface {
	HandleDonation(username, amount, message string)
}

type Client struct {
	token   string
	handler Handler

	mu          sync.Mutex
	conn        *websocket.Conn
	forcedClose bool
}

func NewClient(token string, handler Handler) *Client {
	return &Client{token: token, handler: handler}
}

func (c *Client) Start() error {
	if c.token == "" {
		slog.Info("Streamlabs token not configured, donations disabled")
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.Dial(fmt.Sprintf(socketURL, c.token), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to streamlabs: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("Streamlabs socket connected")
	go c.readLoop(conn)
	return nil
}

func (c *Client) Stop() {
	c.mu.Lock()
	c.forcedClose = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// UpdateToken swaps the socket token and reconnects with it. An empty token
// leaves the feed disabled until a new one arrives.
func (c *Client) UpdateToken(token string) error {
	c.mu.Lock()
	c.forcedClose = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	c.mu.Lock()
	c.token = token
	c.conn = nil
	c.forcedClose = false
	c.mu.Unlock()

	return c.Start()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			forced := c.forcedClose
			c.mu.Unlock()

			if !forced {
				slog.Warn("Streamlabs socket closed, reconnecting", "error", err)
				time.Sleep(10 * time.Second)
				if err := c.Start(); err != nil {
					slog.Error("Failed to reconnect streamlabs", "error", err)
				}
			}
			return
		}

		c.handleFrame(conn, string(data))
	}
}

// handleFrame decodes engine.io packet types: "0" open (carries the ping
// interval), "2" ping which we answer with "3" pong, and "42" an emitted
// socket.io event.
func (c *Client) handleFrame(conn *websocket.Conn, frame string) {
	switch {
	case frame == "2":
		_ = conn.WriteMessage(websocket.TextMessage, []byte("3"))

	case strings.HasPrefix(frame, "42"):
		var payload []json.RawMessage
		if err := json.Unmarshal([]byte(frame[2:]), &payload); err != nil || len(payload) < 2 {
			return
		}

		var name string
		if err := json.Unmarshal(payload[0], &name); err != nil || name != "event" {
			return
		}

		c.handleEvent(payload[1])
	}
}

type donationEvent struct {
	Type    string `json:"type"`
	Message []struct {
		Name            string `json:"name"`
		FormattedAmount string `json:"formatted_amount"`
		Message         string `json:"message"`
	} `json:"message"`
}

func (c *Client) handleEvent(data json.RawMessage) {
	var event donationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Debug("Unparseable streamlabs event", "error", err)
		return
	}
	if event.Type != "donation" {
		return
	}

	for _, msg := range event.Message {
		slog.Info("Donation received", "name", msg.Name, "amount", msg.FormattedAmount)
		c.handler.HandleDonation(msg.Name, msg.FormattedAmount, msg.Message)
	}
}
