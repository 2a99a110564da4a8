// Package eventsub maintains the EventSub WebSocket feed: one long-lived
// connection, subscription registration on welcome, and reconnection with a
// fixed delay on any unexpected close. Server-requested session migrations
// redial immediately.
package eventsub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nicklaw5/helix/v2"

	"github.com/zexaal/stream-companion/internal/metrics"
)

const defaultFeedURL = "wss://eventsub.wss.twitch.tv/ws"

// API is the Helix surface the feed needs to register its subscriptions.
type API interface {
	ChannelID() string
	BotID() string
	SubscribeEventSub(sessionID, eventType, version string, condition helix.EventSubCondition) error
}

type Client struct {
	api            API
	handler        func(Event)
	reconnectDelay time.Duration

	mu           sync.RWMutex
	conn         *websocket.Conn
	feedURL      string
	forcedClose  bool
	reconnecting bool
	stopChan     chan struct{}
}

func NewClient(api API, reconnectDelay time.Duration, handler func(Event)) *Client {
	return &Client{
		api:            api,
		handler:        handler,
		reconnectDelay: reconnectDelay,
		feedURL:        defaultFeedURL,
		stopChan:       make(chan struct{}),
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	c.reconnecting = false
	url := c.feedURL
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}

	// A previous connection may still be open during a session migration;
	// its read loop recognizes it is stale and exits without reconnecting.
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	go c.readLoop(conn)
	return nil
}

// Close shuts the feed down permanently. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.forcedClose {
		c.mu.Unlock()
		return
	}
	c.forcedClose = true
	conn := c.conn
	c.mu.Unlock()

	close(c.stopChan)
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			forced := c.forcedClose
			current := c.conn
			c.mu.RUnlock()

			if !forced && conn == current {
				slog.Warn("EventSub feed closed", "error", err)
				go c.reconnect()
			}
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			slog.Error("Failed to parse EventSub frame", "error", err)
			continue
		}

		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Metadata.MessageType {
	case "session_welcome":
		var p sessionPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			slog.Error("Failed to parse session welcome", "error", err)
			return
		}
		slog.Info("EventSub session established", "session_id", p.Session.ID)

		// The reconnect URL is single-use; after a fresh welcome the next
		// reconnection starts from the default endpoint again.
		c.mu.Lock()
		c.feedURL = defaultFeedURL
		c.mu.Unlock()

		c.registerSubscriptions(p.Session.ID)

	case "session_keepalive":
		// Nothing to do; the read deadline is the connection close itself.

	case "session_reconnect":
		var p sessionPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			slog.Error("Failed to parse session reconnect", "error", err)
			return
		}
		slog.Info("EventSub reconnect requested", "url", p.Session.ReconnectURL)

		c.mu.Lock()
		if p.Session.ReconnectURL != "" {
			c.feedURL = p.Session.ReconnectURL
		}
		c.mu.Unlock()

		// Server-initiated migration: redial right away, the fixed delay
		// is only for unexpected drops.
		if err := c.Connect(); err != nil {
			slog.Error("Failed to migrate EventSub session", "error", err)
			go c.reconnect()
		}

	case "notification":
		var p notificationPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			slog.Error("Failed to parse notification", "error", err)
			return
		}

		event, ok, err := parseEvent(p.Subscription.Type, p.Event)
		if err != nil {
			slog.Error("Failed to parse event", "type", p.Subscription.Type, "error", err)
			return
		}
		if !ok {
			return
		}

		metrics.EventsReceived.WithLabelValues(string(event.Type)).Inc()
		if c.handler != nil {
			c.handler(event)
		}

	case "revocation":
		slog.Warn("EventSub subscription revoked", "type", f.Metadata.SubscriptionType)
	}
}

// registerSubscriptions subscribes every event type the pipeline consumes.
// Each registration failure is logged and skipped so one denied scope never
// takes down the rest of the feed.
func (c *Client) registerSubscriptions(sessionID string) {
	channelID := c.api.ChannelID()
	botID := c.api.BotID()

	broadcaster := helix.EventSubCondition{BroadcasterUserID: channelID}

	subs := []struct {
		eventType string
		version   string
		condition helix.EventSubCondition
	}{
		{"channel.follow", "2", helix.EventSubCondition{BroadcasterUserID: channelID, ModeratorUserID: botID}},
		{"channel.subscribe", "1", broadcaster},
		{"channel.subscription.message", "1", broadcaster},
		{"channel.subscription.gift", "1", broadcaster},
		{"channel.cheer", "1", broadcaster},
		{"channel.raid", "1", helix.EventSubCondition{ToBroadcasterUserID: channelID}},
		{"channel.channel_points_custom_reward_redemption.add", "1", broadcaster},
		{"stream.online", "1", broadcaster},
		{"stream.offline", "1", broadcaster},
		{"channel.hype_train.begin", "2", broadcaster},
		{"channel.hype_train.progress", "2", broadcaster},
		{"channel.hype_train.end", "2", broadcaster},
	}

	for _, s := range subs {
		if err := c.api.SubscribeEventSub(sessionID, s.eventType, s.version, s.condition); err != nil {
			slog.Error("Failed to register EventSub subscription", "type", s.eventType, "error", err)
			continue
		}
		slog.Debug("Registered EventSub subscription", "type", s.eventType)
	}
}

// reconnect redials after the fixed delay. The delay is unconditional so a
// flapping network cannot turn into a tight dial loop.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.reconnecting || c.forcedClose {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	metrics.Reconnects.Inc()
	slog.Info("Reconnecting EventSub feed", "delay", c.reconnectDelay)
	time.Sleep(c.reconnectDelay)

	c.mu.RLock()
	forced := c.forcedClose
	c.mu.RUnlock()
	if forced {
		return
	}

	if err := c.Connect(); err != nil {
		slog.Error("Failed to reconnect EventSub feed", "error", err)
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
		go c.reconnect()
	}
}
