// Package chat connects to Twitch IRC for the companion's bot account:
// reading the channel's chat with tags and sending bot replies.
package chat

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	ircHost = "irc.chat.twitch.tv"
	ircPort = 6667
)

// Message is one PRIVMSG with the tag fields the pipeline uses.
type Message struct {
	ID          string
	UserID      string
	Username    string
	DisplayName string
	Text        string
	Color       string
	Badges      string
	Emotes      string
	IsMod       bool
	IsVIP       bool
	IsSub       bool
	IsBroadcast bool
	FirstMsg    bool
	// RewardID is set when the message was sent through a channel point
	// redemption with text input.
	RewardID string
}

type IRCClient struct {
	username string
	token    string
	channel  string
	onMsg    func(Message)

	// OnClearChat fires on a moderator chat clear, OnMessageDeleted on a
	// single message deletion with the target message ID.
	OnClearChat      func()
	OnMessageDeleted func(messageID string)

	conn     net.Conn
	reader   *bufio.Reader
	running  bool
	stopChan chan struct{}

	mu      sync.RWMutex
	writeMu sync.Mutex
}

func NewIRCClient(username, token, channel string, onMsg func(Message)) *IRCClient {
	return &IRCClient{
		username: strings.ToLower(username),
		token:    strings.TrimPrefix(token, "oauth:"),
		channel:  "#" + strings.ToLower(channel),
		onMsg:    onMsg,
		stopChan: make(chan struct{}),
	}
}

func (c *IRCClient) Connect() error {
	addr := net.JoinHostPort(ircHost, fmt.Sprintf("%d", ircPort))
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to IRC: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.running = true
	c.mu.Unlock()

	if err := c.authenticate(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := c.sendRaw("JOIN " + c.channel); err != nil {
		conn.Close()
		return fmt.Errorf("failed to join channel: %w", err)
	}

	go c.readLoop()

	slog.Info("Joined IRC chat", "channel", c.channel)
	return nil
}

func (c *IRCClient) authenticate() error {
	if err := c.sendRaw("CAP REQ :twitch.tv/tags twitch.tv/commands"); err != nil {
		return err
	}
	if err := c.sendRaw("PASS oauth:" + c.token); err != nil {
		return err
	}
	return c.sendRaw("NICK " + c.username)
}

// Say sends a chat message to the channel as the bot account.
func (c *IRCClient) Say(message string) error {
	return c.sendRaw(fmt.Sprintf("PRIVMSG %s :%s", c.channel, message))
}

func (c *IRCClient) sendRaw(message string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := conn.Write([]byte(message + "\r\n"))
	return err
}

func (c *IRCClient) readLoop() {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.RLock()
		reader := c.reader
		running := c.running
		c.mu.RUnlock()

		if !running || reader == nil {
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			c.mu.RLock()
			running := c.running
			c.mu.RUnlock()

			if running {
				slog.Warn("IRC read error, reconnecting", "channel", c.channel, "error", err)
				go c.reconnect()
			}
			return
		}

		c.handleLine(strings.TrimSpace(line))
	}
}

func (c *IRCClient) reconnect() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}

	for {
		select {
		case <-c.stopChan:
			return
		case <-time.After(5 * time.Second):
		}

		if err := c.Connect(); err != nil {
			slog.Error("Failed to reconnect IRC", "channel", c.channel, "error", err)
			continue
		}
		return
	}
}

func (c *IRCClient) handleLine(line string) {
	if strings.HasPrefix(line, "PING") {
		_ = c.sendRaw(strings.Replace(line, "PING", "PONG", 1))
		return
	}

	switch {
	case strings.Contains(line, "PRIVMSG"):
		c.handlePrivMsg(line)
	case strings.Contains(line, "USERNOTICE"):
		c.handleUserNotice(line)
	case strings.Contains(line, "CLEARMSG"):
		if c.OnMessageDeleted != nil {
			tags := lineTags(line)
			c.OnMessageDeleted(tags["target-msg-id"])
		}
	case strings.Contains(line, "CLEARCHAT"):
		// CLEARCHAT with a target-user-id is a timeout/ban, without one a
		// full chat clear.
		if c.OnClearChat != nil && lineTags(line)["target-user-id"] == "" {
			c.OnClearChat()
		}
	}
}

func lineTags(line string) map[string]string {
	if !strings.HasPrefix(line, "@") {
		return nil
	}
	spaceIdx := strings.Index(line, " ")
	if spaceIdx == -1 {
		return nil
	}
	return parseTags(line[1:spaceIdx])
}

func (c *IRCClient) handlePrivMsg(line string) {
	var tags map[string]string
	remaining := line

	if strings.HasPrefix(line, "@") {
		spaceIdx := strings.Index(line, " ")
		if spaceIdx == -1 {
			return
		}
		tags = parseTags(line[1:spaceIdx])
		remaining = line[spaceIdx+1:]
	}

	parts := strings.SplitN(remaining, " ", 4)
	if len(parts) < 4 {
		return
	}

	prefix := parts[0]
	text := strings.TrimPrefix(parts[3], ":")

	nick := ""
	if strings.HasPrefix(prefix, ":") {
		prefix = prefix[1:]
		if idx := strings.Index(prefix, "!"); idx > 0 {
			nick = prefix[:idx]
		}
	}
	if nick == "" {
		return
	}

	msg := Message{
		ID:       tags["id"],
		UserID:   tags["user-id"],
		Username: nick,
		Text:     text,
		Color:    tags["color"],
		Badges:   tags["badges"],
		Emotes:   tags["emotes"],
		IsMod:    tags["mod"] == "1",
		IsVIP:    tags["vip"] == "1",
		IsSub:    tags["subscriber"] == "1",
		FirstMsg: tags["first-msg"] == "1",
		RewardID: tags["custom-reward-id"],
	}
	msg.DisplayName = nick
	if dn := tags["display-name"]; dn != "" {
		msg.DisplayName = dn
	}
	msg.IsBroadcast = strings.Contains(tags["badges"], "broadcaster/")

	if c.onMsg != nil {
		c.onMsg(msg)
	}
}

// handleUserNotice forwards /announce messages as regular chat lines. Other
// notice kinds (sub shares, raids) already arrive through the event feed.
func (c *IRCClient) handleUserNotice(line string) {
	tags := lineTags(line)
	if tags["msg-id"] != "announcement" {
		return
	}

	text := ""
	if idx := strings.Index(line, "USERNOTICE "+c.channel+" :"); idx != -1 {
		text = line[idx+len("USERNOTICE "+c.channel+" :"):]
	}
	if text == "" {
		return
	}

	msg := Message{
		ID:       tags["id"],
		UserID:   tags["user-id"],
		Username: tags["login"],
		Text:     text,
		Color:    tags["color"],
		Badges:   tags["badges"],
		Emotes:   tags["emotes"],
		IsMod:    tags["mod"] == "1",
		IsSub:    tags["subscriber"] == "1",
	}
	msg.DisplayName = msg.Username
	if dn := tags["display-name"]; dn != "" {
		msg.DisplayName = dn
	}
	msg.IsBroadcast = strings.Contains(tags["badges"], "broadcaster/")

	if msg.Username != "" && c.onMsg != nil {
		c.onMsg(msg)
	}
}

func parseTags(tagStr string) map[string]string {
	tags := make(map[string]string)
	for _, tag := range strings.Split(tagStr, ";") {
		parts := strings.SplitN(tag, "=", 2)
		if len(parts) == 2 {
			tags[parts[0]] = parts[1]
		}
	}
	return tags
}

func (c *IRCClient) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn != nil {
		_ = c.sendRaw("PART " + c.channel)
		conn.Close()
	}

	slog.Info("Left IRC chat", "channel", c.channel)
}

func (c *IRCClient) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}
