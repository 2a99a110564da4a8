// Package bot is the companion's core: it ingests chat and feed events,
// applies moderation and counting rules, and drives alerts and widgets.
package bot

import (
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/chat"
	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/eventsub"
	"github.com/zexaal/stream-companion/internal/store"
)

// ownerUsername is the only account allowed to run control commands, and
// only while carrying a moderator or broadcaster badge.
const ownerUsername = "zexaaaal"

// WidgetControl is what the bot needs from the widget layer for the chat
// control commands.
type WidgetControl interface {
	RefreshAll()
	SetVisible(visible bool)
}

// Notifier receives channel milestones for out-of-band delivery.
type Notifier interface {
	NotifyStreamOnline(channel string)
	NotifyRaid(username string, viewers int)
}

// API is the Helix surface the bot depends on.
type API interface {
	eventsub.API
	DeleteMessage(messageID string) error
	TimeoutUser(userID string, duration int, reason string) error
	CreateClip() (string, error)
	StreamStartedAt() (bool, string, error)
	SubscriberCount() (int, error)
	ChannelEmoteURLs() ([]string, error)
	AppAccessToken() (string, error)
}

type Bot struct {
	cfg     *config.Config
	api     API
	store   *store.Store
	bus     *events.Bus
	alerts  *alerts.Manager
	widgets WidgetControl

	irc       *chat.IRCClient
	feed      *eventsub.Client
	coalescer *eventsub.Coalescer
	notifier  Notifier

	mu            sync.Mutex
	subCount      int
	messageCount  int
	autoIndex     int
	onClipCD      bool
	hypeLevel     int
	bannedRegexps []*regexp.Regexp
	rewards       *rewardTable
}

func New(cfg *config.Config, api API, st *store.Store, bus *events.Bus, widgets WidgetControl, queue *alerts.Queue) *Bot {
	b := &Bot{
		cfg:       cfg,
		api:       api,
		store:     st,
		bus:       bus,
		widgets:   widgets,
		alerts:    alerts.NewManager(st, queue),
		coalescer: eventsub.NewCoalescer(eventsub.DefaultGraceWindow),
	}
	b.rewards = newRewardTable(b)
	return b
}

func (b *Bot) SetNotifier(n Notifier) {
	b.notifier = n
}

func (b *Bot) Start() error {
	b.irc = chat.NewIRCClient(b.cfg.Username, b.cfg.Token, b.cfg.Channel, b.handleChatMessage)
	b.irc.OnClearChat = func() {
		slog.Info("Chat cleared")
		b.bus.Publish(events.TopicChatClear, map[string]string{"type": "clear-chat"})
	}
	b.irc.OnMessageDeleted = func(messageID string) {
		slog.Info("Chat message deleted", "id", messageID)
		b.bus.Publish(events.TopicChatClear, map[string]string{
			"type": "message-deleted",
			"id":   messageID,
		})
	}
	if err := b.irc.Connect(); err != nil {
		return err
	}

	delay := time.Duration(b.cfg.ReconnectDelaySeconds) * time.Second
	b.feed = eventsub.NewClient(b.api, delay, b.handleFeedEvent)
	if err := b.feed.Connect(); err != nil {
		// The feed reconnects on its own once up, but the first dial
		// failing means we never started a read loop.
		slog.Error("Initial EventSub connect failed, retrying in background", "error", err)
		go b.retryFeedConnect(delay)
	}

	if err := b.fetchSubCount(); err != nil {
		slog.Warn("Failed to fetch initial sub count", "error", err)
	}
	b.checkStreamStatusAndResetDaily()

	return nil
}

func (b *Bot) retryFeedConnect(delay time.Duration) {
	for {
		time.Sleep(delay)
		if err := b.feed.Connect(); err != nil {
			slog.Error("EventSub connect failed", "error", err)
			continue
		}
		return
	}
}

func (b *Bot) Stop() {
	if b.feed != nil {
		b.feed.Close()
	}
	b.coalescer.Stop()
	if b.irc != nil {
		b.irc.Stop()
	}
}

// Say sends a message to the channel as the bot account.
func (b *Bot) Say(message string) {
	if b.irc == nil || !b.irc.IsRunning() {
		return
	}
	if err := b.irc.Say(message); err != nil {
		slog.Error("Failed to send chat message", "error", err)
	}
}

// TriggerAlert lets other components (donations, dashboard test buttons)
// enqueue alerts through the same template pipeline as feed events.
func (b *Bot) TriggerAlert(t alerts.Trigger) {
	b.alerts.Trigger(t)
}

// TimeoutUser times a viewer out through the bot's moderator credentials.
func (b *Bot) TimeoutUser(userID string, duration int, reason string) error {
	return b.api.TimeoutUser(userID, duration, reason)
}
