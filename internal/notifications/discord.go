// Package notifications pushes channel milestones to Discord.
package notifications

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zexaal/stream-companion/internal/config"
)

const (
	colorOnline = 0x00FF00
	colorRaid   = 0x9146FF // Twitch purple
)

type DiscordNotifier struct {
	settings config.DiscordSettings

	mu      sync.RWMutex
	session *discordgo.Session
}

func NewDiscordNotifier(settings config.DiscordSettings) *DiscordNotifier {
	return &DiscordNotifier{settings: settings}
}

func (d *DiscordNotifier) IsConfigured() bool {
	return d.settings.Enabled && d.settings.BotToken != "" && d.settings.ChannelID != ""
}

func (d *DiscordNotifier) Connect() error {
	if !d.IsConfigured() {
		return fmt.Errorf("discord not configured: missing bot token or channel ID")
	}

	session, err := discordgo.New("Bot " + d.settings.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	slog.Info("Discord notifier connected", "channel", d.settings.ChannelID)
	return nil
}

func (d *DiscordNotifier) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Close(); err != nil {
			return err
		}
		d.session = nil
	}
	return nil
}

func (d *DiscordNotifier) NotifyStreamOnline(channel string) {
	d.send(&discordgo.MessageEmbed{
		Title:       "Stream en ligne !",
		Description: fmt.Sprintf("%s est en live : https://twitch.tv/%s", channel, channel),
		Color:       colorOnline,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

func (d *DiscordNotifier) NotifyRaid(username string, viewers int) {
	d.send(&discordgo.MessageEmbed{
		Title:       "Raid reçu !",
		Description: fmt.Sprintf("%s raid avec %d viewers", username, viewers),
		Color:       colorRaid,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

func (d *DiscordNotifier) send(embed *discordgo.MessageEmbed) {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return
	}

	if _, err := session.ChannelMessageSendEmbed(d.settings.ChannelID, embed); err != nil {
		slog.Error("Failed to send Discord notification", "error", err)
	}
}
