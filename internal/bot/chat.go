package bot

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zexaal/stream-companion/internal/chat"
	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/metrics"
)

func (b *Bot) handleChatMessage(msg chat.Message) {
	if strings.EqualFold(msg.Username, b.cfg.Username) {
		return
	}

	if b.containsBannedWords(msg.Text) {
		metrics.MessagesDeleted.Inc()
		if msg.ID != "" {
			if err := b.api.DeleteMessage(msg.ID); err != nil {
				slog.Error("Failed to delete message", "error", err)
			}
		}
		return
	}

	metrics.ChatMessages.Inc()

	isCommand := strings.HasPrefix(msg.Text, "!")
	isAutoMessage := false
	for _, am := range b.cfg.AutoMessages {
		if msg.Text == am.Message {
			isAutoMessage = true
			break
		}
	}

	if !isCommand && !isAutoMessage {
		b.bus.Publish(events.TopicChatMessage, b.chatPayload(msg))
	}

	b.advanceAutoMessages()

	if isCommand {
		b.handleCommand(msg)
	}
}

// chatPayload is the frame the chat widget renders. The app access token is
// included so the page can resolve badge images itself.
func (b *Bot) chatPayload(msg chat.Message) map[string]any {
	color := msg.Color
	if color == "" {
		color = "#FFFFFF"
	}

	payload := map[string]any{
		"type":           "chat",
		"username":       msg.Username,
		"displayName":    msg.DisplayName,
		"text":           msg.Text,
		"id":             msg.ID,
		"color":          color,
		"badgesRaw":      msg.Badges,
		"emotes":         msg.Emotes,
		"isWidgetHidden": msg.RewardID != "",
	}

	if b.cfg.TwitchClientID != "" && b.cfg.TwitchClientSecret != "" {
		if token, err := b.api.AppAccessToken(); err == nil {
			payload["apiAuth"] = map[string]string{
				"clientId": b.cfg.TwitchClientID,
				"token":    token,
			}
		} else {
			slog.Warn("Failed to get app access token for badges", "error", err)
		}
	}

	return payload
}

// advanceAutoMessages counts chat activity and posts the next rotating
// message once the current one's interval is reached. A config shrink that
// strands the index past the end wraps it back to the start.
func (b *Bot) advanceAutoMessages() {
	autoMessages := b.cfg.AutoMessages
	if len(autoMessages) == 0 {
		return
	}

	b.mu.Lock()
	b.messageCount++
	if b.autoIndex >= len(autoMessages) {
		b.autoIndex = 0
	}

	target := autoMessages[b.autoIndex]
	interval := target.Interval
	if interval <= 0 {
		interval = 40
	}

	fire := b.messageCount >= interval
	if fire {
		b.messageCount = 0
		b.autoIndex = (b.autoIndex + 1) % len(autoMessages)
	}
	b.mu.Unlock()

	if fire {
		b.Say(target.Message)
	}
}

// containsBannedWords matches each banned word at letter/digit boundaries,
// tolerating a trailing s or x so simple plurals don't slip through.
func (b *Bot) containsBannedWords(message string) bool {
	for _, re := range b.bannedWordRegexps() {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

func (b *Bot) bannedWordRegexps() []*regexp.Regexp {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bannedRegexps != nil {
		return b.bannedRegexps
	}

	words, err := b.store.GetBannedWords()
	if err != nil {
		slog.Error("Failed to load banned words", "error", err)
		return nil
	}

	regexps := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		pattern := fmt.Sprintf(`(?i)(^|[^\p{L}\p{Nd}])%s(?:s|x)?([^\p{L}\p{Nd}]|$)`, regexp.QuoteMeta(word))
		re, err := regexp.Compile(pattern)
		if err != nil {
			slog.Error("Failed to compile banned word", "word", word, "error", err)
			continue
		}
		regexps = append(regexps, re)
	}
	b.bannedRegexps = regexps
	return regexps
}

func (b *Bot) invalidateBannedWords() {
	b.mu.Lock()
	b.bannedRegexps = nil
	b.mu.Unlock()
}

func (b *Bot) AddBannedWord(word string) error {
	if err := b.store.AddBannedWord(word); err != nil {
		return err
	}
	b.invalidateBannedWords()
	return nil
}

func (b *Bot) RemoveBannedWord(word string) error {
	if err := b.store.RemoveBannedWord(word); err != nil {
		return err
	}
	b.invalidateBannedWords()
	return nil
}

func (b *Bot) ClearBannedWords() error {
	if err := b.store.ClearBannedWords(); err != nil {
		return err
	}
	b.invalidateBannedWords()
	return nil
}
