package bot

import (
	"log/slog"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/eventsub"
)

// handleFeedEvent applies the counting and alert rules to one normalized
// feed event.
//
// New subs are held back for a grace window before alerting: when the
// subscriber shares a message, Twitch sends a second, richer resub event a
// moment later, and only that one should fire. Cancelling the pending sub on
// arrival of the resub keeps it to a single alert either way.
func (b *Bot) handleFeedEvent(e eventsub.Event) {
	switch e.Type {
	case eventsub.EventFollow:
		b.updateLastEvent("follow", e.Username, "")
		b.alerts.Trigger(alerts.Trigger{Type: "follow", Username: e.Username})

	case eventsub.EventSub:
		event := e
		b.coalescer.Schedule(event.UserID, func() {
			b.updateLastEvent("sub", event.Username, "")
			b.incrementSubCount(1)
			if b.countRegularSubs() {
				b.incrementDailySubCount(1)
			}
			b.alerts.Trigger(alerts.Trigger{Type: "sub", Username: event.Username})
		})

	case eventsub.EventResub:
		b.coalescer.Cancel(e.UserID)
		b.incrementSubCount(1)
		if b.countRegularSubs() {
			b.incrementDailySubCount(1)
		}
		b.updateLastEvent("sub", e.Username, "")
		b.alerts.Trigger(alerts.Trigger{
			Type:     "resub",
			Username: e.Username,
			Months:   e.Months,
			Message:  e.Message,
		})

	case eventsub.EventSubGift:
		count := e.Amount
		if count == 0 {
			count = 1
		}
		b.incrementSubCount(count)
		if b.countSubGifts() {
			b.incrementDailySubCount(count)
		}
		b.alerts.Trigger(alerts.Trigger{
			Type:     "subgift",
			Username: e.Username,
			Amount:   count,
		})

	case eventsub.EventCheer:
		b.alerts.Trigger(alerts.Trigger{
			Type:     "cheer",
			Username: e.Username,
			Amount:   e.Amount,
		})

	case eventsub.EventRaid:
		b.alerts.Trigger(alerts.Trigger{
			Type:     "raid",
			Username: e.Username,
			Amount:   e.Amount,
		})
		if b.notifier != nil {
			b.notifier.NotifyRaid(e.Username, e.Amount)
		}

	case eventsub.EventRedemption:
		b.rewards.handleRedemption(e.RewardID, e.Username, e.RewardInput)

	case eventsub.EventHypeBegin:
		level := e.Level
		if level == 0 {
			level = 1
		}
		b.mu.Lock()
		b.hypeLevel = level
		b.mu.Unlock()
		b.alerts.Trigger(alerts.Trigger{
			Type:     "hypetrain",
			Username: "Twitch",
			Amount:   level,
		})

	case eventsub.EventHypeProgress:
		// The level only ratchets up within one train; progress events for
		// an already-reached level are noise.
		b.mu.Lock()
		if e.Level > b.hypeLevel {
			b.hypeLevel = e.Level
		}
		b.mu.Unlock()

	case eventsub.EventHypeEnd:
		b.mu.Lock()
		b.hypeLevel = 0
		b.mu.Unlock()

	case eventsub.EventStreamOnline:
		b.resetDailySubCount()
		if e.StartedAt != "" {
			if _, err := b.store.SaveWidgetConfig("subgoals", map[string]any{"lastStreamStart": e.StartedAt}); err != nil {
				slog.Error("Failed to persist stream start", "error", err)
			}
		}
		if b.notifier != nil {
			b.notifier.NotifyStreamOnline(b.cfg.Channel)
		}

	case eventsub.EventStreamOff:
		slog.Info("Stream went offline")
	}
}

func (b *Bot) countRegularSubs() bool {
	cfg, err := b.store.GetWidgetConfig("subgoals", nil)
	if err != nil {
		return true
	}
	if v, ok := cfg["countRegularSubs"].(bool); ok {
		return v
	}
	return true
}

func (b *Bot) countSubGifts() bool {
	cfg, err := b.store.GetWidgetConfig("subgoals", nil)
	if err != nil {
		return false
	}
	if v, ok := cfg["countSubGifts"].(bool); ok {
		return v
	}
	return false
}

func (b *Bot) updateLastEvent(event, username, detail string) {
	if err := b.store.SetLastEvent(event, username, detail); err != nil {
		slog.Error("Failed to persist last event", "event", event, "error", err)
	}
}

// HandleDonation is called by the donations feed. amount is pre-formatted
// by the provider (decimals, no currency sign).
func (b *Bot) HandleDonation(username, amount, message string) {
	b.updateLastEvent("donation", username, amount)
	b.alerts.Trigger(alerts.Trigger{
		Type:       "donation",
		Username:   username,
		AmountText: amount,
		Message:    message,
	})
}
