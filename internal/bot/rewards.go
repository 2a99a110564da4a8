package bot

import (
	"log/slog"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/events"
)

// rewardTable maps channel point reward IDs to their configured behaviors:
// a sound to play through the alerts overlay, a built-in function, or both.
type rewardTable struct {
	bot *Bot
}

func newRewardTable(b *Bot) *rewardTable {
	return &rewardTable{bot: b}
}

func (r *rewardTable) handleRedemption(rewardID, username, input string) {
	slog.Info("Reward redeemed", "reward_id", rewardID, "username", username)

	boundFunction := r.bot.cfg.RewardFunctions[rewardID]
	if boundFunction == "" {
		return
	}

	// Sounds play through the alert queue like any other alert, so they
	// never overlap a running alert and survive until an overlay connects.
	if sound := r.bot.cfg.RewardSounds[rewardID]; sound != "" {
		r.bot.alerts.Trigger(alerts.Trigger{
			Type:     "reward-redemption",
			Username: username,
			Audio:    sound,
			Volume:   r.bot.cfg.PointsGlobalVolume,
		})
	}

	switch boundFunction {
	case "emote_rain":
		r.triggerEmoteRain()
	case "roulette":
		r.bot.bus.Publish(events.TopicRouletteSpin, map[string]any{
			"type":     "spin",
			"username": username,
			"input":    input,
		})
	}
}

// triggerEmoteRain fetches the channel's emote images and showers them over
// the chat overlay.
func (r *rewardTable) triggerEmoteRain() {
	go func() {
		emotes, err := r.bot.api.ChannelEmoteURLs()
		if err != nil {
			slog.Error("Failed to fetch emotes for rain", "error", err)
			return
		}
		slog.Info("Emote rain", "count", len(emotes))
		r.bot.bus.Publish(events.TopicEmoteRain, map[string]any{
			"type":   "emote-rain",
			"emotes": emotes,
		})
	}()
}
