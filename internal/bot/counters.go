package bot

import (
	"log/slog"

	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/metrics"
)

const (
	defaultDailyGoal = 10
	goalStep         = 5
)

// fetchSubCount refreshes the running total from the API. Zero answers are
// ignored so a flaky call never blanks the widget.
func (b *Bot) fetchSubCount() error {
	count, err := b.api.SubscriberCount()
	if err != nil {
		return err
	}
	if count > 0 {
		b.mu.Lock()
		b.subCount = count
		b.mu.Unlock()
		b.publishSubCount(count)
	}
	return nil
}

func (b *Bot) incrementSubCount(amount int) {
	b.mu.Lock()
	b.subCount += amount
	count := b.subCount
	b.mu.Unlock()

	if _, err := b.store.SaveWidgetConfig("subgoals", map[string]any{"currentCount": count}); err != nil {
		slog.Error("Failed to persist sub count", "error", err)
	}
	b.publishSubCount(count)
}

func (b *Bot) publishSubCount(count int) {
	metrics.SubCount.Set(float64(count))
	b.bus.Publish(events.TopicSubGoal, map[string]any{
		"type":  "sub-update",
		"count": count,
	})
}

// incrementDailySubCount bumps the daily counter and escalates the daily
// goal: whenever the count reaches the goal, the goal moves up in steps of
// five until it is strictly ahead again.
func (b *Bot) incrementDailySubCount(amount int) {
	cfg, err := b.store.GetWidgetConfig("subgoals", nil)
	if err != nil {
		slog.Error("Failed to load subgoals config", "error", err)
		return
	}

	count := intValue(cfg, "dailyCurrentCount", 0) + amount
	goal := intValue(cfg, "dailyGoalCount", defaultDailyGoal)
	baseGoal := intValue(cfg, "baseDailyGoalCount", defaultDailyGoal)

	for count >= goal {
		goal += goalStep
	}

	_, err = b.store.SaveWidgetConfig("subgoals", map[string]any{
		"dailyCurrentCount":  count,
		"dailyGoalCount":     goal,
		"baseDailyGoalCount": baseGoal,
	})
	if err != nil {
		slog.Error("Failed to persist daily sub count", "error", err)
	}

	b.bus.Publish(events.TopicSubGoal, map[string]any{
		"type":  "daily-sub-update",
		"count": count,
		"goal":  goal,
	})
}

// resetDailySubCount zeroes the daily counter and restores the goal to its
// configured base, at the start of each stream.
func (b *Bot) resetDailySubCount() {
	cfg, err := b.store.GetWidgetConfig("subgoals", nil)
	if err != nil {
		slog.Error("Failed to load subgoals config", "error", err)
		return
	}
	baseGoal := intValue(cfg, "baseDailyGoalCount", defaultDailyGoal)

	_, err = b.store.SaveWidgetConfig("subgoals", map[string]any{
		"dailyCurrentCount": 0,
		"dailyGoalCount":    baseGoal,
	})
	if err != nil {
		slog.Error("Failed to persist daily sub reset", "error", err)
	}

	slog.Info("Daily sub counter reset", "goal", baseGoal)
	b.bus.Publish(events.TopicSubGoal, map[string]any{
		"type":  "daily-sub-update",
		"count": 0,
		"goal":  baseGoal,
	})
}

// checkStreamStatusAndResetDaily resets the daily counter on startup when
// the stream is live with a start time we have not seen yet. Without this a
// companion restart mid-stream would re-run the reset, and a crash before
// stream start would miss it.
func (b *Bot) checkStreamStatusAndResetDaily() {
	live, startedAt, err := b.api.StreamStartedAt()
	if err != nil {
		slog.Error("Failed to check stream status", "error", err)
		return
	}
	if !live {
		return
	}

	cfg, err := b.store.GetWidgetConfig("subgoals", nil)
	if err != nil {
		slog.Error("Failed to load subgoals config", "error", err)
		return
	}
	lastKnown, _ := cfg["lastStreamStart"].(string)

	if startedAt != lastKnown {
		slog.Info("New stream detected, resetting daily subs", "started_at", startedAt)
		b.resetDailySubCount()
		if _, err := b.store.SaveWidgetConfig("subgoals", map[string]any{"lastStreamStart": startedAt}); err != nil {
			slog.Error("Failed to persist stream start", "error", err)
		}
	}
}

func (b *Bot) SubCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subCount
}

func intValue(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
