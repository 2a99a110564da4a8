package bot

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

func (b *Bot) StartGiveaway() error {
	if err := b.store.SetGiveawayActive(true); err != nil {
		return err
	}
	if err := b.store.ClearGiveaway(); err != nil {
		return err
	}
	if b.cfg.GiveawayStartMessage != "" {
		b.Say(b.cfg.GiveawayStartMessage)
	}
	slog.Info("Giveaway started", "command", b.cfg.GiveawayCommand)
	return nil
}

func (b *Bot) StopGiveaway() error {
	if err := b.store.SetGiveawayActive(false); err != nil {
		return err
	}
	if b.cfg.GiveawayStopMessage != "" {
		b.Say(b.cfg.GiveawayStopMessage)
	}
	slog.Info("Giveaway stopped")
	return nil
}

func (b *Bot) addGiveawayParticipant(username string) {
	added, err := b.store.AddGiveawayParticipant(username)
	if err != nil {
		slog.Error("Failed to add giveaway participant", "error", err)
		return
	}
	if added {
		slog.Info("Giveaway entry", "username", username)
	}
}

func (b *Bot) GiveawayParticipants() ([]string, error) {
	return b.store.GiveawayParticipants()
}

// DrawWinner picks a random participant and announces them after a short
// suspense delay. Returns empty when nobody entered.
func (b *Bot) DrawWinner() (string, error) {
	participants, err := b.store.GiveawayParticipants()
	if err != nil {
		return "", err
	}
	if len(participants) == 0 {
		return "", nil
	}

	winner := participants[rand.Intn(len(participants))]

	if b.cfg.GiveawayWinMessage != "" {
		message := strings.Replace(b.cfg.GiveawayWinMessage, "{winner}", winner, 1)
		time.AfterFunc(3*time.Second, func() {
			b.Say(message)
		})
	}

	return winner, nil
}

func (b *Bot) ClearGiveawayParticipants() error {
	return b.store.ClearGiveaway()
}
