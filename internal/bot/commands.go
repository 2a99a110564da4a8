package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zexaal/stream-companion/internal/chat"
)

// isAuthorized gates control commands to the owner account, and only when
// the message carries a moderator or broadcaster badge.
func isAuthorized(msg chat.Message) bool {
	isModerator := msg.IsMod || msg.IsBroadcast
	isOwner := strings.EqualFold(msg.Username, ownerUsername)
	return isOwner && isModerator
}

func (b *Bot) handleCommand(msg chat.Message) {
	command := strings.ToLower(strings.Fields(msg.Text)[0])

	switch command {
	case "!rfsh":
		if isAuthorized(msg) {
			b.deleteCommandMessage(msg)
			b.widgets.RefreshAll()
		}
		return

	case "!oon", "!ooff":
		if isAuthorized(msg) {
			b.deleteCommandMessage(msg)
			b.widgets.SetVisible(command == "!oon")
		}
		return

	case "!clip":
		b.handleClipCommand()
		return
	}

	if command == strings.ToLower(b.cfg.GiveawayCommand) {
		active, err := b.store.GiveawayActive()
		if err != nil {
			slog.Error("Failed to check giveaway state", "error", err)
			return
		}
		if active {
			b.addGiveawayParticipant(msg.Username)
			return
		}
	}

	commands, err := b.store.StaticCommands()
	if err != nil {
		slog.Error("Failed to load commands", "error", err)
		return
	}
	if response, ok := commands[command]; ok {
		b.Say(response)
	}
}

// deleteCommandMessage removes the triggering control command from chat so
// it never shows up on the overlay or in vods.
func (b *Bot) deleteCommandMessage(msg chat.Message) {
	if msg.ID == "" {
		return
	}
	if err := b.api.DeleteMessage(msg.ID); err != nil {
		slog.Error("Failed to delete command message", "error", err)
	}
}

// handleClipCommand creates a clip unless one was requested within the
// cooldown. The cooldown starts when the request is made, not when it
// succeeds, so a failing API cannot be hammered.
func (b *Bot) handleClipCommand() {
	b.mu.Lock()
	if b.onClipCD {
		b.mu.Unlock()
		return
	}
	b.onClipCD = true
	b.mu.Unlock()

	time.AfterFunc(time.Duration(b.cfg.ClipCooldownSeconds)*time.Second, func() {
		b.mu.Lock()
		b.onClipCD = false
		b.mu.Unlock()
	})

	go func() {
		clipID, err := b.api.CreateClip()
		if err != nil {
			slog.Error("Failed to create clip", "error", err)
			b.Say(fmt.Sprintf("Erreur lors de la création du clip: %v", err))
			return
		}
		b.Say(fmt.Sprintf("🎬 Clip créé ! https://clips.twitch.tv/%s", clipID))
	}()
}

func (b *Bot) AddCommand(command, response string) error {
	return b.store.SetStaticCommand(strings.ToLower(command), response)
}

func (b *Bot) RemoveCommand(command string) error {
	return b.store.DeleteStaticCommand(strings.ToLower(command))
}
