package bot

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/zexaal/stream-companion/internal/chat"
)

type stubAPI struct {
	clipCalls atomic.Int32
}

func (s *stubAPI) ChannelID() string { return "100" }
func (s *stubAPI) BotID() string     { return "200" }

func (s *stubAPI) SubscribeEventSub(sessionID, eventType, version string, condition helix.EventSubCondition) error {
	return nil
}

func (s *stubAPI) DeleteMessage(messageID string) error { return nil }

func (s *stubAPI) TimeoutUser(userID string, duration int, reason string) error { return nil }

func (s *stubAPI) CreateClip() (string, error) {
	s.clipCalls.Add(1)
	return "clip123", nil
}

func (s *stubAPI) StreamStartedAt() (bool, string, error) { return false, "", nil }
func (s *stubAPI) SubscriberCount() (int, error)          { return 0, nil }
func (s *stubAPI) ChannelEmoteURLs() ([]string, error)    { return nil, nil }
func (s *stubAPI) AppAccessToken() (string, error)        { return "", nil }

func TestClipCommandCooldown(t *testing.T) {
	b, _ := newFeedTestBot(t)
	api := &stubAPI{}
	b.api = api

	b.handleClipCommand()
	b.handleClipCommand()

	deadline := time.Now().Add(time.Second)
	for api.clipCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give a second clip request time to land if the cooldown were broken.
	time.Sleep(50 * time.Millisecond)

	if got := api.clipCalls.Load(); got != 1 {
		t.Fatalf("clips created = %d inside the cooldown, want 1", got)
	}
}

func TestGiveawayJoinRequiresActive(t *testing.T) {
	b, _ := newFeedTestBot(t)

	msg := chat.Message{Username: "Viewer", Text: b.cfg.GiveawayCommand}
	b.handleCommand(msg)

	participants, err := b.GiveawayParticipants()
	if err != nil {
		t.Fatal(err)
	}
	if len(participants) != 0 {
		t.Fatalf("participants = %v before the giveaway started, want none", participants)
	}

	if err := b.store.SetGiveawayActive(true); err != nil {
		t.Fatal(err)
	}
	b.handleCommand(msg)

	participants, err = b.GiveawayParticipants()
	if err != nil {
		t.Fatal(err)
	}
	if len(participants) != 1 || participants[0] != "Viewer" {
		t.Fatalf("participants = %v, want [Viewer]", participants)
	}
}
