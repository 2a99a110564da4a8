package store

import (
	"testing"
	"time"

	"github.com/zexaal/stream-companion/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWidgetConfigMergeOnSave(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SaveWidgetConfig("subgoals", map[string]any{
		"dailyCurrentCount": 3,
		"countRegularSubs":  true,
	}); err != nil {
		t.Fatal(err)
	}

	// Partial update must not wipe unrelated keys.
	if _, err := s.SaveWidgetConfig("subgoals", map[string]any{"dailyCurrentCount": 4}); err != nil {
		t.Fatal(err)
	}

	cfg, err := s.GetWidgetConfig("subgoals", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := cfg["countRegularSubs"].(bool); !ok || !got {
		t.Errorf("countRegularSubs lost on partial save: %v", cfg["countRegularSubs"])
	}
	if got, ok := cfg["dailyCurrentCount"].(float64); !ok || got != 4 {
		t.Errorf("dailyCurrentCount = %v, want 4", cfg["dailyCurrentCount"])
	}
}

func TestWidgetConfigDefaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.GetWidgetConfig("alerts", map[string]any{"volume": 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg["volume"]; got != 0.8 {
		t.Errorf("default not applied: %v", got)
	}

	if _, err := s.SaveWidgetConfig("alerts", map[string]any{"volume": 0.3}); err != nil {
		t.Fatal(err)
	}
	cfg, err = s.GetWidgetConfig("alerts", map[string]any{"volume": 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg["volume"]; got != 0.3 {
		t.Errorf("stored value not preferred over default: %v", got)
	}
}

func TestBannedWordsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	for _, w := range []string{"mot1", "mot2", "mot1"} {
		if err := s.AddBannedWord(w); err != nil {
			t.Fatal(err)
		}
	}

	words, err := s.GetBannedWords()
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 {
		t.Fatalf("words = %v, want 2 distinct entries", words)
	}

	if err := s.RemoveBannedWord("mot1"); err != nil {
		t.Fatal(err)
	}
	words, _ = s.GetBannedWords()
	if len(words) != 1 || words[0] != "mot2" {
		t.Fatalf("after remove: %v", words)
	}

	if err := s.ClearBannedWords(); err != nil {
		t.Fatal(err)
	}
	words, _ = s.GetBannedWords()
	if len(words) != 0 {
		t.Fatalf("after clear: %v", words)
	}
}

func TestGiveawayParticipantDedupe(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddGiveawayParticipant("viewer1")
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("first entry not added")
	}

	added, err = s.AddGiveawayParticipant("viewer1")
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("duplicate entry reported as added")
	}

	participants, err := s.GiveawayParticipants()
	if err != nil {
		t.Fatal(err)
	}
	if len(participants) != 1 {
		t.Fatalf("participants = %v, want 1", participants)
	}
}

func TestGiveawayActiveFlag(t *testing.T) {
	s := newTestStore(t)

	active, err := s.GiveawayActive()
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Fatal("giveaway active before start")
	}

	if err := s.SetGiveawayActive(true); err != nil {
		t.Fatal(err)
	}
	active, _ = s.GiveawayActive()
	if !active {
		t.Fatal("giveaway not active after start")
	}

	if err := s.SetGiveawayActive(false); err != nil {
		t.Fatal(err)
	}
	active, _ = s.GiveawayActive()
	if active {
		t.Fatal("giveaway still active after stop")
	}
}

func TestStaticCommands(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetStaticCommand("!discord", "https://discord.gg/example"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStaticCommand("!discord", "https://discord.gg/updated"); err != nil {
		t.Fatal(err)
	}

	commands, err := s.StaticCommands()
	if err != nil {
		t.Fatal(err)
	}
	if got := commands["!discord"]; got != "https://discord.gg/updated" {
		t.Errorf("command response = %q", got)
	}

	if err := s.DeleteStaticCommand("!discord"); err != nil {
		t.Fatal(err)
	}
	commands, _ = s.StaticCommands()
	if len(commands) != 0 {
		t.Errorf("commands after delete: %v", commands)
	}
}

func TestOAuthTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)

	token, err := s.GetOAuthToken("spotify")
	if err != nil {
		t.Fatal(err)
	}
	if token != nil {
		t.Fatal("token present before save")
	}

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := s.SaveOAuthToken("spotify", OAuthToken{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
	}); err != nil {
		t.Fatal(err)
	}

	token, err = s.GetOAuthToken("spotify")
	if err != nil {
		t.Fatal(err)
	}
	if token == nil || token.AccessToken != "access" || token.RefreshToken != "refresh" {
		t.Fatalf("token = %+v", token)
	}
	if !token.ExpiresAt.Equal(expires) {
		t.Errorf("expires = %v, want %v", token.ExpiresAt, expires)
	}
}

func TestLastEvents(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetLastEvent("sub", "Viewer1", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLastEvent("sub", "Viewer2", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLastEvent("donation", "Donor", "5.00"); err != nil {
		t.Fatal(err)
	}

	events, err := s.GetLastEvents()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	for _, e := range events {
		if e.Event == "sub" && e.Username != "Viewer2" {
			t.Errorf("last sub = %q, want Viewer2", e.Username)
		}
	}
}
