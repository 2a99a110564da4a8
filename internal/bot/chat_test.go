package bot

import (
	"testing"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/chat"
	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/database"
	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/store"
)

type nullBroadcaster struct{}

func (nullBroadcaster) Broadcast(any)          {}
func (nullBroadcaster) HasActiveClients() bool { return false }

func newTestBot(t *testing.T) *Bot {
	t.Helper()

	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := store.New(db)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Channel = "testchannel"
	cfg.Username = "testbot"

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	queue := alerts.NewQueue(nullBroadcaster{})
	return New(&cfg, nil, st, bus, nil, queue)
}

func TestBannedWordBoundaries(t *testing.T) {
	b := newTestBot(t)
	if err := b.AddBannedWord("merde"); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		message string
		banned  bool
	}{
		{"merde", true},
		{"MERDE", true},
		{"oh merde alors", true},
		{"merdes", true},
		{"merdex", true},
		{"merde!", true},
		{"émerde", false},
		{"merdeux", false},
		{"3merde", false},
		{"rien à signaler", false},
	}

	for _, tc := range cases {
		if got := b.containsBannedWords(tc.message); got != tc.banned {
			t.Errorf("containsBannedWords(%q) = %v, want %v", tc.message, got, tc.banned)
		}
	}
}

func TestBannedWordCacheInvalidation(t *testing.T) {
	b := newTestBot(t)

	if b.containsBannedWords("propre") {
		t.Fatal("empty word list flagged a message")
	}

	if err := b.AddBannedWord("propre"); err != nil {
		t.Fatal(err)
	}
	if !b.containsBannedWords("propre") {
		t.Fatal("word added after first check not picked up")
	}

	if err := b.RemoveBannedWord("propre"); err != nil {
		t.Fatal(err)
	}
	if b.containsBannedWords("propre") {
		t.Fatal("removed word still flagged")
	}
}

func TestBannedWordEscapesMeta(t *testing.T) {
	b := newTestBot(t)
	if err := b.AddBannedWord("a.b"); err != nil {
		t.Fatal(err)
	}

	if b.containsBannedWords("acb") {
		t.Fatal("dot in banned word matched as wildcard")
	}
	if !b.containsBannedWords("a.b") {
		t.Fatal("literal banned word not matched")
	}
}

func TestAutoMessageRotation(t *testing.T) {
	b := newTestBot(t)
	b.cfg.AutoMessages = []config.AutoMessage{
		{Message: "premier", Interval: 3},
		{Message: "second", Interval: 2},
	}

	for i := 0; i < 2; i++ {
		b.advanceAutoMessages()
	}
	if b.messageCount != 2 || b.autoIndex != 0 {
		t.Fatalf("count=%d index=%d before first fire", b.messageCount, b.autoIndex)
	}

	b.advanceAutoMessages()
	if b.messageCount != 0 || b.autoIndex != 1 {
		t.Fatalf("count=%d index=%d after first fire, want 0/1", b.messageCount, b.autoIndex)
	}

	b.advanceAutoMessages()
	b.advanceAutoMessages()
	if b.messageCount != 0 || b.autoIndex != 0 {
		t.Fatalf("count=%d index=%d after second fire, want 0/0 (wrap)", b.messageCount, b.autoIndex)
	}
}

func TestAutoMessageIndexResetOnShrink(t *testing.T) {
	b := newTestBot(t)
	b.cfg.AutoMessages = []config.AutoMessage{
		{Message: "a", Interval: 1},
		{Message: "b", Interval: 1},
		{Message: "c", Interval: 1},
	}

	b.advanceAutoMessages()
	b.advanceAutoMessages()
	if b.autoIndex != 2 {
		t.Fatalf("index = %d, want 2", b.autoIndex)
	}

	b.cfg.AutoMessages = b.cfg.AutoMessages[:1]
	b.advanceAutoMessages()
	if b.autoIndex != 0 {
		t.Fatalf("index = %d after shrink, want wrap to 0", b.autoIndex)
	}
}

func TestIsAuthorized(t *testing.T) {
	cases := []struct {
		name string
		msg  chat.Message
		want bool
	}{
		{"owner with mod badge", chat.Message{Username: "zexaaaal", IsMod: true}, true},
		{"owner with broadcaster badge", chat.Message{Username: "Zexaaaal", IsBroadcast: true}, true},
		{"owner without badge", chat.Message{Username: "zexaaaal"}, false},
		{"mod who is not owner", chat.Message{Username: "someone", IsMod: true}, false},
		{"random viewer", chat.Message{Username: "someone"}, false},
	}

	for _, tc := range cases {
		if got := isAuthorized(tc.msg); got != tc.want {
			t.Errorf("%s: isAuthorized = %v, want %v", tc.name, got, tc.want)
		}
	}
}
