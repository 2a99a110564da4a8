package alerts

import (
	"strings"
	"testing"
)

type stubConfigSource struct {
	config map[string]any
}

func (s *stubConfigSource) GetWidgetConfig(widget string, defaults map[string]any) (map[string]any, error) {
	return s.config, nil
}

func newTestManager(config map[string]any) (*Manager, *stubBroadcaster) {
	out := &stubBroadcaster{active: true}
	queue := NewQueue(out)
	return NewManager(&stubConfigSource{config: config}, queue), out
}

func TestTriggerExpandsTemplate(t *testing.T) {
	m, out := newTestManager(nil)

	m.Trigger(Trigger{Type: "subgift", Username: "Gifter", Amount: 3})

	alert := out.lastAlert(t)
	if !strings.Contains(alert.Text, `<span class="alert-username">Gifter</span>`) {
		t.Errorf("username not wrapped: %q", alert.Text)
	}
	if !strings.Contains(alert.Text, `<span class="alert-amount">3</span>`) {
		t.Errorf("amount not wrapped: %q", alert.Text)
	}
	if !strings.Contains(alert.Text, "subs !") {
		t.Errorf("plural suffix missing: %q", alert.Text)
	}
}

func TestTriggerSingularGift(t *testing.T) {
	m, out := newTestManager(nil)

	m.Trigger(Trigger{Type: "subgift", Username: "Gifter", Amount: 1})

	alert := out.lastAlert(t)
	if strings.Contains(alert.Text, "subs") {
		t.Errorf("singular gift got plural suffix: %q", alert.Text)
	}
}

func TestTriggerCustomTemplate(t *testing.T) {
	m, out := newTestManager(map[string]any{
		"cheer": map[string]any{
			"textTemplate": "Merci {username} pour {amount} bits",
			"duration":     float64(8000),
		},
	})

	m.Trigger(Trigger{Type: "cheer", Username: "Viewer", Amount: 500})

	alert := out.lastAlert(t)
	if !strings.HasPrefix(alert.Text, "Merci ") {
		t.Errorf("custom template ignored: %q", alert.Text)
	}
	if alert.DurationMS != 8000 {
		t.Errorf("duration = %d, want 8000", alert.DurationMS)
	}
}

func TestTriggerDisabledTypeDropped(t *testing.T) {
	m, out := newTestManager(map[string]any{
		"follow": map[string]any{"enabled": false},
	})

	m.Trigger(Trigger{Type: "follow", Username: "Viewer"})

	if got := out.frameCount(); got != 0 {
		t.Fatalf("disabled alert type was broadcast (%d frames)", got)
	}
}

func TestTriggerClearsSubMessages(t *testing.T) {
	m, out := newTestManager(nil)

	m.Trigger(Trigger{Type: "resub", Username: "Viewer", Months: 6, Message: "salut tout le monde"})

	alert := out.lastAlert(t)
	if alert.Message != "" {
		t.Errorf("resub message not cleared: %q", alert.Message)
	}
	if !strings.Contains(alert.Text, `<span class="alert-months">6</span>`) {
		t.Errorf("months not expanded: %q", alert.Text)
	}
}

func TestTriggerDonationAmountText(t *testing.T) {
	m, out := newTestManager(nil)

	m.Trigger(Trigger{Type: "donation", Username: "Donor", AmountText: "5.00", Message: "gg"})

	alert := out.lastAlert(t)
	if !strings.Contains(alert.Text, `<span class="alert-amount">5.00</span>`) {
		t.Errorf("formatted amount not used: %q", alert.Text)
	}
	if alert.Message != "gg" {
		t.Errorf("donation message cleared: %q", alert.Message)
	}
}

func TestTriggerUnknownUsernameFallback(t *testing.T) {
	m, out := newTestManager(nil)

	m.Trigger(Trigger{Type: "follow"})

	if got := out.lastAlert(t).Username; got != "Inconnu" {
		t.Fatalf("username = %q, want Inconnu", got)
	}
}
