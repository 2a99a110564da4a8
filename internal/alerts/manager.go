// Package alerts turns feed events into overlay alert payloads and plays
// them one at a time through the alerts widget.
package alerts

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Alert is the payload broadcast to the alerts overlay.
type Alert struct {
	Type     string  `json:"type"`
	Username string  `json:"username"`
	Amount   int     `json:"amount,omitempty"`
	Message  string  `json:"message"`
	Text     string  `json:"text"`
	Image    string  `json:"image,omitempty"`
	Audio    string  `json:"audio,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	// DurationMS is how long the overlay displays the alert.
	DurationMS int    `json:"duration,omitempty"`
	Layout     string `json:"layout,omitempty"`
}

// Trigger describes one event for the template pipeline. Months is carried
// separately so the template can expand it; it is not part of the broadcast
// payload.
type Trigger struct {
	Type     string
	Username string
	Amount   int
	// AmountText overrides the rendering of {amount}, for pre-formatted
	// values like donation amounts with currency decimals.
	AmountText string
	Months     int
	Message    string
	// Audio and Volume carry a reward redemption's configured sound. The
	// widget config's values win when present.
	Audio  string
	Volume float64
}

// ConfigSource provides the alerts widget config, keyed by alert type.
type ConfigSource interface {
	GetWidgetConfig(widget string, defaults map[string]any) (map[string]any, error)
}

type Manager struct {
	configs ConfigSource
	queue   *Queue
}

func NewManager(configs ConfigSource, queue *Queue) *Manager {
	return &Manager{configs: configs, queue: queue}
}

func defaultText(alertType string) string {
	switch alertType {
	case "follow":
		return "{username} suit la chaîne !"
	case "sub":
		return "{username} s'est abonné !"
	case "resub":
		return "{username} s'est réabonné pour {months} mois !"
	case "subgift":
		return "{username} a offert {amount} sub{s} !"
	case "raid":
		return "Raid de {username} !"
	case "donation":
		return "{username} a donné {amount}€"
	case "cheer":
		return "{username} a envoyé {amount} bits !"
	case "hypetrain":
		return "Hype Train Niveau {amount} !"
	case "reward-redemption":
		// Sound-only alert, nothing to display.
		return ""
	default:
		return "Nouvelle alerte"
	}
}

// Trigger builds the alert payload for an event and enqueues it. Alert types
// disabled in the widget config are dropped silently.
func (m *Manager) Trigger(t Trigger) {
	slog.Info("Triggering alert", "type", t.Type, "username", t.Username)

	allConfig, err := m.configs.GetWidgetConfig("alerts", nil)
	if err != nil {
		slog.Error("Failed to load alerts config", "error", err)
		allConfig = nil
	}

	typeConfig, _ := allConfig[t.Type].(map[string]any)
	if enabled, ok := typeConfig["enabled"].(bool); ok && !enabled {
		return
	}

	alert := Alert{
		Type:       t.Type,
		Username:   t.Username,
		Amount:     t.Amount,
		Message:    t.Message,
		Text:       stringField(typeConfig, "textTemplate", defaultText(t.Type)),
		Image:      stringField(typeConfig, "image", ""),
		Audio:      stringField(typeConfig, "audio", t.Audio),
		Volume:     floatField(typeConfig, "volume"),
		DurationMS: intField(typeConfig, "duration"),
		Layout:     stringField(typeConfig, "layout", ""),
	}
	if alert.Volume == 0 {
		alert.Volume = t.Volume
	}
	if alert.Username == "" {
		alert.Username = "Inconnu"
	}

	// Sub messages are shown by the resub template itself, never as a
	// free-text line under the alert.
	switch t.Type {
	case "sub", "resub", "subgift":
		alert.Message = ""
	}

	displayAmount := t.AmountText
	if displayAmount == "" && t.Amount != 0 {
		displayAmount = strconv.Itoa(t.Amount)
	}
	alert.Text = expandTemplate(alert.Text, alert.Username, displayAmount, t.Amount > 1, t.Months)

	m.queue.Add(alert)
}

// expandTemplate substitutes the first occurrence of each placeholder,
// wrapping the values in spans the overlay styles.
func expandTemplate(text, username, displayAmount string, plural bool, months int) string {
	displayMonths := ""
	if months != 0 {
		displayMonths = strconv.Itoa(months)
	}
	pluralSuffix := ""
	if plural {
		pluralSuffix = "s"
	}

	text = strings.Replace(text, "{username}",
		fmt.Sprintf(`<span class="alert-username">%s</span>`, username), 1)
	text = strings.Replace(text, "{amount}",
		fmt.Sprintf(`<span class="alert-amount">%s</span>`, displayAmount), 1)
	text = strings.Replace(text, "{months}",
		fmt.Sprintf(`<span class="alert-months">%s</span>`, displayMonths), 1)
	text = strings.Replace(text, "{s}", pluralSuffix, 1)
	return text
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func floatField(m map[string]any, key string) float64 {
	if f, ok := m[key].(float64); ok {
		return f
	}
	return 0
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
