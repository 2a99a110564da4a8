package eventsub

import (
	"encoding/json"
	"testing"
)

func TestParseEventResub(t *testing.T) {
	data := json.RawMessage(`{
		"user_id": "123",
		"user_name": "Viewer",
		"tier": "1000",
		"cumulative_months": 14,
		"message": {"text": "toujours là"}
	}`)

	e, ok, err := parseEvent("channel.subscription.message", data)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("resub event dropped")
	}
	if e.Type != EventResub {
		t.Errorf("type = %q, want %q", e.Type, EventResub)
	}
	if e.Months != 14 {
		t.Errorf("months = %d, want 14", e.Months)
	}
	if e.Message != "toujours là" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestParseEventGiftRecipientDropped(t *testing.T) {
	data := json.RawMessage(`{"user_id": "123", "user_name": "Recipient", "is_gift": true}`)

	_, ok, err := parseEvent("channel.subscribe", data)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("gift recipient sub was not dropped")
	}
}

func TestParseEventRaid(t *testing.T) {
	data := json.RawMessage(`{
		"from_broadcaster_user_id": "42",
		"from_broadcaster_user_name": "Raider",
		"viewers": 77
	}`)

	e, ok, err := parseEvent("channel.raid", data)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("raid event dropped")
	}
	if e.Username != "Raider" {
		t.Errorf("username = %q, want Raider", e.Username)
	}
	if e.Amount != 77 {
		t.Errorf("viewers = %d, want 77", e.Amount)
	}
	if e.UserID != "42" {
		t.Errorf("user id = %q, want 42", e.UserID)
	}
}

func TestParseEventRedemption(t *testing.T) {
	data := json.RawMessage(`{
		"user_id": "9",
		"user_name": "Viewer",
		"user_input": "hello",
		"reward": {"id": "r1", "title": "Pluie d'emotes"}
	}`)

	e, ok, err := parseEvent("channel.channel_points_custom_reward_redemption.add", data)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("redemption dropped")
	}
	if e.RewardID != "r1" || e.RewardTitle != "Pluie d'emotes" || e.RewardInput != "hello" {
		t.Errorf("reward fields = %q %q %q", e.RewardID, e.RewardTitle, e.RewardInput)
	}
}

func TestParseEventUnknownType(t *testing.T) {
	_, ok, err := parseEvent("channel.poll.begin", json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown subscription type was not dropped")
	}
}

func TestParseEventStreamOnline(t *testing.T) {
	data := json.RawMessage(`{"started_at": "2024-03-01T20:00:00Z"}`)

	e, ok, err := parseEvent("stream.online", data)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("stream online dropped")
	}
	if e.StartedAt != "2024-03-01T20:00:00Z" {
		t.Errorf("started_at = %q", e.StartedAt)
	}
}
