package eventsub

import (
	"encoding/json"
	"fmt"
)

// frame is the envelope of every EventSub WebSocket message.
type frame struct {
	Metadata struct {
		MessageID        string `json:"message_id"`
		MessageType      string `json:"message_type"`
		SubscriptionType string `json:"subscription_type"`
	} `json:"metadata"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	Session struct {
		ID                      string `json:"id"`
		Status                  string `json:"status"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
		ReconnectURL            string `json:"reconnect_url"`
	} `json:"session"`
}

type notificationPayload struct {
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
	Event json.RawMessage `json:"event"`
}

// EventType identifies a normalized feed event.
type EventType string

const (
	EventFollow       EventType = "follow"
	EventSub          EventType = "sub"
	EventResub        EventType = "resub"
	EventSubGift      EventType = "subgift"
	EventCheer        EventType = "cheer"
	EventRaid         EventType = "raid"
	EventRedemption   EventType = "redemption"
	EventStreamOnline EventType = "stream-online"
	EventStreamOff    EventType = "stream-offline"
	EventHypeBegin    EventType = "hype-train-begin"
	EventHypeProgress EventType = "hype-train-progress"
	EventHypeEnd      EventType = "hype-train-end"
)

// Event is a feed notification flattened to the fields the pipeline uses.
type Event struct {
	Type     EventType
	UserID   string
	Username string
	Message  string
	// Amount carries bits for cheers, viewers for raids and the gift count
	// for gift subs.
	Amount int
	Months int
	Tier   string
	// Reward fields are set for channel point redemptions only.
	RewardID    string
	RewardTitle string
	RewardInput string
	// Level is the hype train level for hype events.
	Level int
	// StartedAt is set for stream-online events.
	StartedAt string
}

type rawEvent struct {
	UserID               string `json:"user_id"`
	UserLogin            string `json:"user_login"`
	UserName             string `json:"user_name"`
	FromBroadcasterName  string `json:"from_broadcaster_user_name"`
	FromBroadcasterLogin string `json:"from_broadcaster_user_login"`
	FromBroadcasterID    string `json:"from_broadcaster_user_id"`
	Tier                 string `json:"tier"`
	IsGift               bool   `json:"is_gift"`
	Total                int    `json:"total"`
	Bits                 int    `json:"bits"`
	Viewers              int    `json:"viewers"`
	Level                int    `json:"level"`
	CumulativeMonths     int    `json:"cumulative_months"`
	Message              struct {
		Text string `json:"text"`
	} `json:"message"`
	Reward struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reward"`
	UserInput string `json:"user_input"`
	StartedAt string `json:"started_at"`
}

// parseEvent flattens one notification into an Event. Unknown subscription
// types return ok=false and are ignored upstream.
func parseEvent(subType string, data json.RawMessage) (Event, bool, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, false, fmt.Errorf("failed to parse %s event: %w", subType, err)
	}

	e := Event{
		UserID:   raw.UserID,
		Username: raw.UserName,
		Tier:     raw.Tier,
	}
	if e.Username == "" {
		e.Username = raw.UserLogin
	}

	switch subType {
	case "channel.follow":
		e.Type = EventFollow
	case "channel.subscribe":
		// Gift recipients arrive as channel.subscribe with is_gift set; the
		// gifter's own event carries the announcement, so these are dropped.
		if raw.IsGift {
			return Event{}, false, nil
		}
		e.Type = EventSub
	case "channel.subscription.message":
		e.Type = EventResub
		e.Months = raw.CumulativeMonths
		e.Message = raw.Message.Text
	case "channel.subscription.gift":
		e.Type = EventSubGift
		e.Amount = raw.Total
	case "channel.cheer":
		e.Type = EventCheer
		e.Amount = raw.Bits
		e.Message = raw.Message.Text
	case "channel.raid":
		e.Type = EventRaid
		e.Username = raw.FromBroadcasterName
		if e.Username == "" {
			e.Username = raw.FromBroadcasterLogin
		}
		e.UserID = raw.FromBroadcasterID
		e.Amount = raw.Viewers
	case "channel.channel_points_custom_reward_redemption.add":
		e.Type = EventRedemption
		e.RewardID = raw.Reward.ID
		e.RewardTitle = raw.Reward.Title
		e.RewardInput = raw.UserInput
	case "stream.online":
		e.Type = EventStreamOnline
		e.StartedAt = raw.StartedAt
	case "stream.offline":
		e.Type = EventStreamOff
	case "channel.hype_train.begin":
		e.Type = EventHypeBegin
		e.Level = raw.Level
	case "channel.hype_train.progress":
		e.Type = EventHypeProgress
		e.Level = raw.Level
	case "channel.hype_train.end":
		e.Type = EventHypeEnd
		e.Level = raw.Level
	default:
		return Event{}, false, nil
	}

	return e, true, nil
}
