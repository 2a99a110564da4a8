// Package twitch wraps the Helix API calls the companion needs.
package twitch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nicklaw5/helix/v2"
)

type API struct {
	client *helix.Client

	channel   string
	channelID string
	botID     string

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
}

// NewAPI validates the user token and resolves the broadcaster and bot IDs.
// The token is the bot account's user access token; channel is the
// broadcaster login the companion runs against. clientSecret is optional and
// only needed for app access tokens.
func NewAPI(token, channel, clientSecret string) (*API, error) {
	token = strings.TrimPrefix(token, "oauth:")

	probe, err := helix.NewClient(&helix.Options{
		UserAccessToken: token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	ok, resp, err := probe.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("twitch token is invalid or expired")
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        resp.Data.ClientID,
		ClientSecret:    clientSecret,
		UserAccessToken: token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	api := &API{
		client: client,
		botID:  resp.Data.UserID,
	}

	users, err := client.GetUsers(&helix.UsersParams{Logins: []string{channel}})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel %s: %w", channel, err)
	}
	if users.ErrorMessage != "" {
		return nil, fmt.Errorf("failed to resolve channel %s: %s", channel, users.ErrorMessage)
	}
	if len(users.Data.Users) == 0 {
		return nil, fmt.Errorf("channel %s not found", channel)
	}

	api.channel = channel
	api.channelID = users.Data.Users[0].ID

	slog.Debug("Twitch API ready", "channel", channel, "channel_id", api.channelID, "bot_id", api.botID)
	return api, nil
}

func (a *API) ChannelID() string { return a.channelID }
func (a *API) BotID() string     { return a.botID }

// SubscribeEventSub registers one EventSub subscription on a WebSocket
// session. Condition keys vary by event type, so the caller supplies them.
func (a *API) SubscribeEventSub(sessionID, eventType, version string, condition helix.EventSubCondition) error {
	resp, err := a.client.CreateEventSubSubscription(&helix.EventSubSubscription{
		Type:      eventType,
		Version:   version,
		Condition: condition,
		Transport: helix.EventSubTransport{
			Method:    "websocket",
			SessionID: sessionID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}
	if resp.ErrorMessage != "" {
		return fmt.Errorf("failed to subscribe to %s: %s", eventType, resp.ErrorMessage)
	}
	return nil
}

func (a *API) DeleteMessage(messageID string) error {
	resp, err := a.client.DeleteChatMessage(&helix.DeleteChatMessageParams{
		BroadcasterID: a.channelID,
		ModeratorID:   a.botID,
		MessageID:     messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if resp.ErrorMessage != "" {
		return fmt.Errorf("failed to delete message: %s", resp.ErrorMessage)
	}
	return nil
}

func (a *API) TimeoutUser(userID string, duration int, reason string) error {
	resp, err := a.client.BanUser(&helix.BanUserParams{
		BroadcasterID: a.channelID,
		ModeratorId:   a.botID,
		Body: helix.BanUserRequestBody{
			UserId:   userID,
			Duration: duration,
			Reason:   reason,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to timeout user: %w", err)
	}
	if resp.ErrorMessage != "" {
		return fmt.Errorf("failed to timeout user: %s", resp.ErrorMessage)
	}
	return nil
}

// CreateClip starts a clip of the live broadcast and returns the clip ID.
func (a *API) CreateClip() (string, error) {
	resp, err := a.client.CreateClip(&helix.CreateClipParams{
		BroadcasterID: a.channelID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create clip: %w", err)
	}
	if resp.ErrorMessage != "" {
		return "", fmt.Errorf("failed to create clip: %s", resp.ErrorMessage)
	}
	if len(resp.Data.ClipEditURLs) == 0 {
		return "", fmt.Errorf("clip creation returned no clip")
	}
	return resp.Data.ClipEditURLs[0].ID, nil
}

// StreamStartedAt reports whether the channel is live and, if so, the
// stream's start timestamp in RFC 3339.
func (a *API) StreamStartedAt() (bool, string, error) {
	resp, err := a.client.GetStreams(&helix.StreamsParams{
		UserIDs: []string{a.channelID},
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to get stream status: %w", err)
	}
	if resp.ErrorMessage != "" {
		return false, "", fmt.Errorf("failed to get stream status: %s", resp.ErrorMessage)
	}
	if len(resp.Data.Streams) == 0 {
		return false, "", nil
	}
	return true, resp.Data.Streams[0].StartedAt.Format(time.RFC3339), nil
}

// SubscriberCount returns the channel's current subscription total as
// reported by Helix (includes multi-month, excludes nothing).
func (a *API) SubscriberCount() (int, error) {
	resp, err := a.client.GetSubscriptions(&helix.SubscriptionsParams{
		BroadcasterID: a.channelID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	if resp.ErrorMessage != "" {
		return 0, fmt.Errorf("failed to get subscriptions: %s", resp.ErrorMessage)
	}
	return resp.Data.Total, nil
}

// ChannelEmoteURLs returns CDN image URLs for the channel's emotes plus the
// global set, used by the emote-rain reward.
func (a *API) ChannelEmoteURLs() ([]string, error) {
	var urls []string

	channelResp, err := a.client.GetChannelEmotes(&helix.GetChannelEmotesParams{
		BroadcasterID: a.channelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get channel emotes: %w", err)
	}
	if channelResp.ErrorMessage != "" {
		return nil, fmt.Errorf("failed to get channel emotes: %s", channelResp.ErrorMessage)
	}
	for _, e := range channelResp.Data.Emotes {
		urls = append(urls, emoteURL(e.ID))
	}

	globalResp, err := a.client.GetGlobalEmotes()
	if err != nil {
		return nil, fmt.Errorf("failed to get global emotes: %w", err)
	}
	if globalResp.ErrorMessage != "" {
		return nil, fmt.Errorf("failed to get global emotes: %s", globalResp.ErrorMessage)
	}
	for _, e := range globalResp.Data.Emotes {
		urls = append(urls, emoteURL(e.ID))
	}

	return urls, nil
}

func emoteURL(id string) string {
	return fmt.Sprintf("https://static-cdn.jtvnw.net/emoticons/v2/%s/default/dark/2.0", id)
}

// AppAccessToken returns a cached app access token, refreshing it when it
// is within a minute of expiry. Requires ClientSecret to have been set.
func (a *API) AppAccessToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.appToken != "" && time.Until(a.appTokenExp) > time.Minute {
		return a.appToken, nil
	}

	resp, err := a.client.RequestAppAccessToken([]string{})
	if err != nil {
		return "", fmt.Errorf("failed to request app access token: %w", err)
	}
	if resp.ErrorMessage != "" {
		return "", fmt.Errorf("failed to request app access token: %s", resp.ErrorMessage)
	}

	a.appToken = resp.Data.AccessToken
	a.appTokenExp = time.Now().Add(time.Duration(resp.Data.ExpiresIn) * time.Second)
	return a.appToken, nil
}
