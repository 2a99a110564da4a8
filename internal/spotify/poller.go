// Package spotify polls the playback API and feeds the now-playing widget.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/store"
)

const (
	tokenURL      = "https://accounts.spotify.com/api/token"
	nowPlayingURL = "https://api.spotify.com/v1/me/player/currently-playing"
)

type Poller struct {
	cfg    config.SpotifySettings
	store  *store.Store
	bus    *events.Bus
	client *http.Client
	cancel context.CancelFunc
}

func NewPoller(cfg config.SpotifySettings, st *store.Store, bus *events.Bus) *Poller {
	return &Poller{
		cfg:    cfg,
		store:  st,
		bus:    bus,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Poller) Start() {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		slog.Info("Spotify credentials not configured, now-playing disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(p.cfg.PollSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				slog.Debug("Spotify poll failed", "error", err)
			}
		}
	}
}

type playbackResponse struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMS int  `json:"progress_ms"`
	Item       struct {
		Name       string `json:"name"`
		DurationMS int    `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

func (p *Poller) poll(ctx context.Context) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nowPlayingURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 204 means nothing is playing.
	if resp.StatusCode == http.StatusNoContent {
		p.bus.Publish(events.TopicSpotifyTrack, map[string]any{
			"type":      "track-update",
			"isPlaying": false,
		})
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("now-playing returned %d", resp.StatusCode)
	}

	var playback playbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&playback); err != nil {
		return err
	}

	artists := make([]string, 0, len(playback.Item.Artists))
	for _, a := range playback.Item.Artists {
		artists = append(artists, a.Name)
	}
	albumArt := ""
	if len(playback.Item.Album.Images) > 0 {
		albumArt = playback.Item.Album.Images[0].URL
	}

	p.bus.Publish(events.TopicSpotifyTrack, map[string]any{
		"type":       "track-update",
		"isPlaying":  playback.IsPlaying,
		"title":      playback.Item.Name,
		"artists":    strings.Join(artists, ", "),
		"albumArt":   albumArt,
		"progressMs": playback.ProgressMS,
		"durationMs": playback.Item.DurationMS,
	})
	return nil
}

// accessToken returns a valid token from the store, refreshing through the
// OAuth refresh grant when expired.
func (p *Poller) accessToken(ctx context.Context) (string, error) {
	token, err := p.store.GetOAuthToken("spotify")
	if err != nil {
		return "", err
	}
	if token == nil || token.RefreshToken == "" {
		return "", fmt.Errorf("spotify account not linked")
	}

	if token.AccessToken != "" && time.Until(token.ExpiresAt) > time.Minute {
		return token.AccessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {token.RefreshToken},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh returned %d", resp.StatusCode)
	}

	var refreshed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return "", err
	}

	token.AccessToken = refreshed.AccessToken
	token.ExpiresAt = time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	if err := p.store.SaveOAuthToken("spotify", *token); err != nil {
		slog.Warn("Failed to persist refreshed spotify token", "error", err)
	}

	return token.AccessToken, nil
}
