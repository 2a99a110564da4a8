package widgets

import (
	"encoding/json"
	"log/slog"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/events"
)

// Router owns the widget servers and fans bus traffic out to them. Each
// widget family has its own port so OBS browser sources stay independent.
type Router struct {
	Chat     *Server
	Alerts   *Server
	Subgoals *Server
	Roulette *Server
	Spotify  *Server

	Queue *alerts.Queue

	bus   *events.Bus
	stops []func()
}

func NewRouter(ports config.WidgetPorts, configs ConfigSource, bus *events.Bus) *Router {
	r := &Router{
		Chat:     NewServer("chat", ports.Chat, configs),
		Alerts:   NewServer("alerts", ports.Alerts, configs),
		Subgoals: NewServer("subgoals", ports.Subgoals, configs),
		Roulette: NewServer("roulette", ports.Roulette, configs),
		Spotify:  NewServer("spotify", ports.Spotify, configs),
		bus:      bus,
	}

	r.Queue = alerts.NewQueue(r.Alerts)
	r.Alerts.OnConnect = r.Queue.ClientConnected
	r.Alerts.OnMessage = r.handleAlertsMessage

	return r
}

func (r *Router) servers() []*Server {
	return []*Server{r.Chat, r.Alerts, r.Subgoals, r.Roulette, r.Spotify}
}

type binding struct {
	topic  string
	target *Server
}

// bindings maps bus topics to their widget server. The alerts server is
// absent on purpose: alert frames only reach it through the queue.
func (r *Router) bindings() []binding {
	return []binding{
		{events.TopicChatMessage, r.Chat},
		{events.TopicChatClear, r.Chat},
		{events.TopicEmoteRain, r.Chat},
		{events.TopicSubGoal, r.Subgoals},
		{events.TopicSpotifyTrack, r.Spotify},
		{events.TopicRouletteSpin, r.Roulette},
	}
}

func (r *Router) Start() error {
	for _, s := range r.servers() {
		if err := s.Start(); err != nil {
			return err
		}
	}

	for _, b := range r.bindings() {
		r.route(b.topic, b.target)
	}

	return nil
}

func (r *Router) route(topic string, target *Server) {
	ch, unsubscribe := r.bus.Subscribe(topic)
	r.stops = append(r.stops, unsubscribe)

	go func() {
		for payload := range ch {
			target.Broadcast(payload)
		}
	}()
}

func (r *Router) handleAlertsMessage(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Failed to parse alerts widget message", "error", err)
		return
	}

	switch msg.Type {
	case "alert-finished":
		slog.Info("Alert playback finished")
		r.Queue.Finished()
	case "skip":
		r.Queue.SkipCurrent()
	}
}

// RefreshAll tells every connected widget page to reload itself.
func (r *Router) RefreshAll() {
	for _, s := range r.servers() {
		s.Broadcast(map[string]string{"type": "reload"})
	}
}

// SetVisible shows or hides every widget without reloading.
func (r *Router) SetVisible(visible bool) {
	for _, s := range r.servers() {
		s.Broadcast(map[string]any{"type": "visibility", "visible": visible})
	}
}

// PushConfig sends an updated widget config to its connected pages.
func (r *Router) PushConfig(widget string, cfg map[string]any) {
	for _, s := range r.servers() {
		if s.name == widget {
			s.Broadcast(map[string]any{
				"type":   "config-update",
				"widget": widget,
				"config": cfg,
			})
			return
		}
	}
}

func (r *Router) Stop() {
	for _, stop := range r.stops {
		stop()
	}
	r.stops = nil
	for _, s := range r.servers() {
		s.Stop()
	}
}
