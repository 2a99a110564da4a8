// Package dashboard exposes a local HTTP API for controlling the companion:
// giveaways, alerts, widget configs, banned words and static commands, plus
// Prometheus metrics.
package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/bot"
	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/store"
	"github.com/zexaal/stream-companion/internal/version"
	"github.com/zexaal/stream-companion/internal/widgets"
)

type Server struct {
	cfg    *config.Config
	bot    *bot.Bot
	store  *store.Store
	router *widgets.Router
	server *http.Server
}

func NewServer(cfg *config.Config, b *bot.Bot, st *store.Store, router *widgets.Router) *Server {
	return &Server{
		cfg:    cfg,
		bot:    b,
		store:  st,
		router: router,
	}
}

func getAuthCredentials() (username, password string) {
	return os.Getenv("DASHBOARD_USERNAME"), os.Getenv("DASHBOARD_PASSWORD")
}

func basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedUser, expectedPass := getAuthCredentials()
		if expectedUser == "" || expectedPass == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != expectedUser || pass != expectedPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Stream Companion"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/giveaway/start", s.handleGiveawayStart)
	mux.HandleFunc("/api/giveaway/stop", s.handleGiveawayStop)
	mux.HandleFunc("/api/giveaway/draw", s.handleGiveawayDraw)
	mux.HandleFunc("/api/giveaway/participants", s.handleGiveawayParticipants)

	mux.HandleFunc("/api/alerts/test", s.handleAlertTest)
	mux.HandleFunc("/api/alerts/skip", s.handleAlertSkip)

	mux.HandleFunc("/api/widgets/refresh", s.handleWidgetsRefresh)
	mux.HandleFunc("/api/widgets/visibility", s.handleWidgetsVisibility)
	mux.HandleFunc("/api/widgets/", s.handleWidgetConfig)

	mux.HandleFunc("/api/moderation/timeout", s.handleModerationTimeout)
	mux.HandleFunc("/api/banned-words", s.handleBannedWords)
	mux.HandleFunc("/api/commands", s.handleCommands)

	addr := fmt.Sprintf("%s:%d", s.cfg.Dashboard.Host, s.cfg.Dashboard.Port)

	var handler http.Handler = mux
	if user, pass := getAuthCredentials(); user != "" && pass != "" {
		handler = basicAuthMiddleware(mux)
		slog.Info("Dashboard authentication enabled")
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	slog.Info("Dashboard starting", "url", "http://"+addr+"/")

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Dashboard server error", "error", err)
		}
	}()
}

func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	giveawayActive, _ := s.store.GiveawayActive()
	lastEvents, err := s.store.GetLastEvents()
	if err != nil {
		slog.Error("Failed to load last events", "error", err)
	}

	last := make(map[string]map[string]string, len(lastEvents))
	for _, e := range lastEvents {
		last[e.Event] = map[string]string{"name": e.Username, "detail": e.Detail}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":        version.Version,
		"channel":        s.cfg.Channel,
		"subCount":       s.bot.SubCount(),
		"giveawayActive": giveawayActive,
		"alertQueueLen":  s.router.Queue.Len(),
		"lastEvents":     last,
		"widgets": map[string]int{
			"chat":     s.router.Chat.Port(),
			"alerts":   s.router.Alerts.Port(),
			"subgoals": s.router.Subgoals.Port(),
			"roulette": s.router.Roulette.Port(),
			"spotify":  s.router.Spotify.Port(),
		},
	})
}

func (s *Server) handleGiveawayStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.bot.StartGiveaway(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": true})
}

func (s *Server) handleGiveawayStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.bot.StopGiveaway(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (s *Server) handleGiveawayDraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	winner, err := s.bot.DrawWinner()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"winner": winner})
}

func (s *Server) handleGiveawayParticipants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		participants, err := s.bot.GiveawayParticipants()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
	case http.MethodDelete:
		if err := s.bot.ClearGiveawayParticipants(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"participants": []string{}})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAlertTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type     string `json:"type"`
		Username string `json:"username"`
		Amount   int    `json:"amount"`
		Months   int    `json:"months"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" {
		req.Username = "TestUser"
	}

	s.bot.TriggerAlert(alerts.Trigger{
		Type:     req.Type,
		Username: req.Username,
		Amount:   req.Amount,
		Months:   req.Months,
		Message:  req.Message,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"queued": true})
}

func (s *Server) handleAlertSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.router.Queue.SkipCurrent()
	writeJSON(w, http.StatusOK, map[string]bool{"skipped": true})
}

func (s *Server) handleWidgetsRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.router.RefreshAll()
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

func (s *Server) handleWidgetsVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.router.SetVisible(req.Visible)
	writeJSON(w, http.StatusOK, map[string]bool{"visible": req.Visible})
}

// handleWidgetConfig serves /api/widgets/{name}/config: GET returns the
// stored config, POST merges the body into it and pushes the result to the
// connected widget pages.
func (s *Server) handleWidgetConfig(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/widgets/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "config" {
		http.NotFound(w, r)
		return
	}
	widget := parts[0]

	switch r.Method {
	case http.MethodGet:
		cfg, err := s.store.GetWidgetConfig(widget, nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPost:
		var update map[string]any
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		merged, err := s.store.SaveWidgetConfig(widget, update)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.router.PushConfig(widget, merged)
		writeJSON(w, http.StatusOK, merged)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleModerationTimeout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID   string `json:"userId"`
		Duration int    `json:"duration"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.Duration <= 0 {
		req.Duration = 600
	}

	if err := s.bot.TimeoutUser(req.UserID, req.Duration, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"timedOut": true})
}

func (s *Server) handleBannedWords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		words, err := s.store.GetBannedWords()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"words": words})
	case http.MethodPost:
		var req struct {
			Word string `json:"word"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Word == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := s.bot.AddBannedWord(req.Word); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"added": true})
	case http.MethodDelete:
		word := r.URL.Query().Get("word")
		if word == "" {
			if err := s.bot.ClearBannedWords(); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		} else if err := s.bot.RemoveBannedWord(word); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		commands, err := s.store.StaticCommands()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, commands)
	case http.MethodPost:
		var req struct {
			Command  string `json:"command"`
			Response string `json:"response"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := s.bot.AddCommand(req.Command, req.Response); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
	case http.MethodDelete:
		command := r.URL.Query().Get("command")
		if command == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := s.bot.RemoveCommand(command); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
