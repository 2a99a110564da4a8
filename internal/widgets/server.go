// Package widgets runs one small HTTP+WebSocket server per overlay widget.
// Each browser source connects to its widget's port, receives a handshake
// carrying the process run ID (so stale pages reload after a restart) and the
// widget's stored config, then gets live updates as broadcasts.
package widgets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zexaal/stream-companion/internal/metrics"
)

// ConfigSource provides the per-widget config sent on connect.
type ConfigSource interface {
	GetWidgetConfig(widget string, defaults map[string]any) (map[string]any, error)
}

type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Server struct {
	name     string
	port     int
	runID    string
	configs  ConfigSource
	upgrader websocket.Upgrader

	// OnConnect runs after the handshake for each new client. OnMessage
	// receives every text frame a client sends.
	OnConnect func()
	OnMessage func(data []byte)

	mu      sync.RWMutex
	clients map[*Client]struct{}
	httpSrv *http.Server
}

func NewServer(name string, port int, configs ConfigSource) *Server {
	return &Server{
		name:    name,
		port:    port,
		runID:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		configs: configs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

func (s *Server) Name() string { return s.name }
func (s *Server) Port() int    { return s.port }

func (s *Server) URL(host string) string {
	return fmt.Sprintf("http://%s:%d/widget/%s", host, s.port, s.name)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			s.handleWS(w, r)
			return
		}
		s.serveWidget(w, r)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Widget server failed", "widget", s.name, "error", err)
		}
	}()

	slog.Info("Widget server started", "widget", s.name, "port", s.port)
	return nil
}

func (s *Server) serveWidget(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")

	if r.URL.Path == "/widget/"+s.name {
		http.ServeFile(w, r, filepath.Join("widgets", s.name+"_widget.html"))
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Widget upgrade failed", "widget", s.name, "error", err)
		return
	}

	client := &Client{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	metrics.WidgetClients.WithLabelValues(s.name).Set(float64(count))
	slog.Debug("Widget client connected", "widget", s.name, "clients", count)

	_ = client.writeJSON(map[string]string{"type": "handshake", "runId": s.runID})

	if s.configs != nil {
		if config, err := s.configs.GetWidgetConfig(s.name, nil); err == nil && len(config) > 0 {
			_ = client.writeJSON(map[string]any{
				"type":   "config-update",
				"widget": s.name,
				"config": config,
			})
		}
	}

	if s.OnConnect != nil {
		s.OnConnect()
	}

	go s.readLoop(client)
}

func (s *Server) readLoop(client *Client) {
	defer func() {
		client.conn.Close()

		s.mu.Lock()
		delete(s.clients, client)
		count := len(s.clients)
		s.mu.Unlock()

		metrics.WidgetClients.WithLabelValues(s.name).Set(float64(count))
		slog.Debug("Widget client disconnected", "widget", s.name, "clients", count)
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if s.OnMessage != nil {
			s.OnMessage(data)
		}
	}
}

// Broadcast sends payload to every connected client. With no clients it is
// a silent no-op.
func (s *Server) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode broadcast", "widget", s.name, "error", err)
		return
	}

	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	metrics.Broadcasts.WithLabelValues(s.name).Inc()
	for _, c := range clients {
		if err := c.writeJSON(json.RawMessage(data)); err != nil {
			slog.Debug("Dropping widget client on write error", "widget", s.name, "error", err)
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.conn.Close()
		}
	}
}

func (s *Server) HasActiveClients() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients) > 0
}

func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.httpSrv
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	if srv != nil {
		_ = srv.Close()
	}
}
