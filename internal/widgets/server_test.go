package widgets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubConfigSource struct {
	configs map[string]map[string]any
}

func (s *stubConfigSource) GetWidgetConfig(widget string, defaults map[string]any) (map[string]any, error) {
	return s.configs[widget], nil
}

func dialWidget(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestHandshakeAndConfigOnConnect(t *testing.T) {
	configs := &stubConfigSource{configs: map[string]map[string]any{
		"alerts": {"volume": 0.7},
	}}
	s := NewServer("alerts", 0, configs)

	conn := dialWidget(t, s)

	handshake := readFrame(t, conn)
	if handshake["type"] != "handshake" {
		t.Fatalf("first frame = %v, want handshake", handshake)
	}
	if runID, _ := handshake["runId"].(string); runID != s.runID {
		t.Errorf("runId = %v, want %q", handshake["runId"], s.runID)
	}

	configFrame := readFrame(t, conn)
	if configFrame["type"] != "config-update" || configFrame["widget"] != "alerts" {
		t.Fatalf("second frame = %v, want config-update", configFrame)
	}
	config, _ := configFrame["config"].(map[string]any)
	if config["volume"] != 0.7 {
		t.Errorf("config = %v", config)
	}
}

func TestHandshakeSkipsEmptyConfig(t *testing.T) {
	s := NewServer("chat", 0, &stubConfigSource{})
	conn := dialWidget(t, s)

	readFrame(t, conn)

	// Only the handshake should arrive; a read must hit the deadline.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err == nil {
		t.Fatalf("unexpected frame after handshake: %v", frame)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	s := NewServer("chat", 0, nil)
	conn := dialWidget(t, s)
	readFrame(t, conn)

	if !s.HasActiveClients() {
		t.Fatal("no active clients after connect")
	}

	s.Broadcast(map[string]any{"type": "chat-message", "text": "salut"})

	frame := readFrame(t, conn)
	if frame["type"] != "chat-message" || frame["text"] != "salut" {
		t.Fatalf("frame = %v", frame)
	}
}

func TestBroadcastWithoutClientsIsSilent(t *testing.T) {
	s := NewServer("chat", 0, nil)

	if s.HasActiveClients() {
		t.Fatal("fresh server reports active clients")
	}
	s.Broadcast(map[string]any{"type": "chat-message"})
}

func TestOnMessageReceivesClientFrames(t *testing.T) {
	s := NewServer("alerts", 0, nil)

	received := make(chan []byte, 1)
	s.OnMessage = func(data []byte) { received <- data }

	conn := dialWidget(t, s)
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"alert-finished"}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-received:
		if !strings.Contains(string(data), "alert-finished") {
			t.Fatalf("data = %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client frame never reached OnMessage")
	}
}

func TestClientRemovedOnDisconnect(t *testing.T) {
	s := NewServer("chat", 0, nil)
	conn := dialWidget(t, s)
	readFrame(t, conn)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.HasActiveClients() {
		if time.Now().After(deadline) {
			t.Fatal("client still tracked after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
