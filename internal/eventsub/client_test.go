package eventsub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// holdOpen keeps the server side of the connection alive until the peer
// goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestSessionReconnectMigratesImmediately(t *testing.T) {
	upgrader := websocket.Upgrader{}
	migrated := make(chan struct{}, 1)

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		select {
		case migrated <- struct{}{}:
		default:
		}
		holdOpen(conn)
	}))
	defer second.Close()

	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frame := fmt.Sprintf(
			`{"metadata":{"message_type":"session_reconnect"},"payload":{"session":{"reconnect_url":%q}}}`,
			wsURL(second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		holdOpen(conn)
	}))
	defer first.Close()

	// The reconnect delay is deliberately huge: a migration taking the
	// delayed path would never reach the new endpoint in time.
	c := NewClient(nil, time.Hour, nil)
	c.feedURL = wsURL(first)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	select {
	case <-migrated:
	case <-time.After(2 * time.Second):
		t.Fatal("session migration did not redial the new endpoint")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := NewClient(nil, time.Second, nil)
	c.Close()
	c.Close()
}
