package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(s.Close)

	url := "ws" + strings.TrimPrefix(s.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast("tick", map[string]any{"symbol": "AAPL", "price": 150.0})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "tick" {
		t.Errorf("type: got %q, want tick", ev.Type)
	}
	data, ok := ev.Data.(map[string]any)
	if !ok || data["symbol"] != "AAPL" {
		t.Errorf("data: %v", ev.Data)
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub()
	dialHub(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	h := NewHub()
	// Must not block or panic.
	h.Broadcast("tick", map[string]any{"symbol": "AAPL"})
	if h.ClientCount() != 0 {
		t.Fatalf("ClientCount: %d", h.ClientCount())
	}
}
