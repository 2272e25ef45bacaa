package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestSocket(t *testing.T, srv *httptest.Server, playerID, gameKey string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?player_id=" + playerID + "&game=" + gameKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestWebSocketCommandRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	h := newHub()
	h.manager = m
	m.notifier = h
	go h.run()
	t.Cleanup(h.stop)

	srv := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	t.Cleanup(srv.Close)

	conn := dialTestSocket(t, srv, "1", "den")
	cmd, _ := json.Marshal(WSCommand{Action: "create", GameKey: "den", Username: "host"})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The lobby broadcast and the command outcome both arrive on this
	// connection, in either order.
	sawOutcome, sawEvent := false, false
	for i := 0; i < 2; i++ {
		msg := readJSON(t, conn)
		if status, ok := msg["status"]; ok {
			if status != string(StatusOK) {
				t.Fatalf("outcome = %+v, want ok", msg)
			}
			sawOutcome = true
		}
		if evType, ok := msg["type"]; ok && evType == string(EventPhase) {
			sawEvent = true
		}
	}
	if !sawOutcome || !sawEvent {
		t.Fatalf("sawOutcome=%v sawEvent=%v, want both", sawOutcome, sawEvent)
	}

	if g := m.lookup("den"); g == nil || g.player(1) == nil {
		t.Fatal("create command should have opened a lobby with the host in it")
	}
}

func TestWebSocketRejectsMalformedCommand(t *testing.T) {
	m, _ := newTestManager(t)
	h := newHub()
	h.manager = m
	go h.run()
	t.Cleanup(h.stop)

	srv := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	t.Cleanup(srv.Close)

	conn := dialTestSocket(t, srv, "1", "den")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readJSON(t, conn)
	if msg["status"] != string(StatusRejected) {
		t.Fatalf("reply = %+v, want a rejection", msg)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	h := newHub()
	h.manager = m
	go h.run()
	t.Cleanup(h.stop)

	srv := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/?game=den")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
