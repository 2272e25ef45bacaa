package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

// WSCommand represents a command from the client.
type WSCommand struct {
	Action   string `json:"action"`
	GameKey  string `json:"game_key"`
	Username string `json:"username,omitempty"`
	TargetID int64  `json:"target_id,omitempty"`
	SecondID int64  `json:"second_id,omitempty"` // cupid's second pick
	Choice   int    `json:"choice,omitempty"`    // thief card choice
}

// Execute dispatches one client command to its handler. Everything behind
// this call runs under the game's mutation gate; the returned outcome is the
// caller's receipt, broadcast effects go out as events.
func (m *Manager) Execute(playerID int64, cmd WSCommand) Outcome {
	switch cmd.Action {
	case "create":
		return m.CreateGame(cmd.GameKey, playerID, cmd.Username)
	case "join":
		return m.Join(cmd.GameKey, playerID, cmd.Username)
	case "leave":
		return m.Leave(cmd.GameKey, playerID)
	case "start":
		return m.StartGame(cmd.GameKey, playerID)
	case "wolf_vote":
		return m.WolfVote(cmd.GameKey, playerID, cmd.TargetID)
	case "white_wolf_kill":
		return m.WhiteWolfKill(cmd.GameKey, playerID, cmd.TargetID)
	case "white_wolf_pass":
		return m.WhiteWolfPass(cmd.GameKey, playerID)
	case "witch_heal":
		return m.WitchHeal(cmd.GameKey, playerID)
	case "witch_poison":
		return m.WitchPoison(cmd.GameKey, playerID, cmd.TargetID)
	case "witch_pass":
		return m.WitchPass(cmd.GameKey, playerID)
	case "seer_inspect":
		return m.SeerInspect(cmd.GameKey, playerID, cmd.TargetID)
	case "protect":
		return m.Protect(cmd.GameKey, playerID, cmd.TargetID)
	case "cupid_link":
		return m.CupidLink(cmd.GameKey, playerID, cmd.TargetID, cmd.SecondID)
	case "thief_choose":
		return m.ThiefChoose(cmd.GameKey, playerID, cmd.Choice)
	case "day_vote":
		return m.DayVote(cmd.GameKey, playerID, cmd.TargetID)
	case "captain_vote":
		return m.CaptainVote(cmd.GameKey, playerID, cmd.TargetID)
	case "hunter_shoot":
		return m.HunterShoot(cmd.GameKey, playerID, cmd.TargetID)
	}
	return Outcome{Status: StatusRejected, Code: ReasonUnknownAction,
		Message: fmt.Sprintf("unknown action %q", cmd.Action)}
}

// Client represents a websocket connection bound to one player in one game
// channel.
type Client struct {
	conn     *websocket.Conn
	playerID int64
	gameKey  string
	writeMu  sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub fans committed game events out to connected clients. It implements the
// engine's Notifier; delivery failures are logged, never retried.
type Hub struct {
	manager    *Manager
	clients    map[*websocket.Conn]*Client
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (player %d, game %s). Total: %d",
				client.playerID, client.gameKey, total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				log.Printf("WebSocket client disconnected (player %d, game %s). Total: %d",
					client.playerID, client.gameKey, len(h.clients))
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts an event to every client bound to the game's channel.
func (h *Hub) Publish(gameKey string, ev Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		logError("marshal event", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.gameKey != gameKey {
			continue
		}
		appLogger.LogWebSocket("OUT", strconv.FormatInt(client.playerID, 10), string(message))
		if err := client.send(message); err != nil {
			log.Printf("WebSocket write error to player %d: %v", client.playerID, err)
		}
	}
}

// Whisper delivers an event to one player's connections in the game's
// channel. Nobody connected is not an error; the event is simply dropped.
func (h *Hub) Whisper(gameKey string, playerID int64, ev Event) error {
	message, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.gameKey != gameKey || client.playerID != playerID {
			continue
		}
		appLogger.LogWebSocket("OUT", strconv.FormatInt(playerID, 10), string(message))
		if err := client.send(message); err != nil {
			log.Printf("WebSocket write error to player %d: %v", playerID, err)
		}
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and runs the read loop. The client
// identifies itself with player_id and game query parameters; every command
// gets an outcome reply on the same connection.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(r.URL.Query().Get("player_id"), 10, 64)
	if err != nil || playerID <= 0 {
		http.Error(w, "invalid player_id", http.StatusBadRequest)
		return
	}
	gameKey := r.URL.Query().Get("game")
	if gameKey == "" {
		http.Error(w, "missing game", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logError("websocket upgrade", err)
		return
	}
	client := &Client{conn: conn, playerID: playerID, gameKey: gameKey}
	h.register <- client

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			appLogger.LogWebSocket("IN", strconv.FormatInt(playerID, 10), string(data))

			var cmd WSCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				reply, _ := json.Marshal(Outcome{Status: StatusRejected,
					Code: ReasonUnknownAction, Message: "malformed command"})
				client.send(reply)
				continue
			}
			if cmd.GameKey == "" {
				cmd.GameKey = gameKey
			}
			outcome := h.manager.Execute(playerID, cmd)
			reply, err := json.Marshal(outcome)
			if err != nil {
				logError("marshal outcome", err)
				continue
			}
			if err := client.send(reply); err != nil {
				return
			}
		}
	}()
}
