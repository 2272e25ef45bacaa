package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	fv := registerFlags()
	flag.Parse()
	cfg := loadConfig(*fv.configPath)
	fv.applyTo(&cfg)
	devMode = cfg.Dev

	var err error
	appLogger, err = NewAppLogger(cfg.toLogConfig())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer appLogger.Close()

	db, err := sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	defer db.Close()
	if err := initDB(db); err != nil {
		log.Fatalf("database init: %v", err)
	}
	store := newStore(db)

	hub := newHub()
	manager := newManager(store, hub, cfg)
	hub.manager = manager
	if err := manager.loadFromStore(); err != nil {
		log.Fatalf("restore games: %v", err)
	}
	go hub.run()
	defer hub.stop()

	http.HandleFunc("/ws", hub.handleWebSocket)
	http.HandleFunc("/api/game", func(w http.ResponseWriter, r *http.Request) {
		handleGameStatus(manager, w, r)
	})

	log.Printf("Listening on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, nil))
}

// gameStatus is the read-only view served over HTTP. Roles stay hidden for
// living players; the dead are revealed.
type gameStatus struct {
	Key      string         `json:"key"`
	Phase    Phase          `json:"phase"`
	SubPhase SubPhase       `json:"sub_phase"`
	DayCount int            `json:"day_count"`
	Captain  int64          `json:"captain_id,omitempty"`
	Players  []playerStatus `json:"players"`
}

type playerStatus struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Alive    bool   `json:"alive"`
	Role     Role   `json:"role,omitempty"` // revealed on death only
}

func handleGameStatus(m *Manager, w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	g := m.Snapshot(key)
	if g == nil {
		http.Error(w, "no such game", http.StatusNotFound)
		return
	}
	status := gameStatus{
		Key:      g.Key,
		Phase:    g.Phase,
		SubPhase: g.SubPhase,
		DayCount: g.DayCount,
		Captain:  g.CaptainID,
	}
	for _, p := range g.Players {
		ps := playerStatus{ID: p.ID, Username: p.Username, Alive: p.Alive}
		if !p.Alive {
			ps.Role = p.Role
		}
		status.Players = append(status.Players, ps)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
