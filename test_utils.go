package main

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// captureNotifier records published events and whispers for assertions.
type captureNotifier struct {
	mu       sync.Mutex
	events   []Event
	whispers map[int64][]Event
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{whispers: make(map[int64][]Event)}
}

func (c *captureNotifier) Publish(gameKey string, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureNotifier) Whisper(gameKey string, playerID int64, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.whispers[playerID] = append(c.whispers[playerID], ev)
	return nil
}

func (c *captureNotifier) eventsOfType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *captureNotifier) whispersFor(playerID int64) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.whispers[playerID]...)
}

// newTestManager builds a manager over a fresh sqlite file with all deadline
// timers disabled, so tests drive every phase change themselves.
func newTestManager(t *testing.T) (*Manager, *captureNotifier) {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := initDB(db); err != nil {
		t.Fatalf("init test database: %v", err)
	}
	notifier := newCaptureNotifier()
	cfg := defaultConfig()
	cfg.MinPlayers = 4
	cfg.NightActionSeconds = 0
	cfg.DeliberationSeconds = 0
	cfg.VoteSeconds = 0
	cfg.HunterSeconds = 0
	m := newManager(newStore(db), notifier, cfg)
	return m, notifier
}

// setupGame persists a game with a fixed role layout and opens the first
// night through the gate. Player ids are 1..n in role order.
func setupGame(t *testing.T, m *Manager, key string, roles []Role) {
	t.Helper()
	g := &Game{Key: key, Phase: PhaseLobby}
	for i, r := range roles {
		g.Players = append(g.Players, &Player{
			ID:       int64(i + 1),
			Username: fmt.Sprintf("player%d", i+1),
			Role:     r,
			Alive:    true,
		})
		if r == RoleThief {
			g.ThiefCards = [2]Role{RoleWerewolf, RoleVillager}
		}
	}
	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.store.createGame(tx, g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	for _, p := range g.Players {
		if err := m.store.addPlayer(tx, key, p); err != nil {
			t.Fatalf("add player: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	m.insert(g)

	out := m.runAtomic(key, func(mc *mutation) (Outcome, error) {
		return okOutcome(), beginNight(mc)
	})
	if out.Status != StatusOK {
		t.Fatalf("open first night: %+v", out)
	}
}

// game re-reads the live game; rollbacks can swap the pointer in the
// registry, so tests never hold one across mutations.
func game(t *testing.T, m *Manager, key string) *Game {
	t.Helper()
	g := m.lookup(key)
	if g == nil {
		t.Fatalf("game %s not found", key)
	}
	return g
}

func requireStatus(t *testing.T, out Outcome, want OutcomeStatus) {
	t.Helper()
	if out.Status != want {
		t.Fatalf("outcome status = %s (code=%s msg=%q), want %s", out.Status, out.Code, out.Message, want)
	}
}

func requireSubPhase(t *testing.T, m *Manager, key string, want SubPhase) {
	t.Helper()
	g := game(t, m, key)
	if g.SubPhase != want {
		t.Fatalf("sub-phase = %s, want %s (phase=%s)", g.SubPhase, want, g.Phase)
	}
}

func requireAlive(t *testing.T, m *Manager, key string, playerID int64, want bool) {
	t.Helper()
	p := game(t, m, key).player(playerID)
	if p == nil {
		t.Fatalf("player %d not found", playerID)
	}
	if p.Alive != want {
		t.Fatalf("player %d alive = %v, want %v", playerID, p.Alive, want)
	}
}
