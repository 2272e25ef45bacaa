package main

import (
	"sync"
	"sync/atomic"
)

// Player is one participant in a game. Owned exclusively by its Game; dead
// players stay in the slice for history and end-of-game reveal.
type Player struct {
	ID       int64  `db:"player_id"`
	Username string `db:"username"`
	Role     Role   `db:"role"`
	Alive    bool   `db:"alive"`
	InLove   bool   `db:"in_love"`
}

// Game is the authoritative in-memory state of one session, keyed by the chat
// channel it runs in. All mutation goes through the Manager's atomic gate.
type Game struct {
	Key      string
	Phase    Phase
	SubPhase SubPhase
	DayCount int // full night->day cycles completed

	Players []*Player // insertion order = join order
	Lovers  [2]int64  // at most one pair, 0 when unset

	WolfVotes *voteState // wolves' kill vote, rebuilt each night
	DayVotes  *voteState // lynch or captain vote, rebuilt each day

	NightVictim     int64 // wolves' victim this night, 0 = none
	WhiteWolfVictim int64
	PoisonVictim    int64
	ProtectedID     int64
	LastProtectedID int64 // protector may not guard the same player twice in a row

	WitchHealUsed   bool
	WitchPoisonUsed bool

	CaptainID int64

	// Hunter suspension: phase advancement halts while a dead hunter has an
	// unfired shot. Cause records what resumes after the shot.
	PendingHunterID    int64
	PendingHunterCause string // "night" or "lynch"

	ThiefCards [2]Role // leftover deal, night-1 thief choice
	Winner     string  // "", "village", "wolves", "lovers"

	// Guard flag: true only while a gate section executes for this game.
	atomicActive atomic.Bool
}

// round is the ledger round number: nights are numbered from 1, and the day
// that follows night N shares N.
func (g *Game) round() int {
	if g.Phase == PhaseNight {
		return g.DayCount + 1
	}
	if g.DayCount == 0 {
		return 1
	}
	return g.DayCount
}

func (g *Game) player(id int64) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) alivePlayers() []*Player {
	var alive []*Player
	for _, p := range g.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (g *Game) aliveIDs() []int64 {
	var ids []int64
	for _, p := range g.Players {
		if p.Alive {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// aliveWolfIDs returns the living wolf pack (ordinary and white wolf): the
// elector set for the kill vote.
func (g *Game) aliveWolfIDs() []int64 {
	var ids []int64
	for _, p := range g.Players {
		if p.Alive && p.Role.IsWolf() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (g *Game) hasAliveRole(r Role) bool {
	for _, p := range g.Players {
		if p.Alive && p.Role == r {
			return true
		}
	}
	return false
}

func (g *Game) loverOf(id int64) int64 {
	switch id {
	case 0:
		return 0
	case g.Lovers[0]:
		return g.Lovers[1]
	case g.Lovers[1]:
		return g.Lovers[0]
	}
	return 0
}

// clone deep-copies the game for the gate's rollback snapshot. The guard flag
// is deliberately not copied.
func (g *Game) clone() *Game {
	c := &Game{
		Key:                g.Key,
		Phase:              g.Phase,
		SubPhase:           g.SubPhase,
		DayCount:           g.DayCount,
		Lovers:             g.Lovers,
		NightVictim:        g.NightVictim,
		WhiteWolfVictim:    g.WhiteWolfVictim,
		PoisonVictim:       g.PoisonVictim,
		ProtectedID:        g.ProtectedID,
		LastProtectedID:    g.LastProtectedID,
		WitchHealUsed:      g.WitchHealUsed,
		WitchPoisonUsed:    g.WitchPoisonUsed,
		CaptainID:          g.CaptainID,
		PendingHunterID:    g.PendingHunterID,
		PendingHunterCause: g.PendingHunterCause,
		ThiefCards:         g.ThiefCards,
		Winner:             g.Winner,
	}
	for _, p := range g.Players {
		cp := *p
		c.Players = append(c.Players, &cp)
	}
	c.WolfVotes = cloneVoteState(g.WolfVotes)
	c.DayVotes = cloneVoteState(g.DayVotes)
	return c
}

func cloneVoteState(vs *voteState) *voteState {
	if vs == nil {
		return nil
	}
	c := &voteState{
		Round:    vs.Round,
		Votes:    make(map[int64]int64, len(vs.Votes)),
		Electors: append([]int64(nil), vs.Electors...),
		Weights:  make(map[int64]int, len(vs.Weights)),
		Resolved: vs.Resolved,
	}
	for k, v := range vs.Votes {
		c.Votes[k] = v
	}
	for k, v := range vs.Weights {
		c.Weights[k] = v
	}
	return c
}

// Manager owns the registry of active games and everything a mutation needs:
// the store, the gate locks, the notifier and the timers. There is no ambient
// global game map; all lookups route through here.
type Manager struct {
	mu    sync.Mutex
	games map[string]*Game

	gate     *mutationGate
	store    *Store
	notifier Notifier
	timers   *timerSet
	narrator *Narrator
	cfg      AppConfig
}

func newManager(store *Store, notifier Notifier, cfg AppConfig) *Manager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	m := &Manager{
		games:    make(map[string]*Game),
		gate:     newMutationGate(),
		store:    store,
		notifier: notifier,
		narrator: newNarrator(cfg),
		cfg:      cfg,
	}
	m.timers = newTimerSet(m)
	return m
}

func (m *Manager) lookup(key string) *Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[key]
}

// Snapshot returns a stale copy for read-only display. Unsynchronized with
// the gate; display is eventually refreshed by outcome events.
func (m *Manager) Snapshot(key string) *Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[key]; ok {
		return g.clone()
	}
	return nil
}

func (m *Manager) insert(g *Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.Key] = g
}

func (m *Manager) replace(key string, g *Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[key]; ok {
		m.games[key] = g
	}
}

func (m *Manager) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, key)
}

// loadFromStore restores all persisted games after a restart. Ledger rows and
// the UNIQUE constraints survive with them, so retried commands from before
// the crash still dedupe.
func (m *Manager) loadFromStore() error {
	games, err := m.store.loadGames()
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, g := range games {
		m.games[g.Key] = g
	}
	m.mu.Unlock()
	for _, g := range games {
		if g.Phase == PhaseNight || g.Phase == PhaseDay {
			m.timers.arm(g.Key, g)
		}
	}
	return nil
}
