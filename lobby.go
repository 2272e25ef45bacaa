package main

import (
	"crypto/rand"
	"math/big"
)

// CreateGame opens a lobby in a channel. The creator joins immediately. The
// game row exists from this point on, so a crash during the lobby still
// restores the player list.
func (m *Manager) CreateGame(gameKey string, hostID int64, hostName string) Outcome {
	out := m.createGameLocked(gameKey, hostID, hostName)
	if out.Status == StatusOK {
		m.notifier.Publish(gameKey, Event{Type: EventPhase, GameKey: gameKey, Phase: PhaseLobby,
			Message: hostName + " opened a game"})
	}
	return out
}

// createGameLocked runs the lobby creation under the channel's lock. The
// announcement happens after release, like every other broadcast.
func (m *Manager) createGameLocked(gameKey string, hostID int64, hostName string) Outcome {
	lk := m.gate.forKey(gameKey)
	lk.lock()
	defer lk.unlock()

	if m.lookup(gameKey) != nil {
		return Outcome{Status: StatusRejected, Code: ReasonGameExists, Message: "a game is already running in this channel"}
	}

	g := &Game{
		Key:   gameKey,
		Phase: PhaseLobby,
	}
	host := &Player{ID: hostID, Username: hostName, Role: RoleVillager, Alive: true}
	g.Players = append(g.Players, host)

	tx, err := m.store.begin()
	if err != nil {
		return internalOutcome("begin transaction", err)
	}
	if err := m.store.createGame(tx, g); err != nil {
		tx.Rollback()
		return internalOutcome("create game "+gameKey, err)
	}
	if err := m.store.addPlayer(tx, gameKey, host); err != nil {
		tx.Rollback()
		return internalOutcome("add host "+gameKey, err)
	}
	if err := tx.Commit(); err != nil {
		return internalOutcome("commit create "+gameKey, err)
	}

	m.insert(g)
	return okOutcome()
}

// Join adds a player to an open lobby. Joining twice is a duplicate, not an
// error.
func (m *Manager) Join(gameKey string, playerID int64, username string) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.Phase != PhaseLobby {
			return Outcome{}, reject(ReasonWrongPhase, "the game has already started")
		}
		if g.player(playerID) != nil {
			return duplicateOutcome("you are already in"), nil
		}
		p := &Player{ID: playerID, Username: username, Role: RoleVillager, Alive: true}
		g.Players = append(g.Players, p)
		if err := m.store.addPlayer(mc.tx, gameKey, p); err != nil {
			return Outcome{}, err
		}
		mc.emit(Event{Type: EventPhase, GameKey: gameKey, Phase: PhaseLobby, Message: username + " joined"})
		return okOutcome(), nil
	})
}

// Leave removes a player from the lobby. Once the game starts nobody leaves;
// they die instead.
func (m *Manager) Leave(gameKey string, playerID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.Phase != PhaseLobby {
			return Outcome{}, reject(ReasonWrongPhase, "the game has already started")
		}
		p := g.player(playerID)
		if p == nil {
			return Outcome{}, reject(ReasonNotInGame, "you are not in this game")
		}
		for i, q := range g.Players {
			if q.ID == playerID {
				g.Players = append(g.Players[:i], g.Players[i+1:]...)
				break
			}
		}
		if err := m.store.removePlayer(mc.tx, gameKey, playerID); err != nil {
			return Outcome{}, err
		}
		mc.emit(Event{Type: EventPhase, GameKey: gameKey, Phase: PhaseLobby, Message: p.Username + " left"})
		return okOutcome(), nil
	})
}

// roleDeck composes the deck for n players. Special roles come in with table
// size; the thief brings two extra cards that stay face down as the spare
// deal.
func roleDeck(n int) []Role {
	deck := []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleHunter}
	if n >= 6 {
		deck = append(deck, RoleWerewolf)
	}
	if n >= 7 {
		deck = append(deck, RoleProtector)
	}
	if n >= 8 {
		deck = append(deck, RoleCupid)
	}
	if n >= 9 {
		deck = append(deck, RoleWhiteWolf)
	}
	if n >= 10 {
		deck = append(deck, RoleThief)
	}
	if n >= 12 {
		deck = append(deck, RoleWerewolf)
	}
	target := n
	if hasRole(deck, RoleThief) {
		target = n + 2
	}
	for len(deck) < target {
		deck = append(deck, RoleVillager)
	}
	return deck
}

func hasRole(deck []Role, r Role) bool {
	for _, d := range deck {
		if d == r {
			return true
		}
	}
	return false
}

// shuffleRoles is a Fisher-Yates shuffle over the crypto source, so the deal
// cannot be predicted from process start time.
func shuffleRoles(deck []Role) {
	for i := len(deck) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		deck[i], deck[j.Int64()] = deck[j.Int64()], deck[i]
	}
}

// StartGame deals roles and opens the first night. Only a lobby member may
// start, and the table needs enough players for a playable deck.
func (m *Manager) StartGame(gameKey string, playerID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.Phase != PhaseLobby {
			return Outcome{}, reject(ReasonWrongPhase, "the game has already started")
		}
		if g.player(playerID) == nil {
			return Outcome{}, reject(ReasonNotInGame, "only a player at the table may start")
		}
		if len(g.Players) < m.cfg.MinPlayers {
			return Outcome{}, reject(ReasonNotStartable, "need at least %d players", m.cfg.MinPlayers)
		}

		deck := roleDeck(len(g.Players))
		shuffleRoles(deck)
		for i, p := range g.Players {
			p.Role = deck[i]
			if err := m.store.updatePlayer(mc.tx, gameKey, p); err != nil {
				return Outcome{}, err
			}
			mc.whisperTo(p.ID, Event{Type: EventPhase, GameKey: gameKey, Role: p.Role,
				Message: "your role is " + string(p.Role)})
		}
		if len(deck) > len(g.Players) {
			g.ThiefCards = [2]Role{deck[len(g.Players)], deck[len(g.Players)+1]}
		}

		if err := beginNight(mc); err != nil {
			return Outcome{}, err
		}
		return okOutcome(), nil
	})
}
