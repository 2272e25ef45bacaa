package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the durable side of every game mutation. All writes happen inside
// the transaction the atomic gate opens, so a mutation and its persistence
// commit or fail together. The "IfChanged"/"Once" operations report whether
// the call was a no-op duplicate; that report is the engine's dedup signal.
type Store struct {
	db *sqlx.DB
}

func newStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) begin() (*sqlx.Tx, error) {
	return s.db.Beginx()
}

// gameRow is the flat persisted form of a Game.
type gameRow struct {
	Key                string `db:"key"`
	Phase              string `db:"phase"`
	SubPhase           string `db:"sub_phase"`
	DayCount           int    `db:"day_count"`
	Lover1             int64  `db:"lover1_id"`
	Lover2             int64  `db:"lover2_id"`
	NightVictim        int64  `db:"night_victim"`
	WhiteWolfVictim    int64  `db:"white_wolf_victim"`
	PoisonVictim       int64  `db:"poison_victim"`
	ProtectedID        int64  `db:"protected_id"`
	LastProtectedID    int64  `db:"last_protected_id"`
	WitchHealUsed      bool   `db:"witch_heal_used"`
	WitchPoisonUsed    bool   `db:"witch_poison_used"`
	CaptainID          int64  `db:"captain_id"`
	PendingHunterID    int64  `db:"pending_hunter_id"`
	PendingHunterCause string `db:"pending_hunter_cause"`
	ThiefCard1         string `db:"thief_card1"`
	ThiefCard2         string `db:"thief_card2"`
	Winner             string `db:"winner"`
	WolfRound          int    `db:"wolf_round"`
	WolfElectors       string `db:"wolf_electors"`
	WolfResolved       bool   `db:"wolf_resolved"`
	DayRound           int    `db:"day_round"`
	DayElectors        string `db:"day_electors"`
	DayResolved        bool   `db:"day_resolved"`
}

// GameAction is one ledger row. The UNIQUE constraint on
// (game_key, round, action_type, actor_id) is the idempotency key.
type GameAction struct {
	ID          int64  `db:"id"`
	GameKey     string `db:"game_key"`
	Round       int    `db:"round"`
	ActionType  string `db:"action_type"`
	ActorID     int64  `db:"actor_id"`
	TargetID    int64  `db:"target_id"`
	Visibility  string `db:"visibility"`
	Description string `db:"description"`
}

// Visibility classes for ledger rows, for post-game review filtering.
const (
	VisibilityPublic = "public"
	VisibilityWolves = "team:wolves"
	VisibilityActor  = "actor"
)

func initDB(db *sqlx.DB) error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		key TEXT PRIMARY KEY,
		phase TEXT NOT NULL DEFAULT 'lobby',
		sub_phase TEXT NOT NULL DEFAULT '',
		day_count INTEGER NOT NULL DEFAULT 0,
		lover1_id INTEGER NOT NULL DEFAULT 0,
		lover2_id INTEGER NOT NULL DEFAULT 0,
		night_victim INTEGER NOT NULL DEFAULT 0,
		white_wolf_victim INTEGER NOT NULL DEFAULT 0,
		poison_victim INTEGER NOT NULL DEFAULT 0,
		protected_id INTEGER NOT NULL DEFAULT 0,
		last_protected_id INTEGER NOT NULL DEFAULT 0,
		witch_heal_used INTEGER NOT NULL DEFAULT 0,
		witch_poison_used INTEGER NOT NULL DEFAULT 0,
		captain_id INTEGER NOT NULL DEFAULT 0,
		pending_hunter_id INTEGER NOT NULL DEFAULT 0,
		pending_hunter_cause TEXT NOT NULL DEFAULT '',
		thief_card1 TEXT NOT NULL DEFAULT '',
		thief_card2 TEXT NOT NULL DEFAULT '',
		winner TEXT NOT NULL DEFAULT '',
		wolf_round INTEGER NOT NULL DEFAULT 0,
		wolf_electors TEXT NOT NULL DEFAULT '',
		wolf_resolved INTEGER NOT NULL DEFAULT 0,
		day_round INTEGER NOT NULL DEFAULT 0,
		day_electors TEXT NOT NULL DEFAULT '',
		day_resolved INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS game_player (
		game_key TEXT NOT NULL,
		player_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'villager',
		alive INTEGER NOT NULL DEFAULT 1,
		in_love INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (game_key) REFERENCES game(key),
		UNIQUE(game_key, player_id)
	);
	CREATE TABLE IF NOT EXISTS game_vote (
		game_key TEXT NOT NULL,
		round INTEGER NOT NULL,
		vote_type TEXT NOT NULL,
		voter_id INTEGER NOT NULL,
		target_id INTEGER NOT NULL,
		FOREIGN KEY (game_key) REFERENCES game(key),
		UNIQUE(game_key, round, vote_type, voter_id)
	);
	CREATE TABLE IF NOT EXISTS game_action (
		game_key TEXT NOT NULL,
		round INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		actor_id INTEGER NOT NULL,
		target_id INTEGER NOT NULL DEFAULT 0,
		visibility TEXT NOT NULL DEFAULT 'public',
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_key) REFERENCES game(key),
		UNIQUE(game_key, round, action_type, actor_id)
	);
	CREATE INDEX IF NOT EXISTS idx_game_action_lookup ON game_action(game_key, round, visibility);
	CREATE TABLE IF NOT EXISTS game_history (
		id TEXT PRIMARY KEY,
		game_key TEXT NOT NULL,
		winner TEXT NOT NULL,
		day_count INTEGER NOT NULL,
		finished_at TEXT NOT NULL,
		log TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func rowFromGame(g *Game) gameRow {
	row := gameRow{
		Key:                g.Key,
		Phase:              string(g.Phase),
		SubPhase:           string(g.SubPhase),
		DayCount:           g.DayCount,
		Lover1:             g.Lovers[0],
		Lover2:             g.Lovers[1],
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
		ThiefCard1:         string(g.ThiefCards[0]),
		ThiefCard2:         string(g.ThiefCards[1]),
		Winner:             g.Winner,
	}
	if g.WolfVotes != nil {
		row.WolfRound = g.WolfVotes.Round
		row.WolfElectors = joinIDs(g.WolfVotes.Electors)
		row.WolfResolved = g.WolfVotes.Resolved
	}
	if g.DayVotes != nil {
		row.DayRound = g.DayVotes.Round
		row.DayElectors = joinIDs(g.DayVotes.Electors)
		row.DayResolved = g.DayVotes.Resolved
	}
	return row
}

const gameColumns = `key, phase, sub_phase, day_count, lover1_id, lover2_id,
	night_victim, white_wolf_victim, poison_victim, protected_id, last_protected_id,
	witch_heal_used, witch_poison_used, captain_id, pending_hunter_id, pending_hunter_cause,
	thief_card1, thief_card2, winner, wolf_round, wolf_electors, wolf_resolved,
	day_round, day_electors, day_resolved`

// createGame inserts the game row. Fails if the key already exists.
func (s *Store) createGame(tx *sqlx.Tx, g *Game) error {
	appLogger.LogDB("create game " + g.Key)
	row := rowFromGame(g)
	_, err := tx.NamedExec(`
		INSERT INTO game (`+gameColumns+`)
		VALUES (:key, :phase, :sub_phase, :day_count, :lover1_id, :lover2_id,
			:night_victim, :white_wolf_victim, :poison_victim, :protected_id, :last_protected_id,
			:witch_heal_used, :witch_poison_used, :captain_id, :pending_hunter_id, :pending_hunter_cause,
			:thief_card1, :thief_card2, :winner, :wolf_round, :wolf_electors, :wolf_resolved,
			:day_round, :day_electors, :day_resolved)`, row)
	return err
}

// updateGame writes the full mutable field set of the game row.
func (s *Store) updateGame(tx *sqlx.Tx, g *Game) error {
	row := rowFromGame(g)
	_, err := tx.NamedExec(`
		UPDATE game SET
			phase = :phase, sub_phase = :sub_phase, day_count = :day_count,
			lover1_id = :lover1_id, lover2_id = :lover2_id,
			night_victim = :night_victim, white_wolf_victim = :white_wolf_victim,
			poison_victim = :poison_victim, protected_id = :protected_id,
			last_protected_id = :last_protected_id,
			witch_heal_used = :witch_heal_used, witch_poison_used = :witch_poison_used,
			captain_id = :captain_id, pending_hunter_id = :pending_hunter_id,
			pending_hunter_cause = :pending_hunter_cause,
			thief_card1 = :thief_card1, thief_card2 = :thief_card2, winner = :winner,
			wolf_round = :wolf_round, wolf_electors = :wolf_electors, wolf_resolved = :wolf_resolved,
			day_round = :day_round, day_electors = :day_electors, day_resolved = :day_resolved
		WHERE key = :key`, row)
	return err
}

func (s *Store) addPlayer(tx *sqlx.Tx, gameKey string, p *Player) error {
	_, err := tx.Exec(`
		INSERT INTO game_player (game_key, player_id, username, role, alive, in_love)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_key, player_id) DO UPDATE SET username = excluded.username`,
		gameKey, p.ID, p.Username, string(p.Role), p.Alive, p.InLove)
	return err
}

func (s *Store) removePlayer(tx *sqlx.Tx, gameKey string, playerID int64) error {
	_, err := tx.Exec("DELETE FROM game_player WHERE game_key = ? AND player_id = ?", gameKey, playerID)
	return err
}

func (s *Store) updatePlayer(tx *sqlx.Tx, gameKey string, p *Player) error {
	_, err := tx.Exec(`
		UPDATE game_player SET role = ?, alive = ?, in_love = ?
		WHERE game_key = ? AND player_id = ?`,
		string(p.Role), p.Alive, p.InLove, gameKey, p.ID)
	return err
}

// addVoteIfChanged upserts a voter's target for (round, voteType) and reports
// whether the target actually changed. An identical re-vote is a no-op
// duplicate and the caller suppresses its confirmation.
func (s *Store) addVoteIfChanged(tx *sqlx.Tx, gameKey string, round int, voteType string, voterID, targetID int64) (bool, error) {
	var prev int64
	err := tx.Get(&prev, `
		SELECT target_id FROM game_vote
		WHERE game_key = ? AND round = ? AND vote_type = ? AND voter_id = ?`,
		gameKey, round, voteType, voterID)
	switch {
	case err == nil && prev == targetID:
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, err
	}
	_, err = tx.Exec(`
		INSERT INTO game_vote (game_key, round, vote_type, voter_id, target_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_key, round, vote_type, voter_id)
		DO UPDATE SET target_id = excluded.target_id`,
		gameKey, round, voteType, voterID, targetID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) clearVotes(tx *sqlx.Tx, gameKey string, round int, voteType string) error {
	_, err := tx.Exec(`
		DELETE FROM game_vote WHERE game_key = ? AND round = ? AND vote_type = ?`,
		gameKey, round, voteType)
	return err
}

// addNightActionOnce appends a ledger row unless the idempotency key
// (game, round, action type, actor) already exists. The false return is the
// dedup signal for one-shot actions under retried or doubled triggers.
func (s *Store) addNightActionOnce(tx *sqlx.Tx, a GameAction) (applied bool, err error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO game_action (game_key, round, action_type, actor_id, target_id, visibility, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.GameKey, a.Round, a.ActionType, a.ActorID, a.TargetID, a.Visibility, a.Description)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		appLogger.LogDB(fmt.Sprintf("dedup %s %s round %d actor %d", a.GameKey, a.ActionType, a.Round, a.ActorID))
	}
	return rows > 0, nil
}

// useWitchPotionIfAvailable claims a single-use potion. The conditional
// UPDATE's rows-affected count makes the claim part of the surrounding
// transaction: a second claim in any later attempt finds the flag already set.
func (s *Store) useWitchPotionIfAvailable(tx *sqlx.Tx, gameKey, potion string) (bool, error) {
	var column string
	switch potion {
	case "heal":
		column = "witch_heal_used"
	case "poison":
		column = "witch_poison_used"
	default:
		return false, fmt.Errorf("unknown potion %q", potion)
	}
	res, err := tx.Exec(
		"UPDATE game SET "+column+" = 1 WHERE key = ? AND "+column+" = 0", gameKey)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) deleteGame(tx *sqlx.Tx, gameKey string) error {
	appLogger.LogDB("delete game " + gameKey)
	for _, stmt := range []string{
		"DELETE FROM game_action WHERE game_key = ?",
		"DELETE FROM game_vote WHERE game_key = ?",
		"DELETE FROM game_player WHERE game_key = ?",
		"DELETE FROM game WHERE key = ?",
	} {
		if _, err := tx.Exec(stmt, gameKey); err != nil {
			return err
		}
	}
	return nil
}

// saveGameHistory copies the public action trail and the result into
// game_history before the game rows are deleted.
func (s *Store) saveGameHistory(tx *sqlx.Tx, g *Game) error {
	var descriptions []string
	if err := tx.Select(&descriptions, `
		SELECT description FROM game_action
		WHERE game_key = ? AND description != '' AND visibility = ?
		ORDER BY rowid ASC`, g.Key, VisibilityPublic); err != nil {
		return err
	}
	_, err := tx.Exec(`
		INSERT INTO game_history (id, game_key, winner, day_count, finished_at, log)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), g.Key, g.Winner, g.DayCount,
		time.Now().UTC().Format(time.RFC3339), strings.Join(descriptions, "\n"))
	return err
}

// publicHistory returns the visible action trail for a running game, for the
// narrator and for status display.
func (s *Store) publicHistory(gameKey string) ([]string, error) {
	var descriptions []string
	err := s.db.Select(&descriptions, `
		SELECT description FROM game_action
		WHERE game_key = ? AND description != '' AND visibility = ?
		ORDER BY rowid ASC`, gameKey, VisibilityPublic)
	return descriptions, err
}

// actionsFor returns ledger rows for one round, for tests and review.
func (s *Store) actionsFor(gameKey string, round int, actionType string) ([]GameAction, error) {
	var actions []GameAction
	err := s.db.Select(&actions, `
		SELECT rowid as id, game_key, round, action_type, actor_id, target_id, visibility, description
		FROM game_action
		WHERE game_key = ? AND round = ? AND action_type = ?`,
		gameKey, round, actionType)
	return actions, err
}

// loadGames restores every persisted game for crash-restart recovery.
func (s *Store) loadGames() ([]*Game, error) {
	var rows []gameRow
	if err := s.db.Select(&rows, "SELECT "+gameColumns+" FROM game"); err != nil {
		return nil, err
	}

	var games []*Game
	for _, row := range rows {
		g := &Game{
			Key:                row.Key,
			Phase:              Phase(row.Phase),
			SubPhase:           SubPhase(row.SubPhase),
			DayCount:           row.DayCount,
			Lovers:             [2]int64{row.Lover1, row.Lover2},
			NightVictim:        row.NightVictim,
			WhiteWolfVictim:    row.WhiteWolfVictim,
			PoisonVictim:       row.PoisonVictim,
			ProtectedID:        row.ProtectedID,
			LastProtectedID:    row.LastProtectedID,
			WitchHealUsed:      row.WitchHealUsed,
			WitchPoisonUsed:    row.WitchPoisonUsed,
			CaptainID:          row.CaptainID,
			PendingHunterID:    row.PendingHunterID,
			PendingHunterCause: row.PendingHunterCause,
			ThiefCards:         [2]Role{Role(row.ThiefCard1), Role(row.ThiefCard2)},
			Winner:             row.Winner,
		}
		if err := s.db.Select(&g.Players, `
			SELECT player_id, username, role, alive, in_love
			FROM game_player WHERE game_key = ? ORDER BY rowid ASC`, row.Key); err != nil {
			return nil, err
		}
		for _, p := range g.Players {
			// A role was dealt before the crash; anything unparseable
			// means the row is from an incompatible schema.
			if _, ok := roleFromName(string(p.Role)); !ok && p.Role != "" {
				return nil, fmt.Errorf("game %s: player %d has unknown role %q", g.Key, p.ID, p.Role)
			}
		}
		if row.WolfRound > 0 {
			g.WolfVotes = s.restoreVoteState(g.Key, g.round(), voteTypeWolfKill, row.WolfRound, row.WolfElectors, row.WolfResolved)
		}
		if row.DayRound > 0 {
			voteType := voteTypeLynch
			if g.SubPhase == SubPhaseCaptainVote {
				voteType = voteTypeCaptain
			}
			g.DayVotes = s.restoreVoteState(g.Key, g.round(), voteType, row.DayRound, row.DayElectors, row.DayResolved)
			if g.CaptainID != 0 && voteType == voteTypeLynch {
				g.DayVotes.Weights[g.CaptainID] = 2
			}
		}
		games = append(games, g)
	}
	return games, nil
}

func (s *Store) restoreVoteState(gameKey string, gameRound int, voteType string, tallyRound int, electors string, resolved bool) *voteState {
	vs := newVoteState(splitIDs(electors))
	vs.Round = tallyRound
	vs.Resolved = resolved
	var votes []struct {
		VoterID  int64 `db:"voter_id"`
		TargetID int64 `db:"target_id"`
	}
	if err := s.db.Select(&votes, `
		SELECT voter_id, target_id FROM game_vote
		WHERE game_key = ? AND round = ? AND vote_type = ?`, gameKey, gameRound, voteType); err != nil {
		logError("restoreVoteState", err)
		return vs
	}
	for _, v := range votes {
		vs.Votes[v.VoterID] = v.TargetID
	}
	return vs
}
