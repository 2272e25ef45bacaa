package main

import (
	"github.com/jmoiron/sqlx"
)

// Action types recorded in the night action ledger. One row per
// (game, round, type, actor); the ledger is both the audit trail for
// post-game review and the dedup backstop for destructive one-shot actions.
const (
	ActionWolfKill      = "wolf_kill"
	ActionWhiteWolfKill = "white_wolf_kill"
	ActionSeerInspect   = "seer_inspect"
	ActionProtect       = "protect"
	ActionWitchHeal     = "witch_heal"
	ActionWitchPoison   = "witch_poison"
	ActionWitchPass     = "witch_pass"
	ActionCupidLink     = "cupid_link"
	ActionThiefSwap     = "thief_swap"
	ActionHunterShot    = "hunter_shot"
	ActionLynch         = "lynch"
	ActionCaptainElect  = "captain_elect"
	ActionDeath         = "death"
	ActionHeartbreak    = "heartbreak" // lover dies when their partner is killed
)

// Vote types in the game_vote table.
const (
	voteTypeWolfKill = "wolf_kill"
	voteTypeLynch    = "lynch"
	voteTypeCaptain  = "captain"
)

// recordResult reports whether a ledger write was fresh or a replay.
// Duplicates are surfaced distinctly so callers can suppress repeated
// confirmations instead of announcing the action twice.
type recordResult struct {
	Applied   bool
	Duplicate bool
}

// recordOnce writes a ledger entry with exactly-once semantics per
// (game, round, actionType, actor). Safe under concurrent, retried or
// out-of-order triggers: the row's UNIQUE constraint decides, inside the
// gate's transaction.
func (s *Store) recordOnce(tx *sqlx.Tx, gameKey string, round int, actionType string, actorID, targetID int64, visibility, description string) (recordResult, error) {
	applied, err := s.addNightActionOnce(tx, GameAction{
		GameKey:     gameKey,
		Round:       round,
		ActionType:  actionType,
		ActorID:     actorID,
		TargetID:    targetID,
		Visibility:  visibility,
		Description: description,
	})
	if err != nil {
		return recordResult{}, err
	}
	return recordResult{Applied: applied, Duplicate: !applied}, nil
}
