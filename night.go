package main

import "fmt"

// requireNightActor checks the shared night preconditions: right phase, right
// sub-phase, a living actor holding the sub-phase's role.
func requireNightActor(g *Game, actorID int64, role Role, sp SubPhase) (*Player, error) {
	if g.Phase != PhaseNight {
		return nil, reject(ReasonWrongPhase, "it is not night")
	}
	if g.SubPhase != sp {
		return nil, reject(ReasonWrongSubPhase, "the %s is not awake right now", role)
	}
	p := g.player(actorID)
	if p == nil {
		return nil, reject(ReasonNotInGame, "you are not in this game")
	}
	if !p.Alive {
		return nil, reject(ReasonDeadActor, "the dead do not act")
	}
	if p.Role != role {
		return nil, reject(ReasonNotYourRole, "you are not the %s", role)
	}
	return p, nil
}

func requireAliveTarget(g *Game, targetID int64) (*Player, error) {
	t := g.player(targetID)
	if t == nil {
		return nil, reject(ReasonInvalidTarget, "no such player in this game")
	}
	if !t.Alive {
		return nil, reject(ReasonInvalidTarget, "%s is already dead", t.Username)
	}
	return t, nil
}

// WolfVote casts or changes a wolf's kill vote. The pack needs a strict
// majority of its living members; a first full round without one gets a
// second round, and a second failure means nobody dies tonight.
func (m *Manager) WolfVote(gameKey string, voterID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.Phase != PhaseNight || g.SubPhase != SubPhaseWolves {
			return Outcome{}, reject(ReasonWrongSubPhase, "the wolves are not awake right now")
		}
		voter := g.player(voterID)
		if voter == nil {
			return Outcome{}, reject(ReasonNotInGame, "you are not in this game")
		}
		if !voter.Alive {
			return Outcome{}, reject(ReasonDeadActor, "the dead do not vote")
		}
		if !voter.Role.IsWolf() {
			return Outcome{}, reject(ReasonNotYourRole, "only wolves vote at this hour")
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if target.Role.IsWolf() {
			return Outcome{}, reject(ReasonInvalidTarget, "the pack does not eat its own")
		}
		if g.WolfVotes == nil || g.WolfVotes.Resolved {
			return Outcome{}, reject(ReasonAlreadyResolved, "the kill is already decided")
		}

		votes, _, ok := g.WolfVotes.registerVote(voterID, targetID)
		if !ok {
			return Outcome{}, reject(ReasonNotInGame, "you are not part of tonight's vote")
		}
		changed, err := m.store.addVoteIfChanged(mc.tx, gameKey, g.round(), voteTypeWolfKill, voterID, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if !changed {
			return duplicateOutcome("your vote already stands on " + target.Username), nil
		}

		switch result := g.WolfVotes.tally(); result.Action {
		case tallyKill:
			g.NightVictim = result.TargetID
			if _, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWolfKill, 0, result.TargetID,
				VisibilityWolves, fmt.Sprintf("the pack chose %s", g.player(result.TargetID).Username)); err != nil {
				return Outcome{}, err
			}
			for _, wolfID := range g.aliveWolfIDs() {
				mc.whisperTo(wolfID, Event{Type: EventKill, GameKey: gameKey, TargetID: result.TargetID, Votes: result.Votes})
			}
			if err := advanceSubPhase(mc); err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: StatusOK, TargetID: result.TargetID, Votes: result.Votes}, nil
		case tallyAdvanceRound:
			g.WolfVotes.advanceRound()
			if err := m.store.clearVotes(mc.tx, gameKey, g.round(), voteTypeWolfKill); err != nil {
				return Outcome{}, err
			}
			if err := m.store.updateGame(mc.tx, g); err != nil {
				return Outcome{}, err
			}
			for _, wolfID := range g.aliveWolfIDs() {
				mc.whisperTo(wolfID, Event{Type: EventAdvanceRound, GameKey: gameKey, Message: "no majority, vote again"})
			}
			return okOutcome(), nil
		case tallyNoKill:
			g.NightVictim = 0
			if _, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWolfKill, 0, 0,
				VisibilityWolves, "the pack could not agree"); err != nil {
				return Outcome{}, err
			}
			for _, wolfID := range g.aliveWolfIDs() {
				mc.whisperTo(wolfID, Event{Type: EventNoKill, GameKey: gameKey, Message: "the pack could not agree"})
			}
			if err := advanceSubPhase(mc); err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: StatusOK}, nil
		default:
			return Outcome{Status: StatusOK, TargetID: targetID, Votes: votes}, nil
		}
	})
}

// WhiteWolfKill is the white wolf's solo kill of an ordinary pack member. No
// tally; one decision, once per night, routed through the ledger.
func (m *Manager) WhiteWolfKill(gameKey string, actorID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		actor, err := requireNightActor(g, actorID, RoleWhiteWolf, SubPhaseWhiteWolf)
		if err != nil {
			return Outcome{}, err
		}
		if targetID == actor.ID {
			return Outcome{}, reject(ReasonSelfTarget, "you cannot devour yourself")
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if !target.Role.IsWolf() || target.Role == RoleWhiteWolf {
			return Outcome{}, reject(ReasonInvalidTarget, "only an ordinary wolf can be devoured")
		}

		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWhiteWolfKill, actorID, targetID,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you have already chosen tonight"), nil
		}
		g.WhiteWolfVictim = targetID
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: targetID}, nil
	})
}

// WhiteWolfPass lets the white wolf spare the pack tonight.
func (m *Manager) WhiteWolfPass(gameKey string, actorID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleWhiteWolf, SubPhaseWhiteWolf); err != nil {
			return Outcome{}, err
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWhiteWolfKill, actorID, 0,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you have already chosen tonight"), nil
		}
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return okOutcome(), nil
	})
}

// WitchHeal spends the single heal potion on tonight's wolf victim. The
// potion claim is a conditional update inside the transaction, so a doubled
// trigger cannot spend it twice.
func (m *Manager) WitchHeal(gameKey string, actorID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleWitch, SubPhaseWitch); err != nil {
			return Outcome{}, err
		}
		if g.NightVictim == 0 {
			return Outcome{}, reject(ReasonInvalidTarget, "there is nobody to save tonight")
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWitchHeal, actorID, g.NightVictim,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you already used your potion tonight"), nil
		}
		claimed, err := m.store.useWitchPotionIfAvailable(mc.tx, gameKey, "heal")
		if err != nil {
			return Outcome{}, err
		}
		if !claimed {
			return Outcome{}, reject(ReasonNoPotion, "the heal potion is spent")
		}
		saved := g.NightVictim
		g.WitchHealUsed = true
		g.NightVictim = 0
		if err := m.store.updateGame(mc.tx, g); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: saved}, nil
	})
}

// WitchPoison spends the single poison potion on a living player.
func (m *Manager) WitchPoison(gameKey string, actorID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleWitch, SubPhaseWitch); err != nil {
			return Outcome{}, err
		}
		if targetID == actorID {
			return Outcome{}, reject(ReasonSelfTarget, "you cannot poison yourself")
		}
		if _, err := requireAliveTarget(g, targetID); err != nil {
			return Outcome{}, err
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWitchPoison, actorID, targetID,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you already used your poison tonight"), nil
		}
		claimed, err := m.store.useWitchPotionIfAvailable(mc.tx, gameKey, "poison")
		if err != nil {
			return Outcome{}, err
		}
		if !claimed {
			return Outcome{}, reject(ReasonNoPotion, "the poison potion is spent")
		}
		g.WitchPoisonUsed = true
		g.PoisonVictim = targetID
		if err := m.store.updateGame(mc.tx, g); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: targetID}, nil
	})
}

// WitchPass closes the witch's turn.
func (m *Manager) WitchPass(gameKey string, actorID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleWitch, SubPhaseWitch); err != nil {
			return Outcome{}, err
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionWitchPass, actorID, 0,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("your turn is already over"), nil
		}
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return okOutcome(), nil
	})
}

// SeerInspect reveals a living player's role to the seer, once per night.
// The result goes out as a private whisper after commit.
func (m *Manager) SeerInspect(gameKey string, actorID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleSeer, SubPhaseSeer); err != nil {
			return Outcome{}, err
		}
		if targetID == actorID {
			return Outcome{}, reject(ReasonSelfTarget, "you already know your own heart")
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionSeerInspect, actorID, targetID,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you have already looked tonight"), nil
		}
		mc.whisperTo(actorID, Event{Type: EventInspect, GameKey: gameKey, TargetID: targetID,
			Role: target.Role, IsWolf: target.Role.IsWolf()})
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: targetID}, nil
	})
}

// Protect guards one living player against the wolves for this night. The
// same player may not be guarded two nights in a row.
func (m *Manager) Protect(gameKey string, actorID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleProtector, SubPhaseProtector); err != nil {
			return Outcome{}, err
		}
		if _, err := requireAliveTarget(g, targetID); err != nil {
			return Outcome{}, err
		}
		if targetID == g.LastProtectedID {
			return Outcome{}, reject(ReasonInvalidTarget, "you guarded them last night")
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionProtect, actorID, targetID,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you have already chosen tonight"), nil
		}
		g.ProtectedID = targetID
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: targetID}, nil
	})
}

// CupidLink binds two living players as lovers. One pair per game, set on
// the first night and never changed.
func (m *Manager) CupidLink(gameKey string, actorID, firstID, secondID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireNightActor(g, actorID, RoleCupid, SubPhaseCupid); err != nil {
			return Outcome{}, err
		}
		if g.Lovers[0] != 0 {
			return Outcome{}, reject(ReasonAlreadyResolved, "the lovers are already bound")
		}
		if firstID == secondID {
			return Outcome{}, reject(ReasonInvalidTarget, "pick two different players")
		}
		first, err := requireAliveTarget(g, firstID)
		if err != nil {
			return Outcome{}, err
		}
		second, err := requireAliveTarget(g, secondID)
		if err != nil {
			return Outcome{}, err
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionCupidLink, actorID, firstID,
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("your arrow is already spent"), nil
		}
		g.Lovers = [2]int64{firstID, secondID}
		first.InLove = true
		second.InLove = true
		if err := m.store.updatePlayer(mc.tx, gameKey, first); err != nil {
			return Outcome{}, err
		}
		if err := m.store.updatePlayer(mc.tx, gameKey, second); err != nil {
			return Outcome{}, err
		}
		mc.whisperTo(firstID, Event{Type: EventLovers, GameKey: gameKey, TargetID: secondID})
		mc.whisperTo(secondID, Event{Type: EventLovers, GameKey: gameKey, TargetID: firstID})
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return okOutcome(), nil
	})
}

// ThiefChoose lets the thief take one of the two spare deal cards, or keep
// the thief card with choice 0. First night only.
func (m *Manager) ThiefChoose(gameKey string, actorID int64, choice int) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		actor, err := requireNightActor(g, actorID, RoleThief, SubPhaseThief)
		if err != nil {
			return Outcome{}, err
		}
		if choice < 0 || choice > 2 {
			return Outcome{}, reject(ReasonInvalidTarget, "choose card 1, card 2, or 0 to keep")
		}
		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionThiefSwap, actorID, int64(choice),
			VisibilityActor, "")
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("you have already chosen"), nil
		}
		if choice > 0 {
			taken := g.ThiefCards[choice-1]
			g.ThiefCards[choice-1] = actor.Role
			actor.Role = taken
			if err := m.store.updatePlayer(mc.tx, gameKey, actor); err != nil {
				return Outcome{}, err
			}
			mc.whisperTo(actorID, Event{Type: EventPhase, GameKey: gameKey, Role: taken,
				Message: "you are now the " + string(taken)})
		}
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return okOutcome(), nil
	})
}
