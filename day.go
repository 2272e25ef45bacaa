package main

import "fmt"

func requireDayVoter(g *Game, voterID int64, sp SubPhase) (*Player, error) {
	if g.Phase != PhaseDay {
		return nil, reject(ReasonWrongPhase, "it is not day")
	}
	if g.SubPhase != sp {
		return nil, reject(ReasonWrongSubPhase, "there is no vote open right now")
	}
	p := g.player(voterID)
	if p == nil {
		return nil, reject(ReasonNotInGame, "you are not in this game")
	}
	if !p.Alive {
		return nil, reject(ReasonDeadActor, "the dead do not vote")
	}
	return p, nil
}

// DayVote casts or changes a lynch vote. The captain's vote counts double.
// A first full round without a strict majority gets a second round; a second
// failure means nobody is lynched today.
func (m *Manager) DayVote(gameKey string, voterID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireDayVoter(g, voterID, SubPhaseVote); err != nil {
			return Outcome{}, err
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if g.DayVotes == nil || g.DayVotes.Resolved {
			return Outcome{}, reject(ReasonAlreadyResolved, "today's vote is already decided")
		}

		votes, _, ok := g.DayVotes.registerVote(voterID, targetID)
		if !ok {
			return Outcome{}, reject(ReasonNotInGame, "you are not part of today's vote")
		}
		changed, err := m.store.addVoteIfChanged(mc.tx, gameKey, g.round(), voteTypeLynch, voterID, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if !changed {
			return duplicateOutcome("your vote already stands on " + target.Username), nil
		}

		switch result := g.DayVotes.tally(); result.Action {
		case tallyKill:
			lynched := g.player(result.TargetID)
			mc.emit(Event{Type: EventLynch, GameKey: gameKey, TargetID: result.TargetID,
				Role: lynched.Role, IsWolf: lynched.Role.IsWolf(), Votes: result.Votes})
			desc := fmt.Sprintf("the village lynched %s, who was the %s", lynched.Username, lynched.Role)
			if err := killPlayer(mc, result.TargetID, ActionLynch, desc); err != nil {
				return Outcome{}, err
			}
			if err := m.store.updateGame(mc.tx, g); err != nil {
				return Outcome{}, err
			}
			if err := resolveLynchDeath(mc); err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: StatusOK, TargetID: result.TargetID, Votes: result.Votes}, nil
		case tallyAdvanceRound:
			g.DayVotes.advanceRound()
			if err := m.store.clearVotes(mc.tx, gameKey, g.round(), voteTypeLynch); err != nil {
				return Outcome{}, err
			}
			if err := m.store.updateGame(mc.tx, g); err != nil {
				return Outcome{}, err
			}
			mc.emit(Event{Type: EventAdvanceRound, GameKey: gameKey, Message: "no majority, the village votes again"})
			return okOutcome(), nil
		case tallyNoKill:
			if _, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionLynch, 0, 0,
				VisibilityPublic, "the village could not agree on a lynch"); err != nil {
				return Outcome{}, err
			}
			mc.emit(Event{Type: EventNoLynch, GameKey: gameKey, Message: "the village could not agree, nobody is lynched"})
			if err := beginNight(mc); err != nil {
				return Outcome{}, err
			}
			return Outcome{Status: StatusOK}, nil
		default:
			return Outcome{Status: StatusOK, TargetID: targetID, Votes: votes}, nil
		}
	})
}

// CaptainVote elects the captain by plurality: the election resolves once
// every living player has voted and the highest count takes the office, no
// majority needed. A tie between leaders goes to whoever joined the table
// first. If the deadline passes before everyone voted, the village goes
// without a captain for now and retries next day.
func (m *Manager) CaptainVote(gameKey string, voterID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if _, err := requireDayVoter(g, voterID, SubPhaseCaptainVote); err != nil {
			return Outcome{}, err
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if g.DayVotes == nil || g.DayVotes.Resolved {
			return Outcome{}, reject(ReasonAlreadyResolved, "the captain is already decided")
		}

		votes, _, ok := g.DayVotes.registerVote(voterID, targetID)
		if !ok {
			return Outcome{}, reject(ReasonNotInGame, "you are not part of this election")
		}
		changed, err := m.store.addVoteIfChanged(mc.tx, gameKey, g.round(), voteTypeCaptain, voterID, targetID)
		if err != nil {
			return Outcome{}, err
		}
		if !changed {
			return duplicateOutcome("your vote already stands on " + target.Username), nil
		}

		if !g.DayVotes.allVoted() {
			return Outcome{Status: StatusOK, TargetID: targetID, Votes: votes}, nil
		}

		leaders, top := g.DayVotes.leaders()
		g.DayVotes.Resolved = true
		electedID := leaders[0]
		if len(leaders) > 1 {
			tied := make(map[int64]bool, len(leaders))
			for _, id := range leaders {
				tied[id] = true
			}
			for _, p := range g.Players { // join order breaks the tie
				if tied[p.ID] {
					electedID = p.ID
					break
				}
			}
		}
		g.CaptainID = electedID
		elected := g.player(electedID)
		if _, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionCaptainElect, 0, electedID,
			VisibilityPublic, fmt.Sprintf("%s was elected captain", elected.Username)); err != nil {
			return Outcome{}, err
		}
		mc.emit(Event{Type: EventCaptain, GameKey: gameKey, TargetID: electedID, Votes: top})
		if err := advanceSubPhase(mc); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: electedID, Votes: top}, nil
	})
}

// HunterShoot fires the dead hunter's one-time retaliation shot. Phase
// advancement has been suspended since the hunter died; the shot (or its
// timeout) resumes it. The ledger row makes a doubled trigger resolve to
// exactly one kill.
func (m *Manager) HunterShoot(gameKey string, actorID, targetID int64) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.PendingHunterID == 0 || g.PendingHunterID != actorID {
			return Outcome{}, reject(ReasonNotYourRole, "no shot is owed by you")
		}
		if targetID == actorID {
			return Outcome{}, reject(ReasonSelfTarget, "you cannot shoot yourself")
		}
		target, err := requireAliveTarget(g, targetID)
		if err != nil {
			return Outcome{}, err
		}

		rec, err := m.store.recordOnce(mc.tx, gameKey, g.round(), ActionHunterShot, actorID, targetID,
			VisibilityPublic, fmt.Sprintf("the hunter took %s along", target.Username))
		if err != nil {
			return Outcome{}, err
		}
		if rec.Duplicate {
			return duplicateOutcome("your shot is already fired"), nil
		}

		cause := g.PendingHunterCause
		g.PendingHunterID = 0
		g.PendingHunterCause = ""

		desc := fmt.Sprintf("%s was shot by the hunter", target.Username)
		if err := killPlayer(mc, targetID, ActionDeath, desc); err != nil {
			return Outcome{}, err
		}
		if err := m.store.updateGame(mc.tx, g); err != nil {
			return Outcome{}, err
		}
		if err := resumeAfterHunter(mc, cause); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusOK, TargetID: targetID}, nil
	})
}

// resumeAfterHunter restarts the suspended flow once the shot (or its
// timeout) is resolved. The shot itself may have killed another hunter, in
// which case the suspension simply continues.
func resumeAfterHunter(mc *mutation, cause string) error {
	g := mc.g
	if g.PendingHunterID != 0 {
		mc.rearmTimer()
		return nil
	}
	if cause == "lynch" {
		ended, err := maybeEndGame(mc)
		if err != nil || ended {
			return err
		}
		return beginNight(mc)
	}
	return finishDayStart(mc)
}

// forfeitHunterShot drops an unfired shot when its deadline passes.
func forfeitHunterShot(mc *mutation) error {
	g := mc.g
	if g.PendingHunterID == 0 {
		return nil
	}
	actorID := g.PendingHunterID
	if _, err := mc.m.store.recordOnce(mc.tx, g.Key, g.round(), ActionHunterShot, actorID, 0,
		VisibilityPublic, "the hunter's shot went unfired"); err != nil {
		return err
	}
	cause := g.PendingHunterCause
	g.PendingHunterID = 0
	g.PendingHunterCause = ""
	if err := mc.m.store.updateGame(mc.tx, g); err != nil {
		return err
	}
	return resumeAfterHunter(mc, cause)
}
