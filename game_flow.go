package main

import "fmt"

// subPhaseApplies reports whether a sub-phase should run in the current
// state: its role must have a living holder, and first-night-only stages
// (thief, cupid) never come back after night one.
func subPhaseApplies(g *Game, sp SubPhase) bool {
	switch sp {
	case SubPhaseThief:
		return g.DayCount == 0 && g.hasAliveRole(RoleThief) && g.ThiefCards[0] != ""
	case SubPhaseCupid:
		return g.DayCount == 0 && g.hasAliveRole(RoleCupid) && g.Lovers[0] == 0
	case SubPhaseProtector:
		return g.hasAliveRole(RoleProtector)
	case SubPhaseWolves:
		return len(g.aliveWolfIDs()) > 0
	case SubPhaseWhiteWolf:
		return g.hasAliveRole(RoleWhiteWolf)
	case SubPhaseWitch:
		return g.hasAliveRole(RoleWitch) && (!g.WitchHealUsed || !g.WitchPoisonUsed)
	case SubPhaseSeer:
		return g.hasAliveRole(RoleSeer)
	case SubPhaseCaptainVote:
		captain := g.player(g.CaptainID)
		return captain == nil || !captain.Alive
	case SubPhaseWake, SubPhaseDeliberation, SubPhaseVote:
		return true
	}
	return false
}

func nextInOrder(g *Game, order []SubPhase, from SubPhase) SubPhase {
	start := 0
	for i, sp := range order {
		if sp == from {
			start = i + 1
			break
		}
	}
	for _, sp := range order[start:] {
		if subPhaseApplies(g, sp) {
			return sp
		}
	}
	return SubPhaseNone
}

// enterSubPhase moves the game to a sub-phase, validating against the
// transition table, setting up per-stage vote state, and announcing the
// change. Vote stages snapshot their elector set here; the snapshot is fixed
// for both tally rounds.
func enterSubPhase(mc *mutation, sp SubPhase) error {
	g := mc.g
	if !isValidTransition(g.SubPhase, sp) {
		return fmt.Errorf("illegal sub-phase transition %s -> %s", g.SubPhase, sp)
	}
	g.SubPhase = sp

	switch sp {
	case SubPhaseWolves:
		g.WolfVotes = newVoteState(g.aliveWolfIDs())
	case SubPhaseCaptainVote:
		g.DayVotes = newVoteState(g.aliveIDs())
	case SubPhaseVote:
		g.DayVotes = newVoteState(g.aliveIDs())
		if captain := g.player(g.CaptainID); captain != nil && captain.Alive {
			g.DayVotes.Weights[g.CaptainID] = 2
		}
	}

	if err := mc.m.store.updateGame(mc.tx, g); err != nil {
		return err
	}
	mc.emit(Event{Type: EventPhase, GameKey: g.Key, Phase: g.Phase, SubPhase: sp, Role: subPhaseRole(sp)})
	mc.rearmTimer()
	return nil
}

// beginNight opens a night: clears the previous night's targets and walks to
// the first applicable sub-phase in wake order.
func beginNight(mc *mutation) error {
	g := mc.g
	if !isValidMainTransition(g.Phase, PhaseNight) {
		return fmt.Errorf("illegal phase transition %s -> %s", g.Phase, PhaseNight)
	}
	g.Phase = PhaseNight
	g.NightVictim = 0
	g.WhiteWolfVictim = 0
	g.PoisonVictim = 0
	g.LastProtectedID = g.ProtectedID
	g.ProtectedID = 0
	g.DayVotes = nil

	first := SubPhaseNone
	for _, sp := range nightOrder {
		if subPhaseApplies(g, sp) {
			first = sp
			break
		}
	}
	if first == SubPhaseNone || first == SubPhaseWake {
		// No night role can act; degenerate but legal.
		return transitionToDay(mc)
	}
	g.SubPhase = SubPhaseNone
	return enterSubPhase(mc, first)
}

// advanceSubPhase moves past the current sub-phase to the next applicable
// one. Reaching WAKE at night resolves the night into the day transition;
// finishing the day's VOTE is handled by the lynch resolution, not here.
func advanceSubPhase(mc *mutation) error {
	g := mc.g
	switch g.Phase {
	case PhaseNight:
		next := nextInOrder(g, nightOrder, g.SubPhase)
		if next == SubPhaseWake || next == SubPhaseNone {
			return transitionToDay(mc)
		}
		return enterSubPhase(mc, next)
	case PhaseDay:
		next := nextInOrder(g, dayOrder, g.SubPhase)
		if next == SubPhaseNone {
			return beginNight(mc)
		}
		return enterSubPhase(mc, next)
	}
	return fmt.Errorf("cannot advance sub-phase in phase %s", g.Phase)
}

// killPlayer applies one death and everything it drags along: the ledger row,
// the death event with role reveal, the linked lover's collateral death, and
// the hunter's must-shoot suspension. Victory is NOT evaluated here; callers
// evaluate once the whole death cascade has settled.
func killPlayer(mc *mutation, victimID int64, actionType, description string) error {
	g := mc.g
	victim := g.player(victimID)
	if victim == nil || !victim.Alive {
		return nil
	}
	victim.Alive = false
	if err := mc.m.store.updatePlayer(mc.tx, g.Key, victim); err != nil {
		return err
	}
	if _, err := mc.m.store.recordOnce(mc.tx, g.Key, g.round(), actionType, victimID, victimID, VisibilityPublic, description); err != nil {
		return err
	}
	mc.emit(Event{Type: EventDeath, GameKey: g.Key, TargetID: victimID, Role: victim.Role, IsWolf: victim.Role.IsWolf(), Message: description})

	if victim.Role == RoleHunter && g.PendingHunterID == 0 {
		g.PendingHunterID = victimID
		if g.Phase == PhaseDay && g.SubPhase == SubPhaseVote {
			g.PendingHunterCause = "lynch"
		} else {
			g.PendingHunterCause = "night"
		}
		mc.emit(Event{Type: EventHunterWake, GameKey: g.Key, ActorID: victimID})
	}

	if loverID := g.loverOf(victimID); loverID != 0 {
		lover := g.player(loverID)
		if lover != nil && lover.Alive {
			desc := fmt.Sprintf("%s died of a broken heart", lover.Username)
			if err := killPlayer(mc, loverID, ActionHeartbreak, desc); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkWinner evaluates victory in fixed precedence: the lover pair standing
// alone, then wolves eliminated, then villagers eliminated. Lovers go first,
// so a surviving wolf-and-lover pair is a lovers win, not a wolves win.
func checkWinner(g *Game) string {
	alive := g.alivePlayers()
	if g.Lovers[0] != 0 && len(alive) == 2 {
		l1, l2 := g.player(g.Lovers[0]), g.player(g.Lovers[1])
		if l1 != nil && l1.Alive && l2 != nil && l2.Alive {
			return "lovers"
		}
	}
	wolves, villagers := 0, 0
	for _, p := range alive {
		if p.Role.IsWolf() {
			wolves++
		} else {
			villagers++
		}
	}
	if wolves == 0 {
		return "village"
	}
	if villagers == 0 {
		return "wolves"
	}
	return ""
}

// maybeEndGame evaluates victory and, on a win, archives the game and tears
// it down. Returns true when the game ended.
func maybeEndGame(mc *mutation) (bool, error) {
	g := mc.g
	winner := checkWinner(g)
	if winner == "" {
		return false, nil
	}
	g.Winner = winner
	g.Phase = PhaseEnded
	g.SubPhase = SubPhaseEnded
	if err := mc.m.store.saveGameHistory(mc.tx, g); err != nil {
		return false, err
	}
	if err := mc.m.store.deleteGame(mc.tx, g.Key); err != nil {
		return false, err
	}
	mc.removeGame()
	mc.emit(Event{Type: EventVictory, GameKey: g.Key, Winner: winner})
	return true, nil
}

// transitionToDay resolves the night's accumulated targets into deaths and
// opens the day. The protector's guard cancels the wolves' kill; the witch's
// heal already cleared it inside her own action. Poison ignores protection.
// If a hunter died, the day halts at WAKE until the shot resolves.
func transitionToDay(mc *mutation) error {
	g := mc.g
	if !isValidMainTransition(g.Phase, PhaseDay) {
		return fmt.Errorf("illegal phase transition %s -> %s", g.Phase, PhaseDay)
	}

	var victims []int64
	if g.NightVictim != 0 && g.NightVictim != g.ProtectedID {
		victims = append(victims, g.NightVictim)
	}
	if g.WhiteWolfVictim != 0 && g.WhiteWolfVictim != g.ProtectedID {
		victims = append(victims, g.WhiteWolfVictim)
	}
	if g.PoisonVictim != 0 {
		victims = append(victims, g.PoisonVictim)
	}

	g.Phase = PhaseDay
	g.DayCount++
	g.SubPhase = SubPhaseWake

	anyDeath := false
	for _, id := range victims {
		victim := g.player(id)
		if victim == nil || !victim.Alive {
			continue
		}
		anyDeath = true
		desc := fmt.Sprintf("%s did not survive the night", victim.Username)
		if err := killPlayer(mc, id, ActionDeath, desc); err != nil {
			return err
		}
	}
	if !anyDeath {
		mc.emit(Event{Type: EventNoKill, GameKey: g.Key, Message: "nobody died tonight"})
	}

	if err := mc.m.store.updateGame(mc.tx, g); err != nil {
		return err
	}
	mc.emit(Event{Type: EventPhase, GameKey: g.Key, Phase: PhaseDay, SubPhase: SubPhaseWake})

	if g.PendingHunterID != 0 {
		// Day stays at WAKE; the hunter's shot resumes the flow.
		mc.rearmTimer()
		return nil
	}
	return finishDayStart(mc)
}

// finishDayStart runs once the night's death cascade is complete: victory
// check, then on to the first day stage.
func finishDayStart(mc *mutation) error {
	ended, err := maybeEndGame(mc)
	if err != nil || ended {
		return err
	}
	return advanceSubPhase(mc)
}

// resolveLynchDeath finishes the day after a lynch settled (or failed): the
// hunter suspension is honored, then victory, then the next night.
func resolveLynchDeath(mc *mutation) error {
	g := mc.g
	if g.PendingHunterID != 0 {
		mc.rearmTimer()
		return nil
	}
	ended, err := maybeEndGame(mc)
	if err != nil || ended {
		return err
	}
	return beginNight(mc)
}
