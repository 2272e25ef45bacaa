package main

import (
	"sync"
	"time"
)

// timerSet holds at most one pending deadline timer per game. Arming replaces
// the previous timer; firing re-enters the mutation gate as a forced advance
// that checks the sub-phase is still the one the timer was armed for.
type timerSet struct {
	mu     sync.Mutex
	m      *Manager
	timers map[string]*time.Timer
}

func newTimerSet(m *Manager) *timerSet {
	return &timerSet{m: m, timers: make(map[string]*time.Timer)}
}

func (t *timerSet) arm(key string, g *Game) {
	d := t.m.cfg.subPhaseDuration(g.Phase, g.SubPhase)
	if g.PendingHunterID != 0 {
		// A suspended hunter gets the shot window no matter which
		// sub-phase the suspension froze.
		d = time.Duration(t.m.cfg.HunterSeconds) * time.Second
	}
	if d <= 0 {
		t.cancel(key)
		return
	}
	phase, sp := g.Phase, g.SubPhase
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[key]; ok {
		old.Stop()
	}
	t.timers[key] = time.AfterFunc(d, func() {
		t.m.ForceAdvance(key, phase, sp)
	})
}

func (t *timerSet) cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[key]; ok {
		old.Stop()
		delete(t.timers, key)
	}
}

// ForceAdvance is the deadline handler: whoever was supposed to act slept
// through their turn. The expected phase pair guards against stale timers;
// if the game already moved on, the tick is a no-op.
func (m *Manager) ForceAdvance(gameKey string, expectedPhase Phase, expectedSub SubPhase) Outcome {
	return m.runAtomic(gameKey, func(mc *mutation) (Outcome, error) {
		g := mc.g
		if g.Phase != expectedPhase || g.SubPhase != expectedSub {
			// Phase changed under the timer.
			DebugLog("stale deadline tick for %s at %s/%s", gameKey, expectedPhase, expectedSub)
			return okOutcome(), nil
		}
		if g.PendingHunterID != 0 {
			return okOutcome(), forfeitHunterShot(mc)
		}
		if g.Phase == PhaseDay && g.SubPhase == SubPhaseVote {
			mc.emit(Event{Type: EventNoLynch, GameKey: gameKey, Message: "the vote timed out, nobody is lynched"})
			return okOutcome(), beginNight(mc)
		}
		return okOutcome(), advanceSubPhase(mc)
	})
}
