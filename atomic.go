package main

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// fifoLock is a mutex that grants entry in strict arrival order. Ticket
// numbers are handed out under the inner mutex; a waiter runs only when its
// ticket comes up, so two near-simultaneous commands for the same game are
// serialized first-come first-served instead of racing on wakeup order.
type fifoLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newFifoLock() *fifoLock {
	l := &fifoLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *fifoLock) lock() {
	l.mu.Lock()
	t := l.next
	l.next++
	for t != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *fifoLock) unlock() {
	l.mu.Lock()
	l.serving++
	l.cond.Broadcast()
	l.mu.Unlock()
}

// mutationGate holds one fifoLock per game key. Locks are created on first
// use and kept for the life of the process; a game key is a chat channel, so
// the map stays small.
type mutationGate struct {
	mu    sync.Mutex
	locks map[string]*fifoLock
}

func newMutationGate() *mutationGate {
	return &mutationGate{locks: make(map[string]*fifoLock)}
}

func (gt *mutationGate) forKey(key string) *fifoLock {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	l, ok := gt.locks[key]
	if !ok {
		l = newFifoLock()
		gt.locks[key] = l
	}
	return l
}

type whisper struct {
	playerID int64
	ev       Event
}

// mutation is the working context handed to a gate section: the live game,
// the open transaction, and the outbox of events to publish after commit.
// Nothing written to the outbox is visible to players unless the section
// commits.
type mutation struct {
	m  *Manager
	g  *Game
	tx *sqlx.Tx

	events   []Event
	whispers []whisper
	armTimer bool
	removed  bool
}

func (mc *mutation) emit(ev Event) {
	mc.events = append(mc.events, ev)
}

func (mc *mutation) whisperTo(playerID int64, ev Event) {
	ev.ToPlayerID = playerID
	mc.whispers = append(mc.whispers, whisper{playerID: playerID, ev: ev})
}

// removeGame marks the game for registry removal after commit. Used by the
// end-of-game path once history is saved and the rows are deleted.
func (mc *mutation) removeGame() {
	mc.removed = true
}

// rearmTimer asks for the sub-phase deadline timer to be reset after commit.
// Arming happens post-commit so a rolled-back mutation leaves no timer for a
// state that never became real.
func (mc *mutation) rearmTimer() {
	mc.armTimer = true
}

// runAtomic executes fn under the game's FIFO lock with all-or-nothing
// semantics: memory and the database either both advance or both stay put.
// fn mutates the in-memory game freely and writes through mc.tx; on any
// error, panic or commit failure the pre-section snapshot is restored and
// the transaction rolled back. Events queue in the mutation outbox and are
// published only after a successful commit, with the lock already released:
// a slow client connection must not stall the next action on the same game.
func (m *Manager) runAtomic(key string, fn func(mc *mutation) (Outcome, error)) Outcome {
	out, mc := m.runGated(key, fn)
	if mc == nil {
		return out
	}
	for _, ev := range mc.events {
		m.notifier.Publish(key, ev)
	}
	for _, w := range mc.whispers {
		if err := m.notifier.Whisper(key, w.playerID, w.ev); err != nil {
			logError("whisper "+key, err)
		}
	}
	if !mc.removed {
		for _, ev := range mc.events {
			if ev.Type == EventDeath {
				go m.maybeNarrate(key)
				break
			}
		}
	}
	return out
}

// runGated holds the game's lock for the mutation, the commit and the
// registry/timer bookkeeping only. The returned mutation carries the outbox
// for runAtomic to drain; it is nil when nothing was committed.
func (m *Manager) runGated(key string, fn func(mc *mutation) (Outcome, error)) (Outcome, *mutation) {
	lk := m.gate.forKey(key)
	lk.lock()
	defer lk.unlock()

	g := m.lookup(key)
	if g == nil {
		return Outcome{Status: StatusRejected, Code: ReasonNoGame, Message: "no game running in this channel"}, nil
	}

	snap := g.clone()
	g.atomicActive.Store(true)
	defer g.atomicActive.Store(false)

	tx, err := m.store.begin()
	if err != nil {
		return internalOutcome("begin transaction", err), nil
	}

	mc := &mutation{m: m, g: g, tx: tx}
	out, err := runSection(fn, mc)
	if err != nil {
		tx.Rollback()
		m.replace(key, snap)
		if rej, ok := asReject(err); ok {
			return Outcome{Status: StatusRejected, Code: rej.Code, Message: rej.Message}, nil
		}
		return internalOutcome("mutation "+key, err), nil
	}

	if err := tx.Commit(); err != nil {
		m.replace(key, snap)
		return internalOutcome("commit "+key, err), nil
	}

	if mc.removed {
		m.timers.cancel(key)
		m.remove(key)
	} else if mc.armTimer {
		m.timers.arm(key, g)
	}
	return out, mc
}

// runSection calls fn, converting a panic into an error so the gate's
// rollback path runs instead of the process dying mid-mutation.
func runSection(fn func(mc *mutation) (Outcome, error), mc *mutation) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in mutation: %v", r)
		}
	}()
	return fn(mc)
}
