package main

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// stallNotifier wedges its first broadcast until released, standing in for a
// client connection that stopped draining its socket.
type stallNotifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (n *stallNotifier) Publish(gameKey string, ev Event) {
	stalled := false
	n.once.Do(func() { stalled = true })
	if stalled {
		close(n.entered)
		<-n.release
	}
}

func (n *stallNotifier) Whisper(gameKey string, playerID int64, ev Event) error { return nil }

func TestRollbackRestoresMemoryOnFailure(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	before := game(t, m, "den").clone()
	out := m.runAtomic("den", func(mc *mutation) (Outcome, error) {
		mc.g.player(4).Alive = false
		mc.g.SubPhase = SubPhaseSeer
		if err := m.store.updatePlayer(mc.tx, "den", mc.g.player(4)); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, errors.New("persistence blew up")
	})
	requireStatus(t, out, StatusError)

	after := game(t, m, "den")
	if !after.player(4).Alive {
		t.Fatal("player 4 should be alive again after rollback")
	}
	if after.SubPhase != before.SubPhase {
		t.Fatalf("sub-phase = %s, want %s restored", after.SubPhase, before.SubPhase)
	}

	// And the database never saw the update either.
	games, err := m.store.loadGames()
	if err != nil {
		t.Fatalf("loadGames: %v", err)
	}
	if len(games) != 1 || !games[0].player(4).Alive {
		t.Fatal("database should hold the pre-mutation state")
	}
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	out := m.SeerInspect("den", 2, 4) // wolves are awake, not the seer
	requireStatus(t, out, StatusRejected)
	if out.Code != ReasonWrongSubPhase {
		t.Fatalf("code = %s, want %s", out.Code, ReasonWrongSubPhase)
	}
	requireSubPhase(t, m, "den", SubPhaseWolves)
}

func TestPanicInMutationRollsBack(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	out := m.runAtomic("den", func(mc *mutation) (Outcome, error) {
		mc.g.player(5).Alive = false
		panic("handler bug")
	})
	requireStatus(t, out, StatusError)
	requireAlive(t, m, "den", 5, true)
}

func TestStalledBroadcastDoesNotHoldTheGameLock(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleVillager})
	sn := &stallNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	m.notifier = sn

	// The lone wolf's vote resolves the kill and queues a phase broadcast,
	// which the notifier then refuses to finish.
	first := make(chan Outcome, 1)
	go func() { first <- m.WolfVote("den", 1, 3) }()
	<-sn.entered

	second := make(chan Outcome, 1)
	go func() { second <- m.SeerInspect("den", 2, 1) }()
	select {
	case out := <-second:
		requireStatus(t, out, StatusOK)
	case <-time.After(2 * time.Second):
		t.Fatal("the next action should run while the broadcast is stuck")
	}

	close(sn.release)
	requireStatus(t, <-first, StatusOK)
}

func TestConcurrentHunterShotResolvesToOneKill(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleWerewolf, RoleHunter, RoleSeer, RoleVillager, RoleVillager})

	requireStatus(t, m.WolfVote("den", 1, 3), StatusOK)
	requireStatus(t, m.WolfVote("den", 2, 3), StatusOK)
	requireSubPhase(t, m, "den", SubPhaseSeer)
	requireStatus(t, m.SeerInspect("den", 4, 1), StatusOK)

	// The hunter died at dawn; the day is suspended until the shot.
	g := game(t, m, "den")
	if g.Phase != PhaseDay || g.SubPhase != SubPhaseWake {
		t.Fatalf("phase = %s/%s, want day/wake suspension", g.Phase, g.SubPhase)
	}
	if g.PendingHunterID != 3 {
		t.Fatalf("pending hunter = %d, want 3", g.PendingHunterID)
	}

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = m.HunterShoot("den", 3, 5)
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, out := range outcomes {
		switch out.Status {
		case StatusOK:
			okCount++
		case StatusRejected, StatusDuplicate:
		default:
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
	if okCount != 1 {
		t.Fatalf("applied shots = %d, want exactly 1 (outcomes: %+v)", okCount, outcomes)
	}

	requireAlive(t, m, "den", 5, false)
	shots, err := m.store.actionsFor("den", 1, ActionHunterShot)
	if err != nil {
		t.Fatalf("actionsFor: %v", err)
	}
	if len(shots) != 1 {
		t.Fatalf("hunter shot ledger rows = %d, want exactly 1", len(shots))
	}

	// The suspension lifted and the day moved on to the captain election.
	requireSubPhase(t, m, "den", SubPhaseCaptainVote)
}

func TestConcurrentJoinsAllLand(t *testing.T) {
	m, _ := newTestManager(t)
	requireStatus(t, m.CreateGame("den", 1, "host"), StatusOK)

	var wg sync.WaitGroup
	for i := int64(2); i <= 9; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.Join("den", id, "player")
		}(i)
	}
	wg.Wait()

	if got := len(game(t, m, "den").Players); got != 9 {
		t.Fatalf("players = %d, want 9", got)
	}
	games, err := m.store.loadGames()
	if err != nil {
		t.Fatalf("loadGames: %v", err)
	}
	if got := len(games[0].Players); got != 9 {
		t.Fatalf("persisted players = %d, want 9", got)
	}
}

func TestFifoLockIsMutuallyExclusive(t *testing.T) {
	lk := newFifoLock()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk.lock()
			counter++
			lk.unlock()
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}
