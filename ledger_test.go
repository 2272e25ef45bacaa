package main

import "testing"

func TestNightActionLedgerDeduplicates(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	first, err := m.store.recordOnce(tx, "den", 1, ActionSeerInspect, 2, 4, VisibilityActor, "")
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := m.store.recordOnce(tx, "den", 1, ActionSeerInspect, 2, 5, VisibilityActor, "")
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if !first.Applied || first.Duplicate {
		t.Fatalf("first record = %+v, want applied", first)
	}
	if second.Applied || !second.Duplicate {
		t.Fatalf("second record = %+v, want duplicate", second)
	}

	actions, err := m.store.actionsFor("den", 1, ActionSeerInspect)
	if err != nil {
		t.Fatalf("actionsFor: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("ledger rows = %d, want exactly 1", len(actions))
	}
	if actions[0].TargetID != 4 {
		t.Fatalf("surviving row targets %d, want the first write's target 4", actions[0].TargetID)
	}
}

func TestSameActionInLaterRoundIsFresh(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := m.store.recordOnce(tx, "den", 1, ActionProtect, 3, 4, VisibilityActor, ""); err != nil {
		t.Fatalf("round 1: %v", err)
	}
	rec, err := m.store.recordOnce(tx, "den", 2, ActionProtect, 3, 5, VisibilityActor, "")
	if err != nil {
		t.Fatalf("round 2: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !rec.Applied {
		t.Fatal("same action in a later round should apply fresh")
	}
}

func TestWitchPotionClaimsExactlyOnce(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	claimed, err := m.store.useWitchPotionIfAvailable(tx, "den", "heal")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	again, err := m.store.useWitchPotionIfAvailable(tx, "den", "heal")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	poison, err := m.store.useWitchPotionIfAvailable(tx, "den", "poison")
	if err != nil {
		t.Fatalf("poison claim: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if !claimed {
		t.Fatal("first heal claim should succeed")
	}
	if again {
		t.Fatal("second heal claim should find the potion spent")
	}
	if !poison {
		t.Fatal("poison is a separate potion and should still be available")
	}
}

func TestVoteUpsertReportsChange(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	changed, err := m.store.addVoteIfChanged(tx, "den", 1, voteTypeWolfKill, 1, 4)
	if err != nil || !changed {
		t.Fatalf("first vote: changed=%v err=%v, want change", changed, err)
	}
	changed, err = m.store.addVoteIfChanged(tx, "den", 1, voteTypeWolfKill, 1, 4)
	if err != nil || changed {
		t.Fatalf("identical re-vote: changed=%v err=%v, want no change", changed, err)
	}
	changed, err = m.store.addVoteIfChanged(tx, "den", 1, voteTypeWolfKill, 1, 5)
	if err != nil || !changed {
		t.Fatalf("re-vote to new target: changed=%v err=%v, want change", changed, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestVoteUpsertSurfacesLookupFailures(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	tx, err := m.store.begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	// A vote row whose target cannot scan back as an id must fail the
	// upsert instead of silently overwriting it.
	if _, err := tx.Exec(`
		INSERT INTO game_vote (game_key, round, vote_type, voter_id, target_id)
		VALUES (?, ?, ?, ?, ?)`, "den", 1, voteTypeLynch, 1, "garbled"); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, err := m.store.addVoteIfChanged(tx, "den", 1, voteTypeLynch, 1, 4); err == nil {
		t.Fatal("a failed prior-vote lookup should be returned, not ignored")
	}
}

func TestRestoreRejectsUnknownRole(t *testing.T) {
	m, _ := newTestManager(t)
	setupGame(t, m, "den", []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager})

	if _, err := m.store.db.Exec(`
		UPDATE game_player SET role = 'ghoul'
		WHERE game_key = ? AND player_id = ?`, "den", 2); err != nil {
		t.Fatalf("corrupt role: %v", err)
	}
	if _, err := m.store.loadGames(); err == nil {
		t.Fatal("a stored role outside the deck should fail the restore")
	}
}
