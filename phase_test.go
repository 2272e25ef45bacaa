package main

import "testing"

func TestForwardSubPhaseTransitionsAreLegal(t *testing.T) {
	cases := []struct{ from, to SubPhase }{
		{SubPhaseThief, SubPhaseCupid},
		{SubPhaseCupid, SubPhaseWolves},
		{SubPhaseProtector, SubPhaseWolves},
		{SubPhaseWolves, SubPhaseWhiteWolf},
		{SubPhaseWolves, SubPhaseWitch},
		{SubPhaseWolves, SubPhaseSeer},
		{SubPhaseWolves, SubPhaseWake},
		{SubPhaseWitch, SubPhaseSeer},
		{SubPhaseSeer, SubPhaseWake},
		{SubPhaseWake, SubPhaseCaptainVote},
		{SubPhaseWake, SubPhaseVote},
		{SubPhaseCaptainVote, SubPhaseDeliberation},
		{SubPhaseDeliberation, SubPhaseVote},
		{SubPhaseVote, SubPhaseThief},
		{SubPhaseVote, SubPhaseWolves},
	}
	for _, c := range cases {
		if !isValidTransition(c.from, c.to) {
			t.Errorf("transition %s -> %s should be legal", c.from, c.to)
		}
	}
}

func TestBackwardSubPhaseTransitionsAreRejected(t *testing.T) {
	cases := []struct{ from, to SubPhase }{
		{SubPhaseSeer, SubPhaseWolves},
		{SubPhaseWitch, SubPhaseWolves},
		{SubPhaseWake, SubPhaseSeer},
		{SubPhaseVote, SubPhaseCaptainVote},
		{SubPhaseDeliberation, SubPhaseCaptainVote},
		{SubPhaseWolves, SubPhaseProtector},
	}
	for _, c := range cases {
		if isValidTransition(c.from, c.to) {
			t.Errorf("transition %s -> %s should be rejected", c.from, c.to)
		}
	}
}

func TestEndedIsReachableFromAnywhere(t *testing.T) {
	froms := []SubPhase{SubPhaseNone, SubPhaseThief, SubPhaseWolves, SubPhaseWake, SubPhaseVote, SubPhase("garbage")}
	for _, from := range froms {
		if !isValidTransition(from, SubPhaseEnded) {
			t.Errorf("transition %s -> ended should always be legal", from)
		}
	}
}

func TestSelfTransitionIsIdempotent(t *testing.T) {
	for _, sp := range nightOrder {
		if !isValidTransition(sp, sp) {
			t.Errorf("self transition %s -> %s should be legal", sp, sp)
		}
	}
}

func TestUnknownFromFollowsBootstrapPolicy(t *testing.T) {
	got := isValidTransition(SubPhase("not_a_sub_phase"), SubPhaseWolves)
	if got != permissiveBootstrap {
		t.Errorf("transition from unknown sub-phase = %v, want %v per bootstrap policy", got, permissiveBootstrap)
	}
	got = isValidTransition(SubPhaseNone, SubPhaseSeer)
	if got != permissiveBootstrap {
		t.Errorf("transition from unset sub-phase = %v, want %v per bootstrap policy", got, permissiveBootstrap)
	}
}

func TestMainPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseLobby, PhaseNight, true},
		{PhaseNight, PhaseDay, true},
		{PhaseDay, PhaseNight, true},
		{PhaseNight, PhaseEnded, true},
		{PhaseDay, PhaseEnded, true},
		{PhaseEnded, PhaseNight, false},
		{PhaseEnded, PhaseDay, false},
		{PhaseDay, PhaseLobby, false},
	}
	for _, c := range cases {
		if got := isValidMainTransition(c.from, c.to); got != c.want {
			t.Errorf("main transition %s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
