package main

import "testing"

func TestMajorityThreshold(t *testing.T) {
	cases := []struct{ total, want int }{
		{1, 1},
		{2, 2}, // unanimity for tiny elector sets
		{3, 2},
		{4, 3},
		{5, 3},
		{6, 4},
		{7, 4},
	}
	for _, c := range cases {
		if got := majorityFor(c.total); got != c.want {
			t.Errorf("majorityFor(%d) = %d, want %d", c.total, got, c.want)
		}
	}
}

func TestMajorityResolvesBeforeAllVotesAreIn(t *testing.T) {
	vs := newVoteState([]int64{1, 2, 3})
	vs.registerVote(1, 9)
	if r := vs.tally(); r.Action != tallyPending {
		t.Fatalf("after one vote: action = %s, want pending", r.Action)
	}
	vs.registerVote(2, 9)
	r := vs.tally()
	if r.Action != tallyKill || r.TargetID != 9 || r.Votes != 2 {
		t.Fatalf("after majority: got %+v, want kill of 9 with 2 votes", r)
	}
	if !vs.Resolved {
		t.Fatal("state should be resolved after a kill")
	}
}

func TestFullRoundWithoutMajorityAdvancesToRoundTwo(t *testing.T) {
	vs := newVoteState([]int64{1, 2, 3, 4})
	vs.registerVote(1, 8)
	vs.registerVote(2, 8)
	vs.registerVote(3, 9)
	vs.registerVote(4, 9)
	if r := vs.tally(); r.Action != tallyAdvanceRound {
		t.Fatalf("split round 1: action = %s, want advance_round", r.Action)
	}
	vs.advanceRound()
	if vs.Round != 2 || len(vs.Votes) != 0 {
		t.Fatalf("after advance: round=%d votes=%d, want round 2 with no votes", vs.Round, len(vs.Votes))
	}
}

func TestSecondRoundFailureResolvesToNoKill(t *testing.T) {
	vs := newVoteState([]int64{1, 2, 3, 4})
	vs.registerVote(1, 8)
	vs.registerVote(2, 8)
	vs.registerVote(3, 9)
	vs.registerVote(4, 9)
	vs.advanceRound()
	vs.registerVote(1, 8)
	vs.registerVote(2, 8)
	vs.registerVote(3, 9)
	vs.registerVote(4, 9)
	r := vs.tally()
	if r.Action != tallyNoKill {
		t.Fatalf("split round 2: action = %s, want no_kill", r.Action)
	}
	if !vs.Resolved {
		t.Fatal("state should be resolved after a failed round 2")
	}
}

func TestRevoteOverwritesPreviousTarget(t *testing.T) {
	vs := newVoteState([]int64{1, 2, 3})
	if _, changed, ok := vs.registerVote(1, 8); !ok || !changed {
		t.Fatal("first vote should register as a change")
	}
	if _, changed, ok := vs.registerVote(1, 8); !ok || changed {
		t.Fatal("identical re-vote should not register as a change")
	}
	votes, changed, ok := vs.registerVote(1, 9)
	if !ok || !changed {
		t.Fatal("re-vote to a new target should register as a change")
	}
	if votes != 1 || vs.countFor(8) != 0 {
		t.Fatalf("re-vote should move the vote: target 9 has %d, target 8 has %d", votes, vs.countFor(8))
	}
}

func TestNonElectorCannotVote(t *testing.T) {
	vs := newVoteState([]int64{1, 2})
	if _, _, ok := vs.registerVote(5, 8); ok {
		t.Fatal("voter outside the elector snapshot should be rejected")
	}
}

func TestResolvedStateRejectsFurtherVotes(t *testing.T) {
	vs := newVoteState([]int64{1, 2})
	vs.registerVote(1, 9)
	vs.registerVote(2, 9)
	if r := vs.tally(); r.Action != tallyKill {
		t.Fatalf("unanimous pair: action = %s, want kill", r.Action)
	}
	if _, _, ok := vs.registerVote(1, 8); ok {
		t.Fatal("resolved state should reject new votes")
	}
	if r := vs.tally(); r.Action != tallyPending {
		t.Fatal("tally on a resolved state should stay inert")
	}
}

func TestCaptainVoteCountsDouble(t *testing.T) {
	vs := newVoteState([]int64{1, 2, 3, 4, 5})
	vs.Weights[1] = 2 // captain
	// Total weight 6, majority 4.
	vs.registerVote(2, 9)
	vs.registerVote(3, 9)
	if r := vs.tally(); r.Action != tallyPending {
		t.Fatalf("3 of 6 weight: action = %s, want pending", r.Action)
	}
	vs.registerVote(1, 9)
	r := vs.tally()
	if r.Action != tallyKill || r.Votes != 4 {
		t.Fatalf("captain tips it: got %+v, want kill with weight 4", r)
	}
}

func TestElectorSnapshotKeepsThresholdStable(t *testing.T) {
	// Five electors, one of whom is removed from play mid-round by an
	// unrelated effect. The threshold still counts all five.
	vs := newVoteState([]int64{1, 2, 3, 4, 5})
	if got := majorityFor(vs.totalWeight()); got != 3 {
		t.Fatalf("threshold = %d, want 3", got)
	}
	vs.registerVote(1, 9)
	vs.registerVote(2, 9)
	if r := vs.tally(); r.Action != tallyPending {
		t.Fatalf("2 of 5: action = %s, want pending", r.Action)
	}
	vs.registerVote(3, 9)
	if r := vs.tally(); r.Action != tallyKill {
		t.Fatalf("3 of 5: action = %s, want kill", r.Action)
	}
}
