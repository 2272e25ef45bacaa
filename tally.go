package main

// voteState is one round of voting among a fixed elector set. The elector
// snapshot is taken at round start; voters who die mid-round from unrelated
// effects stay counted against it so the threshold cannot shift under a
// running vote.
type voteState struct {
	Round    int             // 1 or 2
	Votes    map[int64]int64 // voter -> target
	Electors []int64         // snapshot, fixed per round pair
	Weights  map[int64]int   // voter -> vote weight, default 1
	Resolved bool
}

type tallyAction string

const (
	tallyPending      tallyAction = "pending"
	tallyKill         tallyAction = "kill"
	tallyNoKill       tallyAction = "no_kill"
	tallyAdvanceRound tallyAction = "advance_round"
)

type tallyResult struct {
	Action   tallyAction
	TargetID int64
	Votes    int
}

func newVoteState(electors []int64) *voteState {
	return &voteState{
		Round:    1,
		Votes:    make(map[int64]int64),
		Electors: append([]int64(nil), electors...),
		Weights:  make(map[int64]int),
	}
}

// weightOf returns a voter's weight (the captain's lynch vote counts double).
func (vs *voteState) weightOf(voterID int64) int {
	if w, ok := vs.Weights[voterID]; ok {
		return w
	}
	return 1
}

// totalWeight is the majority base: the summed weight of all electors.
func (vs *voteState) totalWeight() int {
	total := 0
	for _, e := range vs.Electors {
		total += vs.weightOf(e)
	}
	return total
}

// majorityFor is the strict-majority threshold: floor(n/2)+1, except that
// with two or fewer electors unanimity is required.
func majorityFor(total int) int {
	if total <= 2 {
		return total
	}
	return total/2 + 1
}

func (vs *voteState) isElector(voterID int64) bool {
	for _, e := range vs.Electors {
		if e == voterID {
			return true
		}
	}
	return false
}

// registerVote records or overwrites a voter's target. It returns the weighted
// vote count now on that target, whether the vote differs from the voter's
// previous one, and false once the state is resolved or the voter is not in
// the elector snapshot.
func (vs *voteState) registerVote(voterID, targetID int64) (votes int, changed bool, ok bool) {
	if vs.Resolved || !vs.isElector(voterID) {
		return 0, false, false
	}
	prev, had := vs.Votes[voterID]
	vs.Votes[voterID] = targetID
	changed = !had || prev != targetID
	return vs.countFor(targetID), changed, true
}

func (vs *voteState) countFor(targetID int64) int {
	count := 0
	for voter, target := range vs.Votes {
		if target == targetID {
			count += vs.weightOf(voter)
		}
	}
	return count
}

// tally evaluates the round. The first target to cross the majority threshold
// wins immediately; two targets cannot both exceed half under the
// one-target-per-voter rule. A full round with no majority advances to round
// 2, and a failed round 2 resolves to no-kill. Terminal outcomes mark the
// state resolved and reject all further mutation.
func (vs *voteState) tally() tallyResult {
	if vs.Resolved {
		return tallyResult{Action: tallyPending}
	}

	majority := majorityFor(vs.totalWeight())
	var best int64
	var bestVotes int
	counted := make(map[int64]int)
	for voter, target := range vs.Votes {
		counted[target] += vs.weightOf(voter)
		if counted[target] > bestVotes {
			bestVotes = counted[target]
			best = target
		}
	}

	if bestVotes >= majority {
		vs.Resolved = true
		return tallyResult{Action: tallyKill, TargetID: best, Votes: bestVotes}
	}

	if len(vs.Votes) < len(vs.Electors) {
		return tallyResult{Action: tallyPending}
	}

	// Everyone has voted and nobody holds a majority.
	if vs.Round == 1 {
		return tallyResult{Action: tallyAdvanceRound}
	}
	vs.Resolved = true
	return tallyResult{Action: tallyNoKill}
}

// allVoted reports whether every elector has cast a vote this round.
func (vs *voteState) allVoted() bool {
	return len(vs.Votes) == len(vs.Electors)
}

// leaders returns the targets holding the highest weighted count, and that
// count. Plurality elections resolve on this once every elector has voted;
// breaking a tie is the caller's business.
func (vs *voteState) leaders() ([]int64, int) {
	counted := make(map[int64]int)
	best := 0
	for voter, target := range vs.Votes {
		counted[target] += vs.weightOf(voter)
		if counted[target] > best {
			best = counted[target]
		}
	}
	var tops []int64
	for target, count := range counted {
		if count == best {
			tops = append(tops, target)
		}
	}
	return tops, best
}

// advanceRound clears the cast votes and moves to round 2 with the same
// elector snapshot.
func (vs *voteState) advanceRound() {
	vs.Round = 2
	vs.Votes = make(map[int64]int64)
}
