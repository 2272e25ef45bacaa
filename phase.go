package main

// Phase is a main game phase.
type Phase string

const (
	PhaseLobby Phase = "lobby"
	PhaseNight Phase = "night"
	PhaseDay   Phase = "day"
	PhaseEnded Phase = "ended"
)

// SubPhase is a stage within a main phase granting action rights to exactly
// one role category.
type SubPhase string

const (
	SubPhaseNone SubPhase = ""

	// Night sub-phases, in wake order.
	SubPhaseThief     SubPhase = "thief"
	SubPhaseCupid     SubPhase = "cupid"
	SubPhaseProtector SubPhase = "protector"
	SubPhaseWolves    SubPhase = "wolves"
	SubPhaseWhiteWolf SubPhase = "white_wolf"
	SubPhaseWitch     SubPhase = "witch"
	SubPhaseSeer      SubPhase = "seer"
	SubPhaseWake      SubPhase = "wake"

	// Day sub-phases.
	SubPhaseCaptainVote  SubPhase = "captain_vote"
	SubPhaseDeliberation SubPhase = "deliberation"
	SubPhaseVote         SubPhase = "vote"

	// Terminal marker, reachable from anywhere.
	SubPhaseEnded SubPhase = "ended"
)

// permissiveBootstrap controls what a transition from an unknown or unset
// sub-phase means. When true any forward transition is legal, so a game
// restored from storage mid-phase can re-enter wherever it left off. The
// strict alternative rejects such transitions; tests cover both readings.
const permissiveBootstrap = true

// nightOrder is the fixed wake priority during the night. The state machine
// walks it forward, skipping sub-phases whose role has no living holder.
var nightOrder = []SubPhase{
	SubPhaseThief,
	SubPhaseCupid,
	SubPhaseProtector,
	SubPhaseWolves,
	SubPhaseWhiteWolf,
	SubPhaseWitch,
	SubPhaseSeer,
	SubPhaseWake,
}

// dayOrder is the fixed sub-phase order during the day.
var dayOrder = []SubPhase{
	SubPhaseWake,
	SubPhaseCaptainVote,
	SubPhaseDeliberation,
	SubPhaseVote,
}

// subPhaseSuccessors maps each sub-phase to its legal successors. Skip paths
// model optional roles: from WOLVES one may jump over WHITE_WOLF and WITCH
// straight to SEER or WAKE when those roles are absent or dead. There are no
// backward transitions within a phase.
var subPhaseSuccessors = buildSuccessors()

func buildSuccessors() map[SubPhase][]SubPhase {
	m := make(map[SubPhase][]SubPhase)
	// Every sub-phase may legally be followed by any later one in its order.
	for i, from := range nightOrder {
		m[from] = append(m[from], nightOrder[i+1:]...)
	}
	for i, from := range dayOrder {
		m[from] = append(m[from], dayOrder[i+1:]...)
	}
	// The day's VOTE falls through to the next night's first sub-phases.
	m[SubPhaseVote] = append(m[SubPhaseVote], nightOrder...)
	// WAKE belongs to both tables: at night it closes the night and opens the
	// day sub-phases.
	m[SubPhaseWake] = append(m[SubPhaseWake], SubPhaseCaptainVote, SubPhaseDeliberation, SubPhaseVote)
	return m
}

// isValidTransition reports whether moving from one sub-phase to another is
// legal. Self-transitions are always legal (idempotent re-entry), and the
// terminal ENDED marker is reachable from any sub-phase.
func isValidTransition(from, to SubPhase) bool {
	if to == SubPhaseEnded {
		return true
	}
	if from == to {
		return true
	}
	if from == SubPhaseNone {
		return permissiveBootstrap
	}
	if _, known := subPhaseSuccessors[from]; !known {
		return permissiveBootstrap
	}
	for _, next := range subPhaseSuccessors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// mainTransitions is the smaller table for NIGHT/DAY/ENDED. ENDED has no
// successors.
var mainTransitions = map[Phase][]Phase{
	PhaseLobby: {PhaseNight, PhaseEnded},
	PhaseNight: {PhaseDay, PhaseEnded},
	PhaseDay:   {PhaseNight, PhaseEnded},
	PhaseEnded: {},
}

func isValidMainTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	for _, next := range mainTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// subPhaseRole returns the role that acts in a night sub-phase, or "" for
// sub-phases that are not bound to a single role.
func subPhaseRole(sp SubPhase) Role {
	switch sp {
	case SubPhaseThief:
		return RoleThief
	case SubPhaseCupid:
		return RoleCupid
	case SubPhaseProtector:
		return RoleProtector
	case SubPhaseWhiteWolf:
		return RoleWhiteWolf
	case SubPhaseWitch:
		return RoleWitch
	case SubPhaseSeer:
		return RoleSeer
	default:
		return ""
	}
}
