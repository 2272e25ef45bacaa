package main

// EventType identifies a typed outcome event delivered to the notification
// renderer. The engine never assumes delivery succeeds; failed notifications
// are logged and swallowed.
type EventType string

const (
	EventPhase        EventType = "phase"         // sub-phase changed
	EventKill         EventType = "kill"          // wolves reached a majority
	EventNoKill       EventType = "no_kill"       // consensus failure, nobody dies
	EventAdvanceRound EventType = "advance_round" // wolf vote moved to round 2
	EventDeath        EventType = "death"         // a player died (any cause)
	EventLynch        EventType = "lynch"         // day vote eliminated a player
	EventNoLynch      EventType = "no_lynch"      // day vote failed to converge
	EventCaptain      EventType = "captain"       // captain elected
	EventInspect      EventType = "inspect"       // seer result, whispered
	EventLovers       EventType = "lovers"        // cupid link, whispered to each lover
	EventHunterWake   EventType = "hunter_wake"   // dead hunter must shoot
	EventVictory      EventType = "victory"
	EventNarration    EventType = "narration" // flavor text from the narrator
)

// Event is one typed outcome for the renderer. ToPlayerID > 0 makes it a
// private whisper instead of a channel broadcast.
type Event struct {
	Type       EventType `json:"type"`
	GameKey    string    `json:"game_key"`
	ActorID    int64     `json:"actor_id,omitempty"`
	TargetID   int64     `json:"target_id,omitempty"`
	Role       Role      `json:"role,omitempty"`
	Phase      Phase     `json:"phase,omitempty"`
	SubPhase   SubPhase  `json:"sub_phase,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	Votes      int       `json:"votes,omitempty"`
	IsWolf     bool      `json:"is_wolf,omitempty"`
	Message    string    `json:"message,omitempty"`
	ToPlayerID int64     `json:"-"`
}

// Notifier renders outcome events to the chat platform. Implementations must
// tolerate being called concurrently; errors are the implementation's to log,
// the engine does not retry or roll back on notification failure.
type Notifier interface {
	Publish(gameKey string, ev Event)
	Whisper(gameKey string, playerID int64, ev Event) error
}

// nopNotifier discards all events. Used in tests and before a front-end has
// attached.
type nopNotifier struct{}

func (nopNotifier) Publish(string, Event)              {}
func (nopNotifier) Whisper(string, int64, Event) error { return nil }

// OutcomeStatus is the caller-facing result classification of one command.
type OutcomeStatus string

const (
	StatusOK        OutcomeStatus = "ok"
	StatusDuplicate OutcomeStatus = "duplicate" // applied before, no new effect
	StatusRejected  OutcomeStatus = "rejected"
	StatusError     OutcomeStatus = "error"
)

// Outcome is what a command returns to its caller. Duplicate outcomes let the
// front-end suppress repeated confirmations instead of re-announcing.
type Outcome struct {
	Status   OutcomeStatus `json:"status"`
	Code     ReasonCode    `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
	TargetID int64         `json:"target_id,omitempty"`
	Votes    int           `json:"votes,omitempty"`
}

func okOutcome() Outcome {
	return Outcome{Status: StatusOK}
}

func duplicateOutcome(message string) Outcome {
	return Outcome{Status: StatusDuplicate, Code: ReasonDuplicateAction, Message: message}
}
