package main

import (
	"errors"
	"fmt"
)

// ReasonCode identifies why a command was rejected. Rejections are expected
// traffic: the caller gets a specific reason, nothing is mutated, nothing is
// logged as an error.
type ReasonCode string

const (
	ReasonNoGame          ReasonCode = "no_game"
	ReasonGameExists      ReasonCode = "game_exists"
	ReasonWrongPhase      ReasonCode = "wrong_phase"
	ReasonWrongSubPhase   ReasonCode = "wrong_sub_phase"
	ReasonNotInGame       ReasonCode = "not_in_game"
	ReasonNotYourRole     ReasonCode = "not_your_role"
	ReasonDeadActor       ReasonCode = "dead_actor"
	ReasonInvalidTarget   ReasonCode = "invalid_target"
	ReasonSelfTarget      ReasonCode = "self_target"
	ReasonAlreadyResolved ReasonCode = "already_resolved"
	ReasonDuplicateAction ReasonCode = "duplicate_action"
	ReasonNoPotion        ReasonCode = "no_potion"
	ReasonNotStartable    ReasonCode = "not_startable"
	ReasonUnknownAction   ReasonCode = "unknown_action"
)

// RejectError is a precondition violation reported back to the caller.
type RejectError struct {
	Code    ReasonCode
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func reject(code ReasonCode, format string, args ...any) error {
	return &RejectError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// asReject extracts a RejectError if err is one.
func asReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// errInternal wraps a persistence or programming failure. The outward message
// is generic; the wrapped cause goes to the log only.
var errInternal = errors.New("internal error")

func internalErr(context string, err error) error {
	logError(context, err)
	return fmt.Errorf("%w: %s", errInternal, context)
}

// internalOutcome is the gate's terminal form of internalErr: the cause is
// logged, the caller sees only the generic message.
func internalOutcome(context string, err error) Outcome {
	internalErr(context, err)
	return Outcome{Status: StatusError, Message: errInternal.Error()}
}
