package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can decide corrective
// action without a server round-trip.
type ErrorKind string

const (
	ErrKindCapability         ErrorKind = "capability"
	ErrKindNotFound           ErrorKind = "not_found"
	ErrKindPhaseMismatch      ErrorKind = "phase_mismatch"
	ErrKindDeadlinePassed     ErrorKind = "deadline_passed"
	ErrKindDeadlineNotReached ErrorKind = "deadline_not_reached"
	ErrKindCapacity           ErrorKind = "capacity"
	ErrKindState              ErrorKind = "state"
	ErrKindConfig             ErrorKind = "config"
	ErrKindTransfer           ErrorKind = "transfer"
	ErrKindPaused             ErrorKind = "paused"
	ErrKindReentrancy         ErrorKind = "reentrancy"
)

// EngineError is the typed error every engine operation returns on a
// validation failure. It carries the offending identifiers; for phase
// mismatches both the expected and the actual phase are reported.
type EngineError struct {
	Kind      ErrorKind
	ContestID uint
	Account   string
	Expected  ContestPhase
	Actual    ContestPhase
	Msg       string
}

func (e *EngineError) Error() string {
	switch {
	case e.Kind == ErrKindPhaseMismatch:
		return fmt.Sprintf("contest %d: %s: expected phase %s, actual %s", e.ContestID, e.Msg, e.Expected, e.Actual)
	case e.Account != "":
		return fmt.Sprintf("contest %d: account %s: %s: %s", e.ContestID, e.Account, e.Kind, e.Msg)
	case e.ContestID != 0:
		return fmt.Sprintf("contest %d: %s: %s", e.ContestID, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func NewEngineError(kind ErrorKind, contestID uint, account, msg string) *EngineError {
	return &EngineError{Kind: kind, ContestID: contestID, Account: account, Msg: msg}
}

func NewPhaseMismatchError(contestID uint, expected, actual ContestPhase, op string) *EngineError {
	return &EngineError{
		Kind:      ErrKindPhaseMismatch,
		ContestID: contestID,
		Expected:  expected,
		Actual:    actual,
		Msg:       op,
	}
}

// IsKind reports whether err is an EngineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Kind == kind
}
