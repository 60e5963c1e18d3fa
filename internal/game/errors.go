package game

import (
	"errors"
	"fmt"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameEnded       = errors.New("game has ended")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWrongPhase      = errors.New("action not allowed in current phase")
	ErrIllegalAction   = errors.New("illegal action")
	ErrInvalidAction   = errors.New("invalid action")
	ErrStaleAction     = errors.New("stale action")
	ErrDuplicateAction = errors.New("duplicate action")
	ErrInternal        = errors.New("internal error")
)

func reject(base error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// IsStale reports whether err means the actor's view of the game is out of
// date: the turn moved on, the game ended or it no longer exists.
func IsStale(err error) bool {
	return errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrGameEnded) ||
		errors.Is(err, ErrGameNotFound)
}

// IsRejection reports whether err is a rule rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	for _, e := range []error{
		ErrGameEnded, ErrNotYourTurn, ErrWrongPhase, ErrIllegalAction,
		ErrInvalidAction, ErrStaleAction, ErrDuplicateAction,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
