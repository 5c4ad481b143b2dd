package controller

import (
	"errors"
	"fmt"
)

// Kind classifies operation failures for presentation.
type Kind int

const (
	// KindInvalidSelection means the inputs do not name two usable points.
	KindInvalidSelection Kind = iota
	// KindEngineFailure covers engine-reported errors and bad or missing payloads.
	KindEngineFailure
	// KindNoResults means the engine succeeded with nothing to show.
	KindNoResults
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSelection:
		return "invalid selection"
	case KindEngineFailure:
		return "engine failure"
	case KindNoResults:
		return "no results"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by session operations that reached a user-visible outcome
// other than success.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

var (
	// ErrBusy means controls are disabled while an operation is pending.
	ErrBusy = errors.New("another operation is in progress")

	// ErrStale means a result arrived for a session generation that has
	// since been reset.
	ErrStale = errors.New("result belongs to a previous session")

	// ErrNoRoutesDisplayed means a highlight was requested with no routes drawn.
	ErrNoRoutesDisplayed = errors.New("no routes displayed")

	// ErrInvalidRank means a highlight targeted a rank that is not drawn.
	ErrInvalidRank = errors.New("route rank not displayed")

	// ErrDisposed means the session has been disposed.
	ErrDisposed = errors.New("session disposed")

	errInvalidLocations = errors.New("unknown start or end location")
	errIncompleteManual = errors.New("manual selection incomplete")
)
