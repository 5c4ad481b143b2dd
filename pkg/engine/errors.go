package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload means the engine returned bytes that are not a valid
	// result document.
	ErrMalformedPayload = errors.New("malformed engine payload")

	// ErrNoPayload means the engine returned no result at all.
	ErrNoPayload = errors.New("engine returned no result")

	// ErrInvalidCoordinate means a query point is not a finite WGS84 coordinate.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrNotReady means the context ended while waiting for initialization.
	ErrNotReady = errors.New("engine not ready")
)

// EngineError is a failure the engine reported in its own payload.
type EngineError struct {
	Op      string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: engine error: %s", e.Op, e.Message)
}

// outcome classifies err for metrics labels.
func outcome(err error) string {
	var ee *EngineError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ee):
		return "engine_error"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, ErrNoPayload):
		return "no_payload"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	default:
		return "error"
	}
}
